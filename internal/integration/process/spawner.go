package process

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Spawner starts child processes with piped stdio and tracks them until
// they have been waited on.
//
// Spawner is safe for concurrent use.
type Spawner struct {
	mu        sync.RWMutex
	processes map[string]*Process

	// closed indicates the spawner has been shut down
	closed atomic.Bool

	// maxProcesses limits the number of concurrent processes (0 = unlimited)
	maxProcesses int

	logger *slog.Logger
}

// SpawnerOption configures a Spawner instance.
type SpawnerOption func(*Spawner)

// WithMaxProcesses sets the maximum number of concurrent processes.
// A value of 0 (default) means unlimited.
func WithMaxProcesses(max int) SpawnerOption {
	return func(s *Spawner) {
		s.maxProcesses = max
	}
}

// WithLogger sets the logger used for process lifecycle messages.
func WithLogger(logger *slog.Logger) SpawnerOption {
	return func(s *Spawner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpawner creates a new process spawner.
func NewSpawner(opts ...SpawnerOption) *Spawner {
	s := &Spawner{
		processes: make(map[string]*Process),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start starts a new tracked process.
//
// Stdin and stdout are always piped. Stderr is piped separately unless
// spec.MergeOutput is set, in which case it shares the stdout pipe.
// The environment is inherited from the current process.
func (s *Spawner) Start(name string, spec Spec) (*Process, error) {
	return s.StartWithID(uuid.NewString(), name, spec)
}

// StartWithID starts a new tracked process with a specific ID.
func (s *Spawner) StartWithID(id, name string, spec Spec) (*Process, error) {
	if len(spec.Argv) == 0 {
		return nil, ErrEmptyCommand
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, ErrSpawnerShutdown
	}

	if s.maxProcesses > 0 && len(s.processes) >= s.maxProcesses {
		return nil, fmt.Errorf("process limit reached: %d", s.maxProcesses)
	}

	if _, exists := s.processes[id]; exists {
		return nil, fmt.Errorf("process ID already exists: %s", id)
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	proc := NewProcess(id, name, cmd)

	// Output goes through plain OS pipes rather than StdoutPipe, so that
	// Wait never closes the read ends and may run while they are read.
	var parentEnds, childEnds []io.Closer
	cleanup := func() {
		for _, c := range append(parentEnds, childEnds...) {
			_ = c.Close()
		}
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	proc.stdin = stdin
	parentEnds = append(parentEnds, stdin)

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	proc.stdout = stdoutR
	cmd.Stdout = stdoutW
	parentEnds = append(parentEnds, stdoutR)
	childEnds = append(childEnds, stdoutW)

	if spec.MergeOutput {
		cmd.Stderr = stdoutW
	} else {
		stderrR, stderrW, err := os.Pipe()
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("create stderr pipe: %w", err)
		}
		proc.stderr = stderrR
		cmd.Stderr = stderrW
		parentEnds = append(parentEnds, stderrR)
		childEnds = append(childEnds, stderrW)
	}

	err = proc.start()
	// The child holds its own copies of the write ends.
	for _, c := range childEnds {
		_ = c.Close()
	}
	if err != nil {
		for _, c := range parentEnds {
			_ = c.Close()
		}
		return nil, err
	}

	s.processes[id] = proc
	s.logger.Debug("process started", "id", id, "name", name, "pid", proc.PID(), "argv", spec.Argv)

	go s.monitorProcess(proc)

	return proc, nil
}

// monitorProcess drops the process from tracking once it has been waited on.
func (s *Spawner) monitorProcess(proc *Process) {
	<-proc.Done()

	s.logger.Debug("process exited", "id", proc.ID, "name", proc.Name,
		"code", proc.ExitCode(), "state", proc.State().String(), "runtime", proc.Runtime())

	s.mu.Lock()
	delete(s.processes, proc.ID)
	s.mu.Unlock()
}

// Get returns a process by ID, or nil if it is not tracked.
func (s *Spawner) Get(id string) *Process {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processes[id]
}

// Count returns the number of tracked processes.
func (s *Spawner) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.processes)
}

func (s *Spawner) snapshot() []*Process {
	s.mu.RLock()
	defer s.mu.RUnlock()

	procs := make([]*Process, 0, len(s.processes))
	for _, p := range s.processes {
		procs = append(procs, p)
	}
	return procs
}

// KillAll kills all tracked processes immediately.
func (s *Spawner) KillAll() {
	for _, p := range s.snapshot() {
		if err := p.Kill(); err != nil {
			s.logger.Warn("kill failed", "id", p.ID, "error", err)
		}
	}
}

// Shutdown refuses new processes, kills the tracked ones and waits up to
// timeout for them to be reaped.
func (s *Spawner) Shutdown(timeout time.Duration) {
	if s.closed.Swap(true) {
		return
	}

	procs := s.snapshot()
	if len(procs) == 0 {
		return
	}

	s.KillAll()
	for _, p := range procs {
		_ = p.Close()
	}

	deadline := time.After(timeout)
	for _, p := range procs {
		select {
		case <-p.Done():
		case <-deadline:
			s.logger.Warn("processes still running after shutdown", "count", s.Count())
			return
		}
	}
}
