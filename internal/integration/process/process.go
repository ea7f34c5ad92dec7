package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// State is the lifecycle stage of a child process.
type State int

const (
	// StateCreated: the command is built but not started.
	StateCreated State = iota
	// StateRunning: started and not yet reaped.
	StateRunning
	// StateExited: reaped after a normal exit, whatever the status.
	StateExited
	// StateKilled: reaped after death by a signal.
	StateKilled
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Spec describes a command to start.
type Spec struct {
	// Argv is the argument vector. Argv[0] is resolved through PATH.
	Argv []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env holds extra environment entries appended to the inherited
	// environment.
	Env []string

	// MergeOutput sends stderr into the stdout pipe. Stderr() is nil
	// for a merged process.
	MergeOutput bool
}

// Process is a started or startable child with piped stdio.
//
// Process wraps an exec.Cmd with exit tracking and access to its
// piped standard streams. It is safe for concurrent use.
type Process struct {
	// ID is unique among the processes of a Spawner.
	ID string

	// Name is the program name, for logs.
	Name string

	// Cmd is the command being run.
	Cmd *exec.Cmd

	// Started is set when Cmd starts.
	Started time.Time

	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	// done is closed when Wait has returned.
	done chan struct{}

	state    atomic.Int32
	exitCode atomic.Int32

	mu       sync.RWMutex
	exitErr  error
	waitOnce sync.Once
}

// NewProcess wraps cmd, which must not have been started. Spawner.Start
// attaches the pipes and starts it.
func NewProcess(id, name string, cmd *exec.Cmd) *Process {
	p := &Process{
		ID:   id,
		Name: name,
		Cmd:  cmd,
		done: make(chan struct{}),
	}
	p.state.Store(int32(StateCreated))
	p.exitCode.Store(-1)
	return p
}

// State returns the lifecycle stage.
func (p *Process) State() State {
	return State(p.state.Load())
}

// ExitCode returns the exit status.
// Returns -1 if the process has not exited or was killed by a signal.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// ExitError returns any non-exit-status error from waiting on the process.
func (p *Process) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// Done returns a channel that is closed once Wait has returned.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// IsRunning reports whether the process started and was not reaped.
func (p *Process) IsRunning() bool {
	return p.State() == StateRunning
}

// PID returns the OS process id, or -1 before start.
func (p *Process) PID() int {
	if p.Cmd.Process == nil {
		return -1
	}
	return p.Cmd.Process.Pid
}

// Stdin returns the write end of the process's stdin pipe.
func (p *Process) Stdin() io.WriteCloser { return p.stdin }

// Stdout returns the read end of the process's stdout pipe.
func (p *Process) Stdout() io.Reader { return p.stdout }

// Stderr returns the read end of the process's stderr pipe, or nil when
// the output streams were merged.
func (p *Process) Stderr() io.Reader {
	if p.stderr == nil {
		return nil
	}
	return p.stderr
}

// Signal delivers sig to a running process. It fails with
// ErrProcessNotStarted before start and after the process was reaped.
// A process that exited but was not yet reaped is not an error.
func (p *Process) Signal(sig os.Signal) error {
	proc := p.Cmd.Process
	if proc == nil || p.State() != StateRunning {
		return fmt.Errorf("signal %v: %w", sig, ErrProcessNotStarted)
	}
	if err := proc.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signal %v to pid %d: %w", sig, proc.Pid, err)
	}
	return nil
}

// Kill forcibly terminates the process. Killing a process that is not
// running is not an error.
func (p *Process) Kill() error {
	if err := p.Signal(os.Kill); err != nil && !errors.Is(err, ErrProcessNotStarted) {
		return err
	}
	return nil
}

// start starts the process. This is called by the Spawner.
func (p *Process) start() error {
	if p.State() != StateCreated {
		return ErrProcessAlreadyStarted
	}

	if err := p.Cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.Name, err)
	}

	p.Started = time.Now()
	p.state.Store(int32(StateRunning))
	return nil
}

// Wait blocks until the process exits and returns its exit code.
//
// A non-zero exit status is not an error; the error result is reserved
// for failures to wait at all. Wait may be called more than once and
// from several goroutines; only the first call reaps the process.
//
// Wait does not depend on the output pipes: a background child that
// inherited them does not delay it, and output still buffered in the
// pipes stays readable afterwards.
func (p *Process) Wait() (int, error) {
	p.waitOnce.Do(p.reap)
	return p.ExitCode(), p.ExitError()
}

func (p *Process) reap() {
	code, state, err := exitStatus(p.Cmd.Wait())

	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()

	p.exitCode.Store(int32(code))
	p.state.Store(int32(state))
	close(p.done)
}

// exitStatus interprets the result of exec.Cmd.Wait.
func exitStatus(err error) (int, State, error) {
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, StateExited, nil
	case errors.As(err, &exitErr):
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return exitErr.ExitCode(), StateKilled, nil
		}
		return exitErr.ExitCode(), StateExited, nil
	default:
		return -1, StateExited, err
	}
}

// Close releases the parent's ends of the pipes.
// This does not kill the process. Closing a pipe that is already
// closed is ignored.
func (p *Process) Close() error {
	var errs []error
	closeIO := func(name string, c io.Closer) {
		if c == nil {
			return
		}
		if err := c.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}

	closeIO("stdin", p.stdin)
	closeIO("stdout", p.stdout)
	closeIO("stderr", p.stderr)

	return errors.Join(errs...)
}

// Runtime returns how long ago the process started.
func (p *Process) Runtime() time.Duration {
	if p.Started.IsZero() {
		return 0
	}
	return time.Since(p.Started)
}

// Errors returned by Process and Spawner.
var (
	// ErrProcessNotStarted: the operation needs a running process.
	ErrProcessNotStarted = errors.New("process not started")

	// ErrProcessAlreadyStarted: start was called twice.
	ErrProcessAlreadyStarted = errors.New("process already started")

	// ErrEmptyCommand is returned when a Spec has no argument vector.
	ErrEmptyCommand = errors.New("empty command")

	// ErrSpawnerShutdown is returned when the spawner is shutting down.
	ErrSpawnerShutdown = errors.New("spawner is shutting down")
)
