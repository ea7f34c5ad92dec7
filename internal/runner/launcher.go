package runner

import (
	"io"

	"github.com/dshills/runstorm/internal/integration/process"
)

// Handle is a started child process as seen by the Controller.
type Handle interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	// Stderr is nil when the process was started with merged output.
	Stderr() io.Reader

	// Wait blocks until the process exits and returns its exit code.
	// It does not wait for Stdout and Stderr to reach EOF.
	Wait() (int, error)

	Interrupt() error
	Kill() error

	// Close releases the process's pipes.
	Close() error
}

// Launcher starts processes for the Controller.
type Launcher interface {
	Launch(name string, spec process.Spec) (Handle, error)
}

type spawnerLauncher struct {
	spawner *process.Spawner
}

// NewLauncher returns a Launcher backed by a process.Spawner.
func NewLauncher(spawner *process.Spawner) Launcher {
	return spawnerLauncher{spawner: spawner}
}

func (l spawnerLauncher) Launch(name string, spec process.Spec) (Handle, error) {
	proc, err := l.spawner.Start(name, spec)
	if err != nil {
		return nil, err
	}
	return proc, nil
}
