package runner

import "fmt"

// State is the lifecycle state of a Session.
type State int

const (
	// StateIdle means no Session has been started.
	StateIdle State = iota
	// StateStarting means the run command is being spawned.
	StateStarting
	// StateCompiling means the build step is running.
	StateCompiling
	// StateRunning means the program is running.
	StateRunning
	// StateRemediating means the installer is running.
	StateRemediating
	// StateRestarting means the installer succeeded and the run is being retried.
	StateRestarting
	// StateExited is terminal for a Session.
	StateExited
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateCompiling:
		return "compiling"
	case StateRunning:
		return "running"
	case StateRemediating:
		return "remediating"
	case StateRestarting:
		return "restarting"
	case StateExited:
		return "exited"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Live reports whether a Session in this state may own a process.
func (s State) Live() bool {
	return s != StateIdle && s != StateExited
}
