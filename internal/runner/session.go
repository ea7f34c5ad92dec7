package runner

import "github.com/dshills/runstorm/internal/integration/process"

// role says what a step's process is for.
type role int

const (
	roleRun role = iota
	roleCompile
	roleRemediate
)

func (r role) String() string {
	switch r {
	case roleRun:
		return "run"
	case roleCompile:
		return "compile"
	case roleRemediate:
		return "remediate"
	default:
		return "unknown"
	}
}

// step is one process started on behalf of a Session. Events carry the
// step id; events for a step that is no longer current are dropped.
type step struct {
	id   uint64
	role role
	def  Step

	handle Handle
	pumps  []*process.Pump

	// input queues lines for the stdin writer; nil when the step takes
	// no input or has been stopped.
	input chan string

	stdout framer
	stderr framer

	// held is stderr text of an unfinished line kept off the display
	// while it may still turn out to trigger remediation. heldStart
	// records whether it began a line.
	held      string
	heldStart bool

	// prefix is prepended to each output line (installer output).
	prefix string

	// dependency is the name being installed by a remediation step.
	dependency string

	stopped bool
}

func (st *step) framer(stream process.Stream) *framer {
	if stream == process.StreamStderr {
		return &st.stderr
	}
	return &st.stdout
}

// Session is one run of a file or interactive shell.
//
// A Session belongs to the Controller that created it and must only be
// inspected from the Controller's owning goroutine.
type Session struct {
	// ID uniquely identifies the Session in logs.
	ID string

	// File is the target file; empty for an interactive shell.
	File string

	// Source is the editor text captured when the run was requested.
	Source string

	// Plan is the launch plan derived from File.
	Plan Plan

	state State

	// remediated is set once the Session has spent its one remediation
	// attempt. It lives on the Session so a new run always starts with
	// a fresh budget.
	remediated bool

	// inputClosed is set by CloseInput; later run steps start with
	// stdin closed.
	inputClosed bool

	step *step
}

// State returns the Session's lifecycle state.
func (s *Session) State() State { return s.state }

// Remediated reports whether the Session has used its remediation attempt.
func (s *Session) Remediated() bool { return s.remediated }
