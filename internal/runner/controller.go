package runner

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dshills/runstorm/internal/integration/process"
)

const (
	defaultPrompt     = "> "
	defaultInputQueue = 64
	eventBuffer       = 64

	// exitDrainTimeout bounds how long output is awaited once the
	// process itself has exited.
	exitDrainTimeout = 250 * time.Millisecond
)

// Options configures a Controller.
type Options struct {
	// Toolchain selects the binaries used by launch plans.
	// Defaults to DefaultToolchain().
	Toolchain Toolchain

	// Rules are the remediation rules keyed by name.
	// Defaults to DefaultRules(Toolchain).
	Rules map[string]Rule

	// Launcher starts processes. Defaults to a process.Spawner.
	Launcher Launcher

	// Prompt is appended whenever the display becomes editable.
	Prompt string

	// ClearOnRun clears the display at the start of every run.
	ClearOnRun bool

	// InputQueue is the number of submitted lines that may wait for the
	// process to read them.
	InputQueue int

	Logger *slog.Logger
}

// Controller owns at most one live Session and its child process.
//
// All methods except Events must be called from the owning goroutine.
type Controller struct {
	sink     Sink
	launcher Launcher
	log      *slog.Logger

	toolchain  Toolchain
	rules      map[string]Rule
	prompt     string
	clearOnRun bool
	inputQueue int

	events    chan Event
	closed    chan struct{}
	closeOnce sync.Once

	session  *Session
	nextStep uint64

	// end is the rune length of the history in the sink.
	end int
	// atLineStart is true when the history is empty or ends in a newline.
	atLineStart bool
}

// NewController creates a Controller that writes to sink.
func NewController(sink Sink, opts Options) *Controller {
	if opts.Toolchain.Shell == "" {
		opts.Toolchain = DefaultToolchain()
	}
	if opts.Rules == nil {
		opts.Rules = DefaultRules(opts.Toolchain)
	}
	if opts.Launcher == nil {
		opts.Launcher = NewLauncher(process.NewSpawner(process.WithLogger(opts.Logger)))
	}
	if opts.Prompt == "" {
		opts.Prompt = defaultPrompt
	}
	if opts.InputQueue <= 0 {
		opts.InputQueue = defaultInputQueue
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Controller{
		sink:        sink,
		launcher:    opts.Launcher,
		log:         opts.Logger.With("component", "runner"),
		toolchain:   opts.Toolchain,
		rules:       opts.Rules,
		prompt:      opts.Prompt,
		clearOnRun:  opts.ClearOnRun,
		inputQueue:  opts.InputQueue,
		events:      make(chan Event, eventBuffer),
		closed:      make(chan struct{}),
		atLineStart: true,
	}
}

// Events returns the channel the owner must drain into Dispatch.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State returns the state of the current Session, or StateIdle.
func (c *Controller) State() State {
	if c.session == nil {
		return StateIdle
	}
	return c.session.state
}

// Session returns the current Session, or nil before the first run.
func (c *Controller) Session() *Session {
	return c.session
}

// Reconfigure replaces the toolchain and rules used by later runs.
// A live Session keeps the plan it started with.
func (c *Controller) Reconfigure(tc Toolchain, rules map[string]Rule) {
	c.toolchain = tc
	if rules != nil {
		c.rules = rules
	}
}

// Run starts a new Session for file, stopping any live one first.
// An empty file starts an interactive shell.
func (c *Controller) Run(file, source string) {
	if c.isClosed() {
		return
	}
	c.cancel()
	if c.clearOnRun {
		c.reset()
	}

	plan, err := c.toolchain.Plan(file, source)
	sess := &Session{
		ID:     uuid.NewString(),
		File:   file,
		Source: source,
		Plan:   plan,
		state:  StateStarting,
	}
	c.session = sess
	c.log.Info("run requested", "session", sess.ID, "file", file, "kind", plan.Kind.String())

	if err != nil {
		c.log.Warn("no launch plan", "session", sess.ID, "error", err)
		c.append(fmt.Sprintf("Unsupported file type: %s\n", plan.Ext), StyleError)
		c.finish(sess)
		return
	}

	if plan.Compile != nil {
		c.launch(sess, roleCompile, *plan.Compile)
		return
	}
	c.launch(sess, roleRun, plan.Run)
}

// Submit forwards a line the user entered after the prompt to the
// running process. The line is already shown in the display; Submit
// closes it with a newline and moves the prompt boundary past it.
func (c *Controller) Submit(line string) {
	if n := utf8.RuneCountInString(line); n > 0 {
		c.end += n
		c.atLineStart = strings.HasSuffix(line, "\n")
	}
	c.append("\n", StyleNone)

	st := c.liveStep()
	if st == nil || st.input == nil {
		c.append("[ERROR] No process input stream.\n", StyleError)
		return
	}

	select {
	case st.input <- strings.ReplaceAll(line, "\n", "") + "\n":
	default:
		c.append("[ERROR] Failed to write input: input queue is full\n", StyleError)
	}
}

// CloseInput closes the live process's stdin once the queued lines are
// written, signalling end of input. A process that has not started yet
// gets a closed stdin. Later submits report that there is
// no input stream.
func (c *Controller) CloseInput() {
	if c.session == nil || !c.session.state.Live() {
		return
	}
	c.session.inputClosed = true
	if st := c.liveStep(); st != nil && st.input != nil {
		close(st.input)
		st.input = nil
	}
}

// Interrupt delivers an interrupt to the live process. It does nothing
// when no process is live.
func (c *Controller) Interrupt() {
	st := c.liveStep()
	if st == nil || st.handle == nil {
		return
	}

	if err := st.handle.Interrupt(); err != nil {
		c.log.Warn("interrupt failed", "session", c.session.ID, "error", err)
		c.ensureNewline()
		c.append(fmt.Sprintf("[ERROR] Failed to send interrupt: %v\n", err), StyleError)
	} else {
		c.append("\n^C\n", StyleWarning)
	}
	c.showPrompt()
}

// Clear empties the display and issues a fresh prompt. A live Session
// keeps running.
func (c *Controller) Clear() {
	c.reset()
	c.showPrompt()
}

// Close stops the live Session. Later calls to Run are ignored.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.closed)
	})
}

// Dispatch applies an event received from Events.
func (c *Controller) Dispatch(ev Event) {
	if ev == nil {
		return
	}

	st := c.current(ev.stepID())
	if st == nil {
		// The step was superseded; a late spawn must not outlive it.
		if sp, ok := ev.(spawnedEvent); ok && sp.handle != nil {
			discard(sp.handle)
		}
		return
	}
	sess := c.session

	switch ev := ev.(type) {
	case spawnedEvent:
		c.onSpawned(sess, st, ev)
	case chunkEvent:
		c.onChunk(sess, st, ev)
	case streamEndEvent:
		if ev.stream == process.StreamStderr {
			c.flushHeld(st)
		}
		if ev.err != nil {
			c.log.Warn("stream ended abnormally", "session", sess.ID, "stream", ev.stream.String(), "error", ev.err)
			c.ensureNewline()
			c.append(fmt.Sprintf("[%s closed: %v]\n", ev.stream, ev.err), StyleWarning)
		}
	case exitEvent:
		c.onExit(sess, st, ev)
	case inputFailedEvent:
		c.ensureNewline()
		c.append(fmt.Sprintf("[ERROR] Failed to write input: %v\n", ev.err), StyleError)
	case taskFailedEvent:
		c.log.Error("background task failed", "session", sess.ID, "error", ev.err)
		c.ensureNewline()
		c.append(fmt.Sprintf("[ERROR] %v\n", ev.err), StyleError)
		c.finish(sess)
	}
}

func (c *Controller) current(id uint64) *step {
	if c.session == nil || c.session.step == nil {
		return nil
	}
	st := c.session.step
	if st.id != id || st.stopped {
		return nil
	}
	return st
}

func (c *Controller) liveStep() *step {
	if c.session == nil || !c.session.state.Live() {
		return nil
	}
	st := c.session.step
	if st == nil || st.stopped {
		return nil
	}
	return st
}

// launch makes def the Session's current step and spawns it off the
// owning goroutine.
func (c *Controller) launch(sess *Session, r role, def Step) {
	c.nextStep++
	st := &step{id: c.nextStep, role: r, def: def}
	sess.step = st

	switch r {
	case roleCompile:
		sess.state = StateCompiling
	case roleRemediate:
		sess.state = StateRemediating
	default:
		sess.state = StateStarting
	}
	c.sink.SetEditable(false)

	c.ensureNewline()
	if def.Banner != "" {
		c.append(def.Banner+"\n", StyleNone)
	}
	c.append("Running command: "+strings.Join(def.Spec.Argv, " ")+"\n", StyleNone)

	name := ""
	if len(def.Spec.Argv) > 0 {
		name = filepath.Base(def.Spec.Argv[0])
	}
	c.log.Debug("launching", "session", sess.ID, "step", st.id, "role", r.String(), "argv", def.Spec.Argv)

	id, spec := st.id, def.Spec
	c.goTask(id, func() {
		h, err := c.launcher.Launch(name, spec)
		if !c.send(spawnedEvent{step: id, handle: h, err: err}) && h != nil {
			discard(h)
		}
	})
}

func (c *Controller) onSpawned(sess *Session, st *step, ev spawnedEvent) {
	if ev.err != nil {
		c.log.Warn("spawn failed", "session", sess.ID, "role", st.role.String(), "error", ev.err)
		c.append(fmt.Sprintf("[ERROR] Failed to start process: %v\n", ev.err), StyleError)
		c.finish(sess)
		return
	}

	st.handle = ev.handle
	c.attach(st)

	if st.role == roleRun {
		sess.state = StateRunning
		c.showPrompt()
	}
}

// attach starts the pumps, the waiter and, for a run step, the stdin
// writer.
func (c *Controller) attach(st *step) {
	h, id := st.handle, st.id

	st.pumps = append(st.pumps, c.newPump(id, process.StreamStdout, h.Stdout()))
	if r := h.Stderr(); r != nil {
		st.pumps = append(st.pumps, c.newPump(id, process.StreamStderr, r))
	}
	pumps := st.pumps
	for _, p := range pumps {
		p.Start()
	}

	c.goTask(id, func() {
		code, err := h.Wait()
		c.drain(id, h, pumps)
		c.send(exitEvent{step: id, code: code, err: err})
	})

	stdin := h.Stdin()
	if st.role != roleRun || c.session.inputClosed {
		if stdin != nil {
			_ = stdin.Close()
		}
		return
	}

	input := make(chan string, c.inputQueue)
	st.input = input
	c.goTask(id, func() {
		for line := range input {
			if _, err := io.WriteString(stdin, line); err != nil {
				c.send(inputFailedEvent{step: id, err: err})
			}
		}
		_ = stdin.Close()
	})
}

// drain gives the pumps of an exited process a short grace period to
// deliver what is left in the pipes. A background child that inherited
// the pipes can keep them open forever, so after the grace period the
// pipes are closed under the pumps.
func (c *Controller) drain(id uint64, h Handle, pumps []*process.Pump) {
	drained := make(chan struct{})
	go func() {
		for _, p := range pumps {
			<-p.Done()
		}
		close(drained)
	}()

	select {
	case <-drained:
		return
	case <-time.After(exitDrainTimeout):
	}

	for _, p := range pumps {
		select {
		case <-p.Done():
		default:
			c.log.Debug("output still open after exit", "step", id, "stream", p.Stream().String())
		}
	}
	_ = h.Close()
	<-drained
}

func (c *Controller) newPump(id uint64, stream process.Stream, r io.Reader) *process.Pump {
	return process.NewPump(stream, r,
		func(text string) {
			c.send(chunkEvent{step: id, stream: stream, text: text})
		},
		func(err error) {
			c.send(streamEndEvent{step: id, stream: stream, err: err})
		},
	)
}

func (c *Controller) onChunk(sess *Session, st *step, ev chunkEvent) {
	stderr := ev.stream == process.StreamStderr
	for _, seg := range st.framer(ev.stream).feed(ev.text) {
		if stderr && c.watching(sess, st) {
			if !seg.complete {
				c.hold(st, seg)
				continue
			}
			if rule, dep, ok := c.matchRule(sess, st, seg.line); ok {
				st.held = ""
				c.remediate(sess, rule, dep)
				return
			}
		}

		text, start := seg.text, seg.start
		if stderr && st.held != "" {
			text, start = st.held+text, st.heldStart
			st.held = ""
		}
		c.show(st, text, start, Classify(seg.line))
	}
}

func (c *Controller) show(st *step, text string, start bool, style Style) {
	if st.prefix != "" && start {
		text = st.prefix + text
	}
	c.append(text, style)
}

// hold keeps a partial stderr segment back until its line completes.
func (c *Controller) hold(st *step, seg segment) {
	if st.held == "" {
		st.heldStart = seg.start
	}
	st.held += seg.text
	if len(st.held) > maxCarry {
		c.flushHeld(st)
	}
}

// flushHeld shows held stderr text as it is.
func (c *Controller) flushHeld(st *step) {
	if st.held == "" {
		return
	}
	text := st.held
	st.held = ""
	c.show(st, text, st.heldStart, Classify(st.stderr.carry))
}

// watching reports whether stderr lines of st may still trigger the
// Session's remediation rule.
func (c *Controller) watching(sess *Session, st *step) bool {
	if st.role != roleRun || sess.state != StateRunning || sess.remediated || sess.Plan.Rule == "" {
		return false
	}
	_, ok := c.rules[sess.Plan.Rule]
	return ok
}

// matchRule reports whether line triggers the Session's remediation rule.
func (c *Controller) matchRule(sess *Session, st *step, line string) (Rule, string, bool) {
	if !c.watching(sess, st) {
		return Rule{}, "", false
	}
	rule := c.rules[sess.Plan.Rule]
	dep, ok := rule.Match(line)
	return rule, dep, ok
}

// remediate replaces the running process with the rule's installer. The
// Session's remediated flag is set before anything else, so no later
// line can trigger a second attempt.
func (c *Controller) remediate(sess *Session, rule Rule, dep string) {
	sess.remediated = true
	c.log.Info("missing dependency", "session", sess.ID, "rule", rule.Name, "dependency", dep)

	c.stop(sess.step)
	c.ensureNewline()
	c.append(fmt.Sprintf("[INFO] Missing module detected: %s\n", dep), StyleWarning)

	c.launch(sess, roleRemediate, rule.Step(dep))
	sess.step.prefix = rule.Prefix()
	sess.step.dependency = dep
}

func (c *Controller) onExit(sess *Session, st *step, ev exitEvent) {
	c.stop(st)
	if ev.err != nil {
		c.log.Warn("wait failed", "session", sess.ID, "role", st.role.String(), "error", ev.err)
	}
	c.log.Info("process exited", "session", sess.ID, "role", st.role.String(), "code", ev.code)

	switch st.role {
	case roleCompile:
		if ev.code != 0 {
			c.ensureNewline()
			c.append("Compilation failed. Check for missing packages or syntax errors.\n", StyleError)
			c.finish(sess)
			return
		}
		c.launch(sess, roleRun, sess.Plan.Run)

	case roleRemediate:
		c.ensureNewline()
		if ev.code != 0 {
			c.append(fmt.Sprintf("[ERROR] Failed to install module '%s' (exit code %d)\n", st.dependency, ev.code), StyleError)
			c.finish(sess)
			return
		}
		sess.state = StateRestarting
		c.append(fmt.Sprintf("[INFO] Module '%s' installed, retrying...\n", st.dependency), StyleNone)
		c.launch(sess, roleRun, sess.Plan.Run)

	default:
		c.ensureNewline()
		c.append(fmt.Sprintf("Process exited with code: %d\n", ev.code), StyleNone)
		c.finish(sess)
	}
}

// stop stops a step's pumps, kills its process and releases its pipes.
// Held stderr text is shown first. It is safe to call more than once.
func (c *Controller) stop(st *step) {
	if st == nil || st.stopped {
		return
	}
	st.stopped = true
	c.flushHeld(st)

	for _, p := range st.pumps {
		p.Stop()
	}
	if st.input != nil {
		close(st.input)
		st.input = nil
	}
	if h := st.handle; h != nil {
		if err := h.Kill(); err != nil {
			c.log.Warn("kill failed", "step", st.id, "error", err)
		}
		if err := h.Close(); err != nil {
			c.log.Debug("close failed", "step", st.id, "error", err)
		}
		st.handle = nil
	}
}

// cancel ends the live Session, if any.
func (c *Controller) cancel() {
	sess := c.session
	if sess == nil || !sess.state.Live() {
		return
	}
	c.log.Info("session cancelled", "session", sess.ID, "state", sess.state.String())
	c.stop(sess.step)
	sess.step = nil
	sess.state = StateExited
}

// finish moves the Session to Exited and re-enables input.
func (c *Controller) finish(sess *Session) {
	c.stop(sess.step)
	sess.step = nil
	sess.state = StateExited
	c.showPrompt()
}

func (c *Controller) append(text string, style Style) {
	if text == "" {
		return
	}
	c.sink.Append(text, style)
	c.end += utf8.RuneCountInString(text)
	c.atLineStart = strings.HasSuffix(text, "\n")
	c.sink.SetEditableFrom(c.end)
}

func (c *Controller) ensureNewline() {
	if !c.atLineStart {
		c.append("\n", StyleNone)
	}
}

func (c *Controller) showPrompt() {
	c.ensureNewline()
	c.append(c.prompt, StyleNone)
	c.sink.SetEditable(true)
}

func (c *Controller) reset() {
	c.sink.Clear()
	c.end = 0
	c.atLineStart = true
	c.sink.SetEditableFrom(0)
}

func (c *Controller) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// send delivers ev to the owner. It returns false once the Controller
// is closed.
func (c *Controller) send(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.closed:
		return false
	}
}

// goTask runs fn on a new goroutine. A panic is reported to the owner
// as a task failure for the step.
func (c *Controller) goTask(id uint64, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.send(taskFailedEvent{step: id, err: fmt.Errorf("background task panicked: %v", r)})
			}
		}()
		fn()
	}()
}

// discard kills and reaps a process nobody is waiting for.
func discard(h Handle) {
	go func() {
		_ = h.Kill()
		_ = h.Close()
		_, _ = h.Wait()
	}()
}
