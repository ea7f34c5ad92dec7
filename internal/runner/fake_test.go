package runner

import (
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/runstorm/internal/integration/process"
)

// recordingSink records what the controller shows. It is only touched
// from the test goroutine, which owns the controller.
type recordingSink struct {
	chunks     []Chunk
	boundary   int
	boundaries []int
	editable   bool
	clears     int
}

func (s *recordingSink) Append(text string, style Style) {
	s.chunks = append(s.chunks, Chunk{Text: text, Style: style})
}

func (s *recordingSink) SetEditableFrom(offset int) {
	s.boundary = offset
	s.boundaries = append(s.boundaries, offset)
}

func (s *recordingSink) SetEditable(editable bool) { s.editable = editable }

func (s *recordingSink) Clear() {
	s.chunks = nil
	s.boundary = 0
	s.clears++
}

func (s *recordingSink) text() string {
	var b strings.Builder
	for _, c := range s.chunks {
		b.WriteString(c.Text)
	}
	return b.String()
}

// count returns the number of chunks containing substr.
func (s *recordingSink) count(substr string) int {
	n := 0
	for _, c := range s.chunks {
		if strings.Contains(c.Text, substr) {
			n++
		}
	}
	return n
}

func (s *recordingSink) styled(style Style) []string {
	var out []string
	for _, c := range s.chunks {
		if c.Style == style {
			out = append(out, c.Text)
		}
	}
	return out
}

// fakeProc is a scripted child process built on io.Pipe.
type fakeProc struct {
	spec process.Spec

	stdinR *io.PipeReader
	stdinW *io.PipeWriter
	outR   *io.PipeReader
	outW   *io.PipeWriter
	errR   *io.PipeReader
	errW   *io.PipeWriter

	done       chan struct{}
	once       sync.Once
	code       int
	killed     atomic.Bool
	interrupts atomic.Int32

	interruptErr error
}

func newFakeProc(spec process.Spec) *fakeProc {
	p := &fakeProc{spec: spec, done: make(chan struct{})}
	p.stdinR, p.stdinW = io.Pipe()
	p.outR, p.outW = io.Pipe()
	if !spec.MergeOutput {
		p.errR, p.errW = io.Pipe()
	}
	return p
}

func (p *fakeProc) Stdin() io.WriteCloser { return p.stdinW }
func (p *fakeProc) Stdout() io.Reader     { return p.outR }

func (p *fakeProc) Stderr() io.Reader {
	if p.errR == nil {
		return nil
	}
	return p.errR
}

func (p *fakeProc) Wait() (int, error) {
	<-p.done
	return p.code, nil
}

func (p *fakeProc) Interrupt() error {
	p.interrupts.Add(1)
	return p.interruptErr
}

func (p *fakeProc) Kill() error {
	p.killed.Store(true)
	p.exit(-1)
	return nil
}

func (p *fakeProc) Close() error {
	_ = p.stdinW.Close()
	_ = p.outR.Close()
	if p.errR != nil {
		_ = p.errR.Close()
	}
	return nil
}

// exit closes the output streams and records the exit code.
func (p *fakeProc) exit(code int) {
	p.once.Do(func() {
		_ = p.outW.Close()
		if p.errW != nil {
			_ = p.errW.Close()
		}
		_ = p.stdinR.Close()
		p.code = code
		close(p.done)
	})
}

func (p *fakeProc) stdout(s string) { _, _ = io.WriteString(p.outW, s) }
func (p *fakeProc) stderr(s string) { _, _ = io.WriteString(p.errW, s) }

// fakeLauncher records launches and runs a script for each process.
type fakeLauncher struct {
	mu    sync.Mutex
	specs []process.Spec
	procs []*fakeProc

	// fail, if set, may refuse a launch.
	fail func(spec process.Spec) error
	// script runs on its own goroutine for the n-th launched process.
	script func(n int, p *fakeProc)
}

func (l *fakeLauncher) Launch(name string, spec process.Spec) (Handle, error) {
	l.mu.Lock()
	n := len(l.specs)
	l.specs = append(l.specs, spec)
	l.mu.Unlock()

	if l.fail != nil {
		if err := l.fail(spec); err != nil {
			return nil, err
		}
	}

	p := newFakeProc(spec)
	l.mu.Lock()
	l.procs = append(l.procs, p)
	l.mu.Unlock()

	if l.script != nil {
		go l.script(n, p)
	}
	return p, nil
}

func (l *fakeLauncher) launched() []process.Spec {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]process.Spec(nil), l.specs...)
}

func (l *fakeLauncher) processes() []*fakeProc {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeProc(nil), l.procs...)
}

func testToolchain() Toolchain {
	tc := DefaultToolchain()
	tc.Shell = "/bin/bash"
	tc.Python = "python3"
	return tc
}

func newTestController(l Launcher) (*Controller, *recordingSink) {
	sink := &recordingSink{}
	tc := testToolchain()
	c := NewController(sink, Options{
		Toolchain: tc,
		Rules:     DefaultRules(tc),
		Launcher:  l,
	})
	return c, sink
}

// drive dispatches controller events until cond holds.
func drive(t *testing.T, c *Controller, cond func() bool) {
	t.Helper()
	timeout := time.After(3 * time.Second)
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for !cond() {
		select {
		case ev := <-c.Events():
			c.Dispatch(ev)
		case <-tick.C:
		case <-timeout:
			t.Fatalf("timed out in state %v", c.State())
		}
	}
}

func stateIs(c *Controller, s State) func() bool {
	return func() bool { return c.State() == s }
}
