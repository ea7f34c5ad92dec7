package app

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/dshills/runstorm/internal/console"
	"github.com/dshills/runstorm/internal/runner"
)

// PlainIO is the terminal, or pipes, used by RunPlain.
type PlainIO struct {
	In  io.Reader
	Out io.Writer

	// Echo is set when In is a terminal that echoes typed lines.
	Echo bool

	// Interrupts delivers the user's interrupt requests.
	Interrupts <-chan os.Signal
}

// RunPlain runs the file once with line-oriented output and returns
// when the session exits or ctx is done. Lines read from In are
// submitted as input; end of In closes the process's stdin. An
// interrupt with no live process ends the run.
func (app *Application) RunPlain(ctx context.Context, pio PlainIO) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	w := console.NewWriter(pio.Out)
	ctrl, err := app.newController(w)
	if err != nil {
		return &InitError{Component: "runner", Err: err}
	}
	defer ctrl.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := readLines(ctx, pio.In)

	app.run(ctrl)
	for ctrl.State() != runner.StateExited {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				lines = nil
				ctrl.CloseInput()
				continue
			}
			if pio.Echo {
				w.Echoed()
			}
			ctrl.Submit(line)

		case <-pio.Interrupts:
			if !ctrl.State().Live() {
				return nil
			}
			ctrl.Interrupt()

		case ev := <-ctrl.Events():
			ctrl.Dispatch(ev)

		case cfg := <-app.configChanges():
			app.reload(ctrl, cfg)

		case err := <-app.configErrors():
			app.log.Warn("config reload failed", "error", err)
		}
	}
	return nil
}

// readLines sends each line of r until EOF, then closes the channel.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	if r == nil {
		close(lines)
		return lines
	}
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
