package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/runstorm/internal/console"
	"github.com/dshills/runstorm/internal/runner"
)

// RunConsole runs the file in a full-screen pane on screen until the
// user quits or ctx is done. The screen is initialized and finalized
// here.
func (app *Application) RunConsole(ctx context.Context, screen tcell.Screen) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	s := console.NewScreen(screen)
	if err := s.Init(); err != nil {
		return &InitError{Component: "screen", Err: err}
	}
	defer s.Fini()

	ctrl, err := app.newController(s)
	if err != nil {
		return &InitError{Component: "runner", Err: err}
	}
	defer ctrl.Close()

	quit := make(chan struct{})
	defer close(quit)
	input := s.PollEvents(quit)

	app.run(ctrl)
	for {
		s.SetStatus(statusLine(app.file, ctrl.State()))
		s.Draw()

		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-input:
			if !ok {
				return nil
			}
			action, line := s.Handle(ev)
			switch action {
			case console.ActionSubmit:
				ctrl.Submit(line)
			case console.ActionInterrupt:
				ctrl.Interrupt()
			case console.ActionClear:
				ctrl.Clear()
			case console.ActionRerun:
				app.run(ctrl)
			case console.ActionQuit:
				return nil
			}

		case ev := <-ctrl.Events():
			ctrl.Dispatch(ev)

		case cfg := <-app.configChanges():
			app.reload(ctrl, cfg)

		case err := <-app.configErrors():
			app.log.Warn("config reload failed", "error", err)
		}
	}
}

// statusLine describes the session for the bottom row.
func statusLine(file string, state runner.State) string {
	name := "shell"
	if file != "" {
		name = filepath.Base(file)
	}
	return fmt.Sprintf(" %s [%s]  ^R rerun  ^C interrupt  ^L clear  ^Q quit", name, state)
}
