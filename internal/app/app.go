// Package app wires the runner to a display and runs the owner loop
// that every runner.Controller needs.
package app

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dshills/runstorm/internal/config"
	"github.com/dshills/runstorm/internal/integration/process"
	"github.com/dshills/runstorm/internal/runner"
)

// shutdownTimeout bounds how long Close waits for children to be reaped.
const shutdownTimeout = 2 * time.Second

// Options configures the application.
type Options struct {
	// Config is the loaded configuration. Defaults to config.Default().
	Config *config.Config

	// ConfigPath, if set, is watched and reloaded on change.
	ConfigPath string

	// File is the file to run. Empty starts an interactive shell.
	File string

	Logger *slog.Logger
}

// Application runs one file, or a shell, in a display.
type Application struct {
	cfg  *config.Config
	file string
	log  *slog.Logger

	spawner *process.Spawner
	watcher *config.Watcher

	running atomic.Bool
}

// New creates an Application. Nothing is started until RunConsole or
// RunPlain is called.
func New(opts Options) (*Application, error) {
	app := &Application{
		cfg:  opts.Config,
		file: opts.File,
		log:  opts.Logger,
	}
	if app.cfg == nil {
		app.cfg = config.Default()
	}
	if app.log == nil {
		app.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if app.file != "" {
		if abs, err := filepath.Abs(app.file); err == nil {
			app.file = abs
		}
	}

	app.spawner = process.NewSpawner(
		process.WithLogger(app.log.With("component", "process")),
		process.WithMaxProcesses(app.cfg.MaxProcesses),
	)

	if opts.ConfigPath != "" {
		w, err := config.NewWatcher(opts.ConfigPath, config.WithWatchLogger(app.log.With("component", "config")))
		if err != nil {
			return nil, &InitError{Component: "config watcher", Err: err}
		}
		app.watcher = w
	}

	return app, nil
}

// Close stops the config watcher and kills any remaining children.
func (app *Application) Close() error {
	var err error
	if app.watcher != nil {
		err = app.watcher.Close()
	}
	app.spawner.Shutdown(shutdownTimeout)
	return err
}

// newController creates a Controller writing to sink.
func (app *Application) newController(sink runner.Sink) (*runner.Controller, error) {
	rules, err := app.cfg.RuleSet()
	if err != nil {
		return nil, err
	}
	return runner.NewController(sink, runner.Options{
		Toolchain:  app.cfg.Toolchain(),
		Rules:      rules,
		Launcher:   runner.NewLauncher(app.spawner),
		Prompt:     app.cfg.Prompt,
		ClearOnRun: app.cfg.ClearOnRun,
		InputQueue: app.cfg.InputQueue,
		Logger:     app.log,
	}), nil
}

// run starts the file with its current contents.
func (app *Application) run(ctrl *runner.Controller) {
	var source string
	if app.file != "" {
		data, err := os.ReadFile(app.file)
		if err != nil {
			app.log.Warn("reading source failed", "file", app.file, "error", err)
		}
		source = string(data)
	}
	app.log.Info("run", "file", app.file)
	ctrl.Run(app.file, source)
}

// reload applies a changed configuration to later runs.
func (app *Application) reload(ctrl *runner.Controller, cfg *config.Config) {
	rules, err := cfg.RuleSet()
	if err != nil {
		app.log.Warn("ignoring config", "error", err)
		return
	}
	app.cfg = cfg
	ctrl.Reconfigure(cfg.Toolchain(), rules)
	app.log.Info("config applied")
}

// configChanges returns the reload channel, or nil without a watcher.
func (app *Application) configChanges() <-chan *config.Config {
	if app.watcher == nil {
		return nil
	}
	return app.watcher.Changes()
}

func (app *Application) configErrors() <-chan error {
	if app.watcher == nil {
		return nil
	}
	return app.watcher.Errors()
}
