package config

import (
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file when it changes on disk.
//
// The file's directory is watched rather than the file itself, so
// editors that save by renaming a temporary file over it are seen.
type Watcher struct {
	path     string
	debounce time.Duration
	log      *slog.Logger

	watcher *fsnotify.Watcher
	changes chan *Config
	errors  chan error

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long to wait for writes to settle before
// reloading.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithWatchLogger sets the logger.
func WithWatchLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWatcher starts watching path.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		debounce: 100 * time.Millisecond,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		watcher:  fsw,
		changes:  make(chan *Config, 1),
		errors:   make(chan error, 1),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Changes delivers each successfully reloaded configuration.
func (w *Watcher) Changes() <-chan *Config { return w.changes }

// Errors delivers reload and watch failures.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.log.Debug("config file changed", "path", w.path, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.report(err)

		case <-timerC:
			timerC = nil
			cfg, err := Load(w.path)
			if err != nil {
				w.report(err)
				continue
			}
			w.log.Info("config reloaded", "path", w.path)
			select {
			case w.changes <- cfg:
			default:
				// Replace an unread config with the newer one.
				select {
				case <-w.changes:
				default:
				}
				w.changes <- cfg
			}
		}
	}
}

// report delivers err, dropping it if an earlier error is unread.
func (w *Watcher) report(err error) {
	w.log.Warn("config reload failed", "path", w.path, "error", err)
	select {
	case w.errors <- err:
	default:
	}
}
