package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ConfigChange is delivered on the watcher's channel whenever the config
// file on disk changes and reparses cleanly.
type ConfigChange struct {
	Config *AppConfig
}

// Watcher watches the directory containing a config file and reloads it
// whenever the file is written, renamed into place, or otherwise changed.
// It watches the directory rather than the file itself: editors commonly
// replace a file via rename rather than in-place write, which an
// fsnotify watch on the bare file path would miss.
type Watcher struct {
	configPath string
	watcher    *fsnotify.Watcher

	mu         sync.Mutex
	isWatching bool
}

// NewWatcher creates a Watcher for the given config file path.
func NewWatcher(configPath string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating fsnotify watcher: %w", err)
	}
	return &Watcher{configPath: configPath, watcher: w}, nil
}

// Watch starts watching the config file's directory and returns a channel
// of successfully-reloaded configurations plus a channel of errors
// (malformed reloads are reported, not fatal). Both channels close when
// Stop is called.
func (w *Watcher) Watch() (<-chan ConfigChange, <-chan error) {
	changes := make(chan ConfigChange, 10)
	errs := make(chan error, 10)

	w.mu.Lock()
	if w.isWatching {
		w.mu.Unlock()
		close(changes)
		close(errs)
		return changes, errs
	}

	dir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(dir); err != nil {
		w.mu.Unlock()
		errs <- fmt.Errorf("config: watching directory %s: %w", dir, err)
		close(changes)
		close(errs)
		return changes, errs
	}
	w.isWatching = true
	w.mu.Unlock()

	go func() {
		defer close(changes)
		defer close(errs)

		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
					continue
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
					continue
				}
				cfg, err := Load(w.configPath)
				if err != nil {
					errs <- fmt.Errorf("config: reload failed: %w", err)
					continue
				}
				changes <- ConfigChange{Config: cfg}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				errs <- err
			}
		}
	}()

	return changes, errs
}

// Stop closes the underlying fsnotify watcher, ending the Watch goroutine.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isWatching {
		return nil
	}
	w.isWatching = false
	return w.watcher.Close()
}
