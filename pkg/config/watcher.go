package config

import (
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file on change and hands the fresh Autopilot
// tuning to subscribers. Only the autopilot section is hot-reloadable; the
// rest of the config requires a restart.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher

	mu        sync.Mutex
	listeners []func(AutopilotConfig)
}

// NewWatcher starts watching the directory containing path. Editors often
// replace files via rename, so the parent directory is watched rather than
// the file itself.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{path: path, watcher: fw}
	go w.loop()
	return w, nil
}

// OnAutopilotChange registers a callback invoked with the reloaded tuning.
func (w *Watcher) OnAutopilotChange(fn func(AutopilotConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			cfg, err := LoadFromFile(w.path)
			if err != nil {
				log.Printf("[Config] reload of %s failed: %v", w.path, err)
				continue
			}
			log.Printf("[Config] reloaded autopilot tuning from %s", w.path)
			w.mu.Lock()
			listeners := append([]func(AutopilotConfig){}, w.listeners...)
			w.mu.Unlock()
			for _, fn := range listeners {
				fn(cfg.Autopilot)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[Config] watcher error: %v", err)
		}
	}
}
