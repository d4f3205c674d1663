package envfile

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher monitors the credential file and triggers a Manager refresh after
// changes settle. Editors often write via rename, so the parent directory is
// watched and events are filtered down to the one file.
type Watcher struct {
	watcher            *fsnotify.Watcher
	manager            *Manager
	stabilityThreshold time.Duration
	done               chan struct{}
	debounceTimers     map[string]*time.Timer
	debounceMu         sync.Mutex
	stopOnce           sync.Once
}

// NewWatcher creates a watcher for the manager's credential file.
func NewWatcher(manager *Manager, stabilityThreshold time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if stabilityThreshold == 0 {
		stabilityThreshold = 500 * time.Millisecond
	}
	return &Watcher{
		watcher:            fsw,
		manager:            manager,
		stabilityThreshold: stabilityThreshold,
		done:               make(chan struct{}),
		debounceTimers:     make(map[string]*time.Timer),
	}, nil
}

// Start begins watching. Watching the directory keeps the subscription alive
// across atomic-save renames of the file itself.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.manager.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch credential directory: %w", err)
	}

	go w.eventLoop()

	log.Info().Str("file", w.manager.path).Msg("Credential watcher started")
	return nil
}

// Stop stops the watcher and cancels pending debounce timers.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	clear(w.debounceTimers)
	w.debounceMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	log.Info().Msg("Credential watcher stopped")
	return nil
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.manager.path) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	w.debounceEvent(event)
}

// debounceEvent coalesces rapid writes to the file into one refresh.
func (w *Watcher) debounceEvent(event fsnotify.Event) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debounceTimers[event.Name]; exists {
		timer.Stop()
	}

	name := event.Name
	w.debounceTimers[name] = time.AfterFunc(w.stabilityThreshold, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, name)
		w.debounceMu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}

		log.Info().Str("file", name).Msg("Credential file changed, refreshing")
		if err := w.manager.Refresh(); err != nil {
			log.Error().Err(err).Str("file", name).Msg("Credential refresh failed")
		}
	})
}
