// Package watcher follows local files with fsnotify and publishes
// debounced file_updated events to an event hub.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/brianly1003/aidev/internal/debounce"
	"github.com/brianly1003/aidev/internal/domain/events"
	"github.com/brianly1003/aidev/internal/domain/ports"
)

// DefaultWindow is the default quiet period before a change is reported.
const DefaultWindow = 200 * time.Millisecond

// Watcher reports changes to a set of files. Files are watched through
// their parent directories so editors that save by rename are followed.
type Watcher struct {
	hub            ports.EventPublisher
	window         time.Duration
	ignorePatterns []string

	mu        sync.RWMutex
	watcher   *fsnotify.Watcher
	files     map[string]bool // absolute file path -> tracked
	dirs      map[string]int  // watched directory -> tracked files in it
	running   bool
	cancel    context.CancelFunc
	debouncer *debounce.Debouncer[events.FileChangeType]
}

// NewWatcher creates a watcher that publishes to hub.
func NewWatcher(hub ports.EventPublisher, window time.Duration, ignorePatterns []string) *Watcher {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Watcher{
		hub:            hub,
		window:         window,
		ignorePatterns: ignorePatterns,
		files:          make(map[string]bool),
		dirs:           make(map[string]int),
	}
}

// Start begins watching. Files added before Start are picked up.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for dir := range w.dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	w.watcher = watcher
	w.debouncer = debounce.NewWithMerge(w.window, mergeChangeTypes, w.handleDebouncedEvent)

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	go w.eventLoop(watchCtx, watcher)

	log.Info().
		Int("files", len(w.files)).
		Dur("window", w.window).
		Msg("file watcher started")
	return nil
}

// Stop terminates watching. Pending changes are dropped.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false

	if w.cancel != nil {
		w.cancel()
	}
	if w.debouncer != nil {
		w.debouncer.Stop()
	}

	err := w.watcher.Close()
	w.watcher = nil
	log.Info().Msg("file watcher stopped")
	return err
}

// Add tracks path, which must be an existing regular file.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.files[abs] {
		return nil
	}
	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 && w.watcher != nil {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	w.files[abs] = true
	w.dirs[dir]++
	return nil
}

// Remove stops tracking path.
func (w *Watcher) Remove(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.files[abs] {
		return
	}
	delete(w.files, abs)
	dir := filepath.Dir(abs)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		if w.watcher != nil {
			_ = w.watcher.Remove(dir)
		}
	}
	if w.debouncer != nil {
		w.debouncer.Cancel(abs)
	}
}

// Files returns the tracked files.
func (w *Watcher) Files() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	files := make([]string, 0, len(w.files))
	for f := range w.files {
		files = append(files, f)
	}
	return files
}

// IsRunning returns true if the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// eventLoop handles fsnotify events.
func (w *Watcher) eventLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// handleEvent processes a single fsnotify event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	w.mu.RLock()
	tracked := w.files[path]
	debouncer := w.debouncer
	w.mu.RUnlock()

	if !tracked || debouncer == nil || w.shouldIgnore(path) {
		return
	}

	var changeType events.FileChangeType
	switch {
	case event.Has(fsnotify.Create):
		changeType = events.FileChangeCreated
	case event.Has(fsnotify.Write):
		changeType = events.FileChangeModified
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// A save by rename shows up as remove/rename followed by create.
		changeType = events.FileChangeDeleted
	default:
		return
	}

	debouncer.Trigger(path, changeType)
}

// handleDebouncedEvent is called after the debounce window expires.
func (w *Watcher) handleDebouncedEvent(path string, changeType events.FileChangeType) {
	var size int64
	if changeType != events.FileChangeDeleted {
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			changeType = events.FileChangeDeleted
		case err == nil:
			size = info.Size()
		}
	}

	w.hub.Publish(events.NewFileUpdatedEvent(path, changeType, size))

	log.Debug().
		Str("path", path).
		Str("change", string(changeType)).
		Int64("size", size).
		Msg("file changed")
}

// shouldIgnore checks if a path matches an ignore pattern.
func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.ignorePatterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// mergeChangeTypes combines two change types for the same file.
func mergeChangeTypes(existing, next events.FileChangeType) events.FileChangeType {
	// A file deleted and recreated within the window was saved in place.
	if existing == events.FileChangeDeleted && next == events.FileChangeCreated {
		return events.FileChangeModified
	}
	if next == events.FileChangeDeleted {
		return events.FileChangeDeleted
	}
	if existing == events.FileChangeCreated {
		return events.FileChangeCreated
	}
	return next
}
