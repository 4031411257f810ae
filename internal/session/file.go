package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultWatchDelay coalesces bursts of file events into one reload.
const DefaultWatchDelay = 100 * time.Millisecond

// FileStorage stores values as a JSON object in a single file. Every
// read goes to disk so changes made by other processes are seen.
type FileStorage struct {
	path       string
	watchDelay time.Duration
	mu         sync.Mutex
}

// NewFileStorage creates a FileStorage backed by path. The file is created
// on first write.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{
		path:       filepath.Clean(path),
		watchDelay: DefaultWatchDelay,
	}
}

// Path returns the backing file path.
func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *FileStorage) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

func (f *FileStorage) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return f.save(values)
}

func (f *FileStorage) Close() error {
	return nil
}

func (f *FileStorage) load() (map[string]string, error) {
	values := make(map[string]string)

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", f.path, err)
	}
	return values, nil
}

func (f *FileStorage) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	// Atomic write: write to temp file, then rename
	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, f.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Watch watches the session file's directory and calls onChange, at most
// once per quiet period, after the file is written, replaced or removed.
func (f *FileStorage) Watch(ctx context.Context, onChange func()) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create session watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	debounced := debounce.New(f.watchDelay)
	var stopped sync.Once
	done := make(chan struct{})

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				stopped.Do(func() { close(done) })
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != f.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}

				log.Debug().
					Str("file", event.Name).
					Str("op", event.Op.String()).
					Msg("session file changed")

				debounced(func() {
					select {
					case <-done:
						return
					default:
					}
					onChange()
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("session watcher error")
			}
		}
	}()

	log.Debug().Str("path", f.path).Msg("watching session file")
	return nil
}
