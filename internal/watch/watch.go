// Package watch reports file changes under the served directory.
package watch

import (
	"context"
	"encoding/hex"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/zeebo/blake3"
)

// Event is a wrapper around fsnotify.Event
type Event struct {
	Name string
	Op   fsnotify.Op
}

// Watcher watches a directory tree and reports debounced changes
type Watcher struct {
	watcher  *fsnotify.Watcher
	Root     string
	Debounce time.Duration
	OnEvent  func(Event)

	// emitMu is held while reporting so Start cannot return mid-report
	emitMu sync.Mutex
	closed bool

	mu      sync.Mutex
	digests map[string]string
	pending map[string]fsnotify.Op
	timer   *time.Timer
}

// New creates a new watcher for root
func New(root string, debounce time.Duration, onEvent func(Event)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:  w,
		Root:     root,
		Debounce: debounce,
		OnEvent:  onEvent,
		digests:  make(map[string]string),
		pending:  make(map[string]fsnotify.Op),
	}, nil
}

// Add registers root and its subdirectories, skipping hidden directories,
// and records the current digest of every file so unchanged rewrites are dropped.
func (w *Watcher) Add() error {
	return filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return w.skipUnreadable(path, d, err)
		}
		if d.IsDir() {
			if path != w.Root && isHidden(path) {
				return filepath.SkipDir
			}
			if err := w.watcher.Add(path); err != nil {
				return w.skipUnreadable(path, d, err)
			}
			return nil
		}
		if d.Type().IsRegular() {
			if sum, err := hashFile(path); err == nil {
				w.mu.Lock()
				w.digests[path] = sum
				w.mu.Unlock()
			}
		}
		return nil
	})
}

// skipUnreadable logs a walk error below the root and keeps walking the siblings.
// Errors on the root itself are returned.
func (w *Watcher) skipUnreadable(path string, d fs.DirEntry, err error) error {
	if path == w.Root {
		return err
	}
	slog.Warn("Skipping directory in file watcher", "path", path, "error", err)
	if d != nil && d.IsDir() {
		return filepath.SkipDir
	}
	return nil
}

// Start processes events until ctx is cancelled. It closes the underlying watcher on return.
func (w *Watcher) Start(ctx context.Context) {
	defer func() {
		if err := w.watcher.Close(); err != nil {
			slog.Warn("Failed to close file watcher", "error", err)
		}
		w.emitMu.Lock()
		w.closed = true
		w.emitMu.Unlock()

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Ignore chmod and other meta events
			if event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}

			// Handle new directories
			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() && !isHidden(event.Name) {
					_ = w.watcher.Add(event.Name)
				}
			}

			w.schedule(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Watcher error", "error", err)
		}
	}
}

func (w *Watcher) schedule(event fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[event.Name] |= event.Op
	if w.timer != nil {
		w.timer.Reset(w.Debounce)
		return
	}
	w.timer = time.AfterFunc(w.Debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.timer = nil
	w.mu.Unlock()

	for name, op := range pending {
		if !w.changed(name) {
			continue
		}
		if !w.emit(Event{Name: name, Op: op}) {
			return
		}
	}
}

// emit reports e unless Start has returned.
func (w *Watcher) emit(e Event) bool {
	w.emitMu.Lock()
	defer w.emitMu.Unlock()
	if w.closed {
		return false
	}
	w.OnEvent(e)
	return true
}

// changed compares the file's digest with the last one seen.
// Removed files and directories always count as changed.
func (w *Watcher) changed(name string) bool {
	info, err := os.Stat(name)
	if err != nil {
		w.mu.Lock()
		delete(w.digests, name)
		w.mu.Unlock()
		return true
	}
	if !info.Mode().IsRegular() {
		return true
	}

	sum, err := hashFile(name)
	if err != nil {
		return true
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.digests[name]; ok && prev == sum {
		return false
	}
	w.digests[name] = sum
	return true
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return len(base) > 1 && base[0] == '.'
}
