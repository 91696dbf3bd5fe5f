// Package watcher provides a debounced single-file watcher used for the
// import-file path: the desktop CRM drops JSON exports that must be
// re-imported when they change.
package watcher

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches one file and fires a callback when its content
// actually changes. Editors and the desktop app tend to emit bursts of
// write events for a single save, so events are debounced and the file
// content is hashed to suppress no-op notifications.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	callback func(string)
	debounce time.Duration

	mu       sync.Mutex
	lastHash string
	timer    *time.Timer
}

// New creates a watcher for path. The callback runs on the watcher's
// goroutine after each debounced content change.
func New(path string, debounce time.Duration, callback func(string)) (*FileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	hash, err := fileHash(path)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to get initial hash: %w", err)
	}

	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch file: %w", err)
	}

	return &FileWatcher{
		watcher:  fsw,
		path:     path,
		callback: callback,
		debounce: debounce,
		lastHash: hash,
	}, nil
}

// Start begins delivering change notifications.
func (fw *FileWatcher) Start() {
	go fw.watchLoop()
}

func (fw *FileWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				fw.schedule()
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  Watcher error: %v", err)
		}
	}
}

// schedule arms (or re-arms) the debounce timer. A zero debounce checks
// the file immediately.
func (fw *FileWatcher) schedule() {
	if fw.debounce == 0 {
		go fw.handleChange()
		return
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounce, fw.handleChange)
}

// handleChange re-hashes the file and fires the callback only when the
// content differs from the last delivered version.
func (fw *FileWatcher) handleChange() {
	newHash, err := fileHash(fw.path)
	if err != nil {
		log.Printf("⚠️  Failed to hash %s: %v", fw.path, err)
		return
	}

	fw.mu.Lock()
	changed := newHash != fw.lastHash
	if changed {
		fw.lastHash = newHash
	}
	fw.mu.Unlock()

	if changed {
		fw.callback(fw.path)
	}
}

// fileHash calculates the SHA-256 hash of a file.
func fileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

// Close stops the watcher.
func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.mu.Unlock()
	return fw.watcher.Close()
}
