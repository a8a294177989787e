package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeFunc is called with the watched path after its content changed
type ChangeFunc func(path string)

type watchedFile struct {
	hash     string
	callback ChangeFunc
	debounce time.Duration
	timer    *time.Timer
}

// FileWatcher watches JSON source files for content changes.
//
// The parent directory is watched rather than the file itself so that
// editors that save by renaming a temp file over the original still
// trigger a change.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	mu      sync.Mutex
	files   map[string]*watchedFile
	dirs    map[string]int
	done    chan struct{}
	once    sync.Once
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher() (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &FileWatcher{
		watcher: w,
		files:   make(map[string]*watchedFile),
		dirs:    make(map[string]int),
		done:    make(chan struct{}),
	}, nil
}

// Watch registers a file with a debounce duration. A zero debounce runs
// the callback as soon as a changed hash is seen.
func (fw *FileWatcher) Watch(path string, callback ChangeFunc, debounce time.Duration) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	hash, err := fileHash(abs)
	if err != nil {
		return fmt.Errorf("failed to get initial hash: %w", err)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, exists := fw.files[abs]; !exists {
		dir := filepath.Dir(abs)
		if fw.dirs[dir] == 0 {
			if err := fw.watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch file: %w", err)
			}
		}
		fw.dirs[dir]++
	}

	fw.files[abs] = &watchedFile{
		hash:     hash,
		callback: callback,
		debounce: debounce,
	}
	return nil
}

// Start begins watching for file changes
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
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			fw.schedule(filepath.Clean(event.Name))

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  Watcher error: %v", err)

		case <-fw.done:
			return
		}
	}
}

// schedule runs the change check for path, restarting its debounce timer
func (fw *FileWatcher) schedule(path string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	wf, ok := fw.files[path]
	if !ok {
		return
	}

	if wf.debounce == 0 {
		go fw.handleFileChange(path)
		return
	}

	if wf.timer != nil {
		wf.timer.Stop()
	}
	wf.timer = time.AfterFunc(wf.debounce, func() {
		fw.handleFileChange(path)
	})
}

// handleFileChange calls the callback only if the content hash moved
func (fw *FileWatcher) handleFileChange(path string) {
	newHash, err := fileHash(path)
	if err != nil {
		// The file may be mid-rename; the Create that follows retries.
		if !os.IsNotExist(err) {
			log.Printf("⚠️  Failed to get hash for %s: %v", path, err)
		}
		return
	}

	fw.mu.Lock()
	wf, ok := fw.files[path]
	if !ok || wf.hash == newHash {
		fw.mu.Unlock()
		return
	}
	wf.hash = newHash
	callback := wf.callback
	fw.mu.Unlock()

	callback(path)
}

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

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Unwatch stops watching a specific file
func (fw *FileWatcher) Unwatch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	wf, ok := fw.files[abs]
	if !ok {
		return nil
	}
	if wf.timer != nil {
		wf.timer.Stop()
	}
	delete(fw.files, abs)

	dir := filepath.Dir(abs)
	fw.dirs[dir]--
	if fw.dirs[dir] > 0 {
		return nil
	}
	delete(fw.dirs, dir)
	return fw.watcher.Remove(dir)
}

// Close stops the file watcher
func (fw *FileWatcher) Close() error {
	fw.once.Do(func() { close(fw.done) })

	fw.mu.Lock()
	for _, wf := range fw.files {
		if wf.timer != nil {
			wf.timer.Stop()
		}
	}
	fw.mu.Unlock()

	return fw.watcher.Close()
}
