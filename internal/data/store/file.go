package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/penwyp/go-tracker-monitor/internal/util"
)

// FileStore keeps one JSON file per key under baseDir, with an in-memory
// copy of every value it has read or written.
type FileStore struct {
	baseDir     string
	mu          sync.RWMutex
	memoryCache map[string][]byte
	closed      bool
}

// NewFileStore creates baseDir if needed and preloads existing keys
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	fs := &FileStore{
		baseDir:     baseDir,
		memoryCache: make(map[string][]byte),
	}
	fs.Preload()
	util.LogInfof("Using file state store at %s", baseDir)
	return fs, nil
}

// Dir returns the directory holding the key files
func (fs *FileStore) Dir() string {
	return fs.baseDir
}

func (fs *FileStore) pathFor(key string) string {
	return filepath.Join(fs.baseDir, key+".json")
}

// keyFromPath maps a file path back to its key, or "" for foreign files
func keyFromPath(path string) string {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, ".json") {
		return ""
	}
	key := strings.TrimSuffix(name, ".json")
	for _, k := range Keys {
		if k == key {
			return key
		}
	}
	return ""
}

// Preload reads every known key file into memory. Unreadable files are
// skipped; State falls back to defaults for them.
func (fs *FileStore) Preload() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	loaded := 0
	for _, key := range Keys {
		data, err := os.ReadFile(fs.pathFor(key))
		if err != nil {
			if !os.IsNotExist(err) {
				util.LogWarnf("Failed to preload %s: %v", key, err)
			}
			continue
		}
		fs.memoryCache[key] = data
		loaded++
	}
	util.LogDebugf("Preloaded %d persisted keys from %s", loaded, fs.baseDir)
}

func (fs *FileStore) Get(key string) ([]byte, bool, error) {
	fs.mu.RLock()
	if fs.closed {
		fs.mu.RUnlock()
		return nil, false, ErrClosed
	}
	if data, ok := fs.memoryCache[key]; ok {
		fs.mu.RUnlock()
		return data, true, nil
	}
	fs.mu.RUnlock()

	data, err := os.ReadFile(fs.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	fs.mu.Lock()
	fs.memoryCache[key] = data
	fs.mu.Unlock()
	return data, true, nil
}

// Put writes to a temporary file and renames it over the key file
func (fs *FileStore) Put(key string, value []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.closed {
		return ErrClosed
	}

	target := fs.pathFor(key)
	tmpFile := target + ".tmp"
	if err := os.WriteFile(tmpFile, value, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpFile, err)
	}
	if err := os.Rename(tmpFile, target); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename %s: %w", tmpFile, err)
	}

	data := make([]byte, len(value))
	copy(data, value)
	fs.memoryCache[key] = data
	return nil
}

// refresh re-reads key from disk and reports whether its content differs
// from the cached copy
func (fs *FileStore) refresh(key string) bool {
	data, err := os.ReadFile(fs.pathFor(key))

	fs.mu.Lock()
	defer fs.mu.Unlock()

	cached, had := fs.memoryCache[key]
	if err != nil {
		if had {
			delete(fs.memoryCache, key)
			return true
		}
		return false
	}
	if had && string(cached) == string(data) {
		return false
	}
	fs.memoryCache[key] = data
	return true
}

func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.closed = true
	fs.memoryCache = make(map[string][]byte)
	return nil
}
