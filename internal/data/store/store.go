// Package store persists tracker metadata that must survive restarts: the
// hidden set, display names and color keys.
//
// Backends store raw JSON per logical key. State wraps a backend with typed
// accessors that never fail on read: an absent or malformed value yields the
// empty default and a warning in the log.
package store

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-tracker-monitor/internal/util"
)

// Persisted keys
const (
	KeyHiddenTrackers   = "hiddenTrackers"
	KeyTrackerNames     = "trackerNames"
	KeyTrackerColorKeys = "trackerColorKeys"
)

// Keys lists every key the state uses
var Keys = []string{KeyHiddenTrackers, KeyTrackerNames, KeyTrackerColorKeys}

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("store closed")

// Store is a scoped key-value store. Put must replace the value of a key
// atomically: readers observe either the old or the new value.
type Store interface {
	Get(key string) (value []byte, found bool, err error)
	Put(key string, value []byte) error
	Close() error
}

// Backend names accepted by Open
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open creates a store of the named backend rooted at dir
func Open(backend, dir string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(dir)
	case BackendSQLite:
		return NewSQLiteStore(dir)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q (file, sqlite, memory)", backend)
	}
}

// State gives typed access to the persisted keys
type State struct {
	backend Store
}

// NewState wraps backend
func NewState(backend Store) *State {
	return &State{backend: backend}
}

// Backend returns the wrapped store
func (s *State) Backend() Store {
	return s.backend
}

// read decodes key into v. It reports false when the key is absent or
// unreadable, leaving v untouched.
func (s *State) read(key string, v interface{}) bool {
	data, found, err := s.backend.Get(key)
	if err != nil {
		util.LogWarn("Failed to read persisted state, using empty default",
			util.F("key", key), util.F("error", err.Error()))
		return false
	}
	if !found || len(data) == 0 {
		return false
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		util.LogWarn("Persisted state is corrupt, using empty default",
			util.F("key", key), util.F("error", err.Error()))
		return false
	}
	return true
}

func (s *State) write(key string, v interface{}) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.backend.Put(key, data); err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}

// HiddenSerials returns the persisted hidden set
func (s *State) HiddenSerials() map[string]bool {
	var serials []string
	hidden := make(map[string]bool)
	if !s.read(KeyHiddenTrackers, &serials) {
		return hidden
	}
	for _, serial := range serials {
		if serial != "" {
			hidden[serial] = true
		}
	}
	return hidden
}

// SaveHiddenSerials persists the hidden set as a sorted JSON array
func (s *State) SaveHiddenSerials(hidden map[string]bool) error {
	serials := make([]string, 0, len(hidden))
	for serial, ok := range hidden {
		if ok {
			serials = append(serials, serial)
		}
	}
	sort.Strings(serials)
	return s.write(KeyHiddenTrackers, serials)
}

// Names returns the persisted serial -> display name mapping
func (s *State) Names() map[string]string {
	return s.readStringMap(KeyTrackerNames)
}

// SaveNames persists the serial -> display name mapping
func (s *State) SaveNames(names map[string]string) error {
	return s.write(KeyTrackerNames, names)
}

// ColorKeys returns the persisted serial -> color key mapping
func (s *State) ColorKeys() map[string]string {
	return s.readStringMap(KeyTrackerColorKeys)
}

// SaveColorKeys persists the serial -> color key mapping
func (s *State) SaveColorKeys(keys map[string]string) error {
	return s.write(KeyTrackerColorKeys, keys)
}

func (s *State) readStringMap(key string) map[string]string {
	var m map[string]string
	if !s.read(key, &m) || m == nil {
		return make(map[string]string)
	}
	return m
}
