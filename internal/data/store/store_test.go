package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Get(string) ([]byte, bool, error) { return nil, false, errors.New("disk on fire") }
func (failingStore) Put(string, []byte) error        { return errors.New("disk on fire") }
func (failingStore) Close() error                    { return nil }

func TestState_EmptyDefaults(t *testing.T) {
	state := NewState(NewMemoryStore())

	assert.Empty(t, state.HiddenSerials())
	assert.NotNil(t, state.HiddenSerials())
	assert.Empty(t, state.Names())
	assert.NotNil(t, state.Names())
	assert.Empty(t, state.ColorKeys())
}

func TestState_RoundTrip(t *testing.T) {
	backend := NewMemoryStore()
	state := NewState(backend)

	require.NoError(t, state.SaveHiddenSerials(map[string]bool{"B": true, "A": true, "C": false}))
	require.NoError(t, state.SaveNames(map[string]string{"A": "Van"}))
	require.NoError(t, state.SaveColorKeys(map[string]string{"A": "k1"}))

	raw, found, err := backend.Get(KeyHiddenTrackers)
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `["A","B"]`, string(raw))

	fresh := NewState(backend)
	assert.Equal(t, map[string]bool{"A": true, "B": true}, fresh.HiddenSerials())
	assert.Equal(t, map[string]string{"A": "Van"}, fresh.Names())
	assert.Equal(t, map[string]string{"A": "k1"}, fresh.ColorKeys())
}

func TestState_CorruptValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		raw  string
	}{
		{"hidden is object", KeyHiddenTrackers, `{"A":true}`},
		{"hidden is garbage", KeyHiddenTrackers, `[[[`},
		{"names is array", KeyTrackerNames, `["A"]`},
		{"names is null", KeyTrackerNames, `null`},
		{"color keys truncated", KeyTrackerColorKeys, `{"A":"k`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := NewMemoryStore()
			require.NoError(t, backend.Put(tt.key, []byte(tt.raw)))
			state := NewState(backend)

			assert.Empty(t, state.HiddenSerials())
			assert.Empty(t, state.Names())
			assert.Empty(t, state.ColorKeys())
		})
	}
}

func TestState_BackendFailures(t *testing.T) {
	state := NewState(failingStore{})

	assert.Empty(t, state.HiddenSerials())
	assert.Empty(t, state.Names())

	err := state.SaveNames(map[string]string{"A": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyTrackerNames)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := NewMemoryStore()
	value := []byte(`{"A":"x"}`)
	require.NoError(t, s.Put(KeyTrackerNames, value))
	value[2] = 'Z'

	got, found, err := s.Get(KeyTrackerNames)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"A":"x"}`, string(got))

	require.NoError(t, s.Close())
	_, _, err = s.Get(KeyTrackerNames)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Put(KeyTrackerNames, nil), ErrClosed)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	for _, backend := range []string{"", BackendFile, BackendSQLite, BackendMemory} {
		s, err := Open(backend, dir)
		require.NoError(t, err, backend)
		require.NoError(t, s.Put(KeyTrackerNames, []byte(`{"A":"x"}`)))
		got, found, err := s.Get(KeyTrackerNames)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, `{"A":"x"}`, string(got))
		require.NoError(t, s.Close())
	}

	_, err := Open("redis", dir)
	assert.Error(t, err)
}
