package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ui-state.json")
	s := NewStore(path)

	snapshot := json.RawMessage(`{"tabs":[{"id":"a","dir":"/tmp"}],"selected":"a"}`)
	require.True(t, s.Save(snapshot), "save creates the persistence directory")

	loaded, ok := s.Load()
	require.True(t, ok)
	assert.JSONEq(t, string(snapshot), string(loaded))

	// Stored pretty-printed, but returned verbatim as written.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "\n  "), "snapshot is pretty-printed on disk")
}

func TestStore_AbsentFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "never-written.json"))
	snapshot, ok := s.Load()
	assert.False(t, ok)
	assert.Nil(t, snapshot)
}

func TestStore_CorruptFileIsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ui-state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, ok := NewStore(path).Load()
	assert.False(t, ok, "corrupted state is indistinguishable from no state")
}

func TestStore_RejectsInvalidSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ui-state.json")
	s := NewStore(path)

	assert.False(t, s.Save(json.RawMessage("{oops")))
	assert.NoFileExists(t, path, "a rejected save leaves prior state untouched")
}

func TestStore_SaveFailureReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	// The parent "directory" is a file, so MkdirAll fails.
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s := NewStore(filepath.Join(blocker, "state.json"))
	assert.False(t, s.Save(json.RawMessage(`{}`)))
}
