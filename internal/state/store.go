// Package state persists the UI's opaque snapshot between runs.
package state

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/clayshell/clayshell/internal/logging"
)

var stateLog = logging.ForComponent(logging.CompState)

// Store reads and writes one schema-free JSON snapshot owned entirely by
// the UI layer. The host stores it verbatim and never interprets it.
type Store struct {
	path string
}

// NewStore creates a store persisting to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save writes the snapshot as pretty-printed JSON. Returns false (and
// logs) on any failure; it never propagates an error to the caller.
func (s *Store) Save(snapshot json.RawMessage) bool {
	if !json.Valid(snapshot) {
		stateLog.Warn("state_save_rejected_invalid_json")
		return false
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, snapshot, "", "  "); err != nil {
		stateLog.Warn("state_indent_failed", slog.String("error", err.Error()))
		return false
	}
	pretty.WriteByte('\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		stateLog.Warn("state_dir_failed", slog.String("error", err.Error()))
		return false
	}
	if err := os.WriteFile(s.path, pretty.Bytes(), 0o644); err != nil {
		stateLog.Warn("state_write_failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

// Load returns the persisted snapshot, or ok=false when the file is
// missing or unparsable. Corrupted state is indistinguishable from no
// state: both yield absent, and the UI starts fresh.
func (s *Store) Load() (json.RawMessage, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			stateLog.Warn("state_read_failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	if !json.Valid(data) {
		stateLog.Warn("state_file_corrupt", slog.String("path", s.path))
		return nil, false
	}
	return json.RawMessage(data), true
}
