package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesStructuredLogs(t *testing.T) {
	dir := t.TempDir()
	Init(Config{LogDir: dir, Level: "debug"})
	defer Shutdown()

	log := ForComponent(CompOverlay)
	log.Info("sync_done", "files", 3)

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	require.NoError(t, err)

	var entry map[string]any
	line := strings.TrimSpace(strings.Split(string(data), "\n")[0])
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "sync_done", entry["msg"])
	assert.Equal(t, "overlay", entry["component"])
}

func TestForComponent_BeforeInitBindsLate(t *testing.T) {
	Shutdown()

	// Created while the global handler is the discard default.
	log := ForComponent(CompWatch)

	dir := t.TempDir()
	Init(Config{LogDir: dir})
	defer Shutdown()

	log.Warn("late_bound")

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "late_bound")
	assert.Contains(t, string(data), CompWatch)
}

func TestLogger_SafeBeforeInit(t *testing.T) {
	Shutdown()
	assert.NotPanics(t, func() {
		Logger().Info("discarded")
		ForComponent(CompHost).Debug("also discarded")
	})
}
