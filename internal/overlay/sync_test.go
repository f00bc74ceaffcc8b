package overlay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syncedOverlay(t *testing.T) *Overlay {
	t.Helper()
	o := New(filepath.Join(t.TempDir(), "ui"))
	require.NoError(t, o.Sync())
	return o
}

func readOverlayFile(t *testing.T, o *Overlay, name string) string {
	t.Helper()
	data, err := os.ReadFile(o.Path(name))
	require.NoError(t, err)
	return string(data)
}

func TestSync_FirstRunPopulatesOverlay(t *testing.T) {
	o := syncedOverlay(t)

	for _, name := range EditableFiles {
		assert.FileExists(t, o.Path(name))
	}
	assert.FileExists(t, o.Path(BridgeFile))
	assert.FileExists(t, o.Path(GuidanceFile))
	assert.DirExists(t, o.PluginDir())

	digest, err := bundleDigest()
	require.NoError(t, err)
	assert.Equal(t, digest, o.storedDigest(), "sidecar records the synced bundle digest")
}

func TestSync_SecondRunIsIdempotent(t *testing.T) {
	o := syncedOverlay(t)

	// A user (or agent) edit to an editable file survives re-sync while
	// the bundle is unchanged: the digest gate skips all copies.
	custom := "/* customized */"
	require.NoError(t, os.WriteFile(o.Path("renderer.js"), []byte(custom), 0o644))

	sidecarBefore, err := os.Stat(filepath.Join(o.Root(), digestSidecarName))
	require.NoError(t, err)

	require.NoError(t, o.Sync())

	assert.Equal(t, custom, readOverlayFile(t, o, "renderer.js"))
	sidecarAfter, err := os.Stat(filepath.Join(o.Root(), digestSidecarName))
	require.NoError(t, err)
	assert.Equal(t, sidecarBefore.ModTime(), sidecarAfter.ModTime(), "sidecar is not rewritten when the digest matches")
}

func TestSync_DigestChangeOverwritesEdits(t *testing.T) {
	o := syncedOverlay(t)

	require.NoError(t, os.WriteFile(o.Path("renderer.js"), []byte("broken"), 0o644))
	// Simulate an updated bundle by invalidating the recorded digest.
	require.NoError(t, os.WriteFile(filepath.Join(o.Root(), digestSidecarName), []byte("stale"), 0o644))

	require.NoError(t, o.Sync())

	assert.NotEqual(t, "broken", readOverlayFile(t, o, "renderer.js"), "changed bundle wins over overlay edits")
	digest, err := bundleDigest()
	require.NoError(t, err)
	assert.Equal(t, digest, o.storedDigest())
}

func TestSync_BridgeAlwaysOverwritten(t *testing.T) {
	o := syncedOverlay(t)

	require.NoError(t, os.WriteFile(o.Path(BridgeFile), []byte("evil"), 0o644))
	require.NoError(t, o.Sync())

	bundled, err := BundleBridge()
	require.NoError(t, err)
	assert.Equal(t, string(bundled), readOverlayFile(t, o, BridgeFile),
		"overlay bridge edits never survive a sync")
}

func TestSync_AssetsArePresenceGated(t *testing.T) {
	o := syncedOverlay(t)
	asset := o.Path("vendor/xterm-lite.css")
	assert.FileExists(t, asset)

	// Modified asset is left alone (presence check only).
	require.NoError(t, os.WriteFile(asset, []byte("patched"), 0o644))
	require.NoError(t, o.Sync())
	data, err := os.ReadFile(asset)
	require.NoError(t, err)
	assert.Equal(t, "patched", string(data))

	// Deleted asset comes back.
	require.NoError(t, os.Remove(asset))
	require.NoError(t, o.Sync())
	assert.FileExists(t, asset)
}

func TestSync_GuidanceWrittenOncePerOverlayLifetime(t *testing.T) {
	o := syncedOverlay(t)

	// User edits persist indefinitely.
	require.NoError(t, os.WriteFile(o.Path(GuidanceFile), []byte("my notes"), 0o644))
	require.NoError(t, o.Sync())
	assert.Equal(t, "my notes", readOverlayFile(t, o, GuidanceFile))

	// Deleting it without a reset keeps it deleted: the regular sync path
	// does not regenerate guidance.
	require.NoError(t, os.Remove(o.Path(GuidanceFile)))
	require.NoError(t, o.Sync())
	assert.NoFileExists(t, o.Path(GuidanceFile))

	// Only the explicit reset path recreates it.
	require.NoError(t, o.ResetGuidance())
	assert.FileExists(t, o.Path(GuidanceFile))
}

func TestResetEditableSource_LeavesGuidanceAndPlugins(t *testing.T) {
	o := syncedOverlay(t)

	require.NoError(t, os.WriteFile(o.Path(GuidanceFile), []byte("my notes"), 0o644))
	plugin := filepath.Join(o.PluginDir(), "extra.js")
	require.NoError(t, os.WriteFile(plugin, []byte("// plugin"), 0o644))
	require.NoError(t, os.WriteFile(o.Path("styles.css"), []byte("body{}"), 0o644))

	require.NoError(t, o.ResetEditableSource())

	assert.NotEqual(t, "body{}", readOverlayFile(t, o, "styles.css"), "editable files restored from bundle")
	assert.Equal(t, "my notes", readOverlayFile(t, o, GuidanceFile))
	assert.FileExists(t, plugin)
}

func TestNuke_ClearsPluginsAndRegeneratesEverything(t *testing.T) {
	o := syncedOverlay(t)

	require.NoError(t, os.WriteFile(filepath.Join(o.PluginDir(), "a.js"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(o.PluginDir(), "b.css"), []byte("y"), 0o644))
	require.NoError(t, os.WriteFile(o.Path(GuidanceFile), []byte("my notes"), 0o644))

	require.NoError(t, o.Nuke())

	entries, err := os.ReadDir(o.PluginDir())
	require.NoError(t, err)
	assert.Empty(t, entries, "nuke empties the plugin directory")

	assert.FileExists(t, o.Path(GuidanceFile))
	assert.NotEqual(t, "my notes", readOverlayFile(t, o, GuidanceFile), "guidance regenerated from template")
}
