package overlay

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/clayshell/clayshell/internal/logging"
)

var overlayLog = logging.ForComponent(logging.CompOverlay)

// Overlay is the writable mirror of the bundled UI source. Agents running
// inside a session edit these files to change the shell's appearance and
// behavior live.
type Overlay struct {
	root string
}

// New creates an overlay rooted at dir. Call Sync before serving from it.
func New(root string) *Overlay {
	return &Overlay{root: root}
}

// Root returns the overlay root directory.
func (o *Overlay) Root() string { return o.root }

// PluginDir returns the directory for user-dropped plugin resources.
func (o *Overlay) PluginDir() string { return filepath.Join(o.root, PluginDirName) }

// Path returns the overlay path for a bundle-relative file name.
func (o *Overlay) Path(name string) string { return filepath.Join(o.root, filepath.FromSlash(name)) }

// Sync brings the overlay up to date with the bundle:
//
//   - editable files are copied only when the bundle digest changed since
//     the last successful sync (the sidecar digest is rewritten only after
//     every editable copy succeeded)
//   - static assets are copied when absent, never hash-checked
//   - the bridge file is overwritten unconditionally so the overlay copy
//     can never drift from the trusted bundle version
//   - the guidance document is written once per overlay lifetime
//
// Individual copy failures are logged and skipped; they never abort the
// remaining work.
func (o *Overlay) Sync() error {
	if err := o.ensureDirs(); err != nil {
		return err
	}

	digest, err := bundleDigest()
	if err != nil {
		return fmt.Errorf("compute bundle digest: %w", err)
	}

	if stored := o.storedDigest(); stored != digest {
		if o.copyEditable() {
			o.writeDigest(digest)
		}
	}

	o.copyMissingAssets()
	o.copyBridge()
	o.ensureGuidance()
	return nil
}

// ResetEditableSource restores the editable UI files from the bundle,
// leaving the guidance document and plugins untouched.
func (o *Overlay) ResetEditableSource() error {
	if err := o.ensureDirs(); err != nil {
		return err
	}
	digest, err := bundleDigest()
	if err != nil {
		return fmt.Errorf("compute bundle digest: %w", err)
	}
	if o.copyEditable() {
		o.writeDigest(digest)
	}
	overlayLog.Info("overlay_editable_reset")
	return nil
}

// ResetGuidance deletes the guidance document and re-runs the full sync,
// which regenerates only the now-absent document.
func (o *Overlay) ResetGuidance() error {
	o.removeGuidance()
	overlayLog.Info("overlay_guidance_reset")
	return o.Sync()
}

// Nuke resets editable source and guidance, deletes every file in the
// plugin directory, then re-runs the full sync.
func (o *Overlay) Nuke() error {
	if err := o.ResetEditableSource(); err != nil {
		return err
	}
	o.removeGuidance()
	o.clearPlugins()
	overlayLog.Info("overlay_nuked")
	return o.Sync()
}

func (o *Overlay) ensureDirs() error {
	for _, dir := range []string{o.root, o.PluginDir(), filepath.Join(o.root, AssetDirName)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create overlay dir %s: %w", dir, err)
		}
	}
	return nil
}

// storedDigest reads the sidecar digest; empty on first run or read error.
func (o *Overlay) storedDigest() string {
	data, err := os.ReadFile(filepath.Join(o.root, digestSidecarName))
	if err != nil {
		return ""
	}
	return string(data)
}

func (o *Overlay) writeDigest(digest string) {
	path := filepath.Join(o.root, digestSidecarName)
	if err := os.WriteFile(path, []byte(digest), 0o644); err != nil {
		overlayLog.Warn("digest_write_failed", slog.String("error", err.Error()))
	}
}

// copyEditable overwrites overlay copies of every editable file present in
// the bundle. Returns true only when every copy succeeded, which gates the
// sidecar rewrite.
func (o *Overlay) copyEditable() bool {
	allOK := true
	for _, name := range EditableFiles {
		data, err := readBundle(name)
		if err != nil {
			// Not in the bundle: nothing to copy for this name.
			continue
		}
		if err := os.WriteFile(o.Path(name), data, 0o644); err != nil {
			overlayLog.Warn("editable_copy_failed", slog.String("file", name), slog.String("error", err.Error()))
			allOK = false
		}
	}
	return allOK
}

// copyMissingAssets copies bundled static assets that are absent from the
// overlay. Presence check only; asset contents are never hash-gated.
func (o *Overlay) copyMissingAssets() {
	assets, err := bundleAssets()
	if err != nil {
		overlayLog.Warn("asset_list_failed", slog.String("error", err.Error()))
		return
	}
	for _, name := range assets {
		dst := o.Path(name)
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		data, err := readBundle(name)
		if err != nil {
			overlayLog.Warn("asset_read_failed", slog.String("file", name), slog.String("error", err.Error()))
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err == nil {
			err = os.WriteFile(dst, data, 0o644)
		}
		if err != nil {
			overlayLog.Warn("asset_copy_failed", slog.String("file", name), slog.String("error", err.Error()))
		}
	}
}

// copyBridge unconditionally overwrites the overlay bridge file from the
// bundle. The served bridge always comes straight from the bundle; this
// copy only keeps the on-disk mirror honest for anyone reading it.
func (o *Overlay) copyBridge() {
	data, err := readBundle(BridgeFile)
	if err != nil {
		overlayLog.Warn("bridge_read_failed", slog.String("error", err.Error()))
		return
	}
	if err := os.WriteFile(o.Path(BridgeFile), data, 0o644); err != nil {
		overlayLog.Warn("bridge_copy_failed", slog.String("error", err.Error()))
	}
}

// ensureGuidance writes the guidance document at most once per overlay
// lifetime. The stamp file records that the document was created; a user
// who deletes the document afterwards keeps it deleted until an explicit
// reset removes the stamp.
func (o *Overlay) ensureGuidance() {
	stamp := filepath.Join(o.root, guidanceStampName)
	if _, err := os.Stat(stamp); err == nil {
		return
	}

	if _, err := os.Stat(o.Path(GuidanceFile)); err != nil {
		data, err := readBundle(GuidanceFile)
		if err != nil {
			overlayLog.Warn("guidance_template_missing", slog.String("error", err.Error()))
			return
		}
		if err := os.WriteFile(o.Path(GuidanceFile), data, 0o644); err != nil {
			overlayLog.Warn("guidance_write_failed", slog.String("error", err.Error()))
			return
		}
	}
	if err := os.WriteFile(stamp, []byte{}, 0o644); err != nil {
		overlayLog.Warn("guidance_stamp_failed", slog.String("error", err.Error()))
	}
}

func (o *Overlay) removeGuidance() {
	_ = os.Remove(o.Path(GuidanceFile))
	_ = os.Remove(filepath.Join(o.root, guidanceStampName))
}

// clearPlugins deletes every direct entry in the plugin directory.
func (o *Overlay) clearPlugins() {
	entries, err := os.ReadDir(o.PluginDir())
	if err != nil {
		return
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(o.PluginDir(), entry.Name())); err != nil {
			overlayLog.Warn("plugin_delete_failed", slog.String("file", entry.Name()), slog.String("error", err.Error()))
		}
	}
}
