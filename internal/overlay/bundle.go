package overlay

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
)

//go:embed bundle
var bundleFS embed.FS

// EditableFiles are the UI source files an agent or user may rewrite in
// the overlay. The order is fixed: the bundle digest hashes their contents
// in exactly this sequence.
var EditableFiles = []string{"index.html", "renderer.js", "styles.css"}

const (
	// StyleFile is the core style resource; the only file whose edits can
	// be hot-patched without a full reload.
	StyleFile = "styles.css"

	// BridgeFile defines the privileged boundary between editable UI code
	// and host operations. It is always sourced from the bundle; the
	// overlay copy exists for reference only and is never trusted.
	BridgeFile = "bridge.js"

	// GuidanceFile is the agent-readable document describing the overlay.
	GuidanceFile = "CLAUDE.md"

	// PluginDirName holds user-dropped script/style resources.
	PluginDirName = "plugins"

	// AssetDirName holds bundled static UI-library assets.
	AssetDirName = "vendor"

	digestSidecarName = ".bundle-digest"
	guidanceStampName = ".guidance-stamp"
)

func readBundle(name string) ([]byte, error) {
	return bundleFS.ReadFile(path.Join("bundle", name))
}

// BundleBridge returns the trusted bridge file straight from the bundle.
func BundleBridge() ([]byte, error) {
	return readBundle(BridgeFile)
}

// bundleDigest is the hex SHA-256 over the concatenated bundled editable
// files, in EditableFiles order.
func bundleDigest() (string, error) {
	h := sha256.New()
	for _, name := range EditableFiles {
		data, err := readBundle(name)
		if err != nil {
			return "", fmt.Errorf("read bundled %s: %w", name, err)
		}
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// bundleAssets lists static asset files as paths relative to the bundle
// root (e.g. "vendor/xterm-lite.js").
func bundleAssets() ([]string, error) {
	var assets []string
	root := path.Join("bundle", AssetDirName)
	err := fs.WalkDir(bundleFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		assets = append(assets, AssetDirName+p[len(root):])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assets, nil
}
