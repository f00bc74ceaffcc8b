package overlay

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Plugins are user-dropped resource files from the overlay's plugin
// directory, partitioned by kind. The UI attaches each list after the
// corresponding core editable resource. Ordering is directory-listing
// order and carries no load-order significance.
type Plugins struct {
	Scripts []string `json:"scripts"`
	Styles  []string `json:"styles"`
}

// ListPlugins enumerates the plugin directory's direct entries
// (non-recursive). Unreadable directories yield empty lists.
func (o *Overlay) ListPlugins() Plugins {
	var p Plugins
	entries, err := os.ReadDir(o.PluginDir())
	if err != nil {
		if !os.IsNotExist(err) {
			overlayLog.Warn("plugin_list_failed", slog.String("error", err.Error()))
		}
		return p
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".js":
			p.Scripts = append(p.Scripts, entry.Name())
		case ".css":
			p.Styles = append(p.Styles, entry.Name())
		}
	}
	return p
}
