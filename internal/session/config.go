package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// UserConfigFileName is the TOML config file for user preferences.
const UserConfigFileName = "config.toml"

// UserConfig represents user-facing configuration in TOML format.
type UserConfig struct {
	// AssistantCommand is the command line launched inside each session.
	// The CLAYSHELL_ASSISTANT_CMD environment variable takes precedence.
	AssistantCommand string `toml:"assistant_command"`

	// ListenAddr is the address the UI server binds to.
	ListenAddr string `toml:"listen_addr"`

	// PickerCommand is the native directory-picker command line.
	PickerCommand string `toml:"picker_command"`

	// Log defines logging settings.
	Log LogSettings `toml:"log"`
}

// LogSettings defines log output preferences.
type LogSettings struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level"`

	// Format is "json" (default) or "text".
	Format string `toml:"format"`
}

// Defaults applied when the config file is absent or fields are empty.
const (
	DefaultListenAddr    = "127.0.0.1:8600"
	defaultPickerCommand = "zenity --file-selection --directory"
)

var (
	configOnce   sync.Once
	cachedConfig *UserConfig
	configErr    error
)

// DataDir returns the per-installation data directory (~/.clayshell),
// creating it if needed.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".clayshell")
	}
	return filepath.Join(home, ".clayshell")
}

// LoadUserConfig loads ~/.clayshell/config.toml, caching the result.
// A missing file yields defaults, not an error.
func LoadUserConfig() (*UserConfig, error) {
	configOnce.Do(func() {
		cachedConfig, configErr = loadUserConfig(filepath.Join(DataDir(), UserConfigFileName))
	})
	return cachedConfig, configErr
}

func loadUserConfig(path string) (*UserConfig, error) {
	cfg := &UserConfig{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *UserConfig) applyDefaults() {
	if c.AssistantCommand == "" {
		c.AssistantCommand = defaultAssistantCommand
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.PickerCommand == "" {
		c.PickerCommand = defaultPickerCommand
	}
}
