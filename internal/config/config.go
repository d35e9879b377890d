// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/bethropolis/tandem/internal/logger"
)

// Config holds the application's combined configuration.
type Config struct {
	Logger   logger.Config  `toml:"logger"`
	Session  SessionConfig  `toml:"session"`
	Autosave AutosaveConfig `toml:"autosave"`
	Typing   TypingConfig   `toml:"typing"`
	Channel  ChannelConfig  `toml:"channel"`
	Relay    RelayConfig    `toml:"relay"`
	Editor   EditorConfig   `toml:"editor"`
}

// SessionConfig says which document the client opens and as whom.
type SessionConfig struct {
	ServerURL string `toml:"server_url"`
	Document  string `toml:"document"`
	User      string `toml:"user"`
	ExportDir string `toml:"export_dir"`
	Discover  bool   `toml:"discover"` // find the relay over mDNS instead of ServerURL
}

// AutosaveConfig holds the two autosave trigger periods.
type AutosaveConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval Duration `toml:"interval"`
	Debounce Duration `toml:"debounce"`
}

// TypingConfig controls collaborator typing badges.
type TypingConfig struct {
	Timeout Duration `toml:"timeout"`
}

// ChannelConfig tunes the live connection.
type ChannelConfig struct {
	QueueSize      int      `toml:"queue_size"`
	InitialBackoff Duration `toml:"initial_backoff"`
	MaxBackoff     Duration `toml:"max_backoff"`
}

// RelayConfig configures tandemd.
type RelayConfig struct {
	Listen      string `toml:"listen"`
	SQLitePath  string `toml:"sqlite_path"`
	PostgresDSN string `toml:"postgres_dsn"` // when set, used instead of SQLite
	RedisAddr   string `toml:"redis_addr"`   // when set, fan-out goes through Redis pub/sub
	Advertise   bool   `toml:"advertise"`
	Name        string `toml:"name"`
}

// EditorConfig holds terminal client settings.
type EditorConfig struct {
	SystemClipboard bool   `toml:"system_clipboard"`
	StatusBarHeight int    `toml:"status_bar_height"`
	DraftsPath      string `toml:"drafts_path"`
}

var (
	loadedConfig *Config
	loadOnce     sync.Once
	loadErr      error
)

func defaultUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "anonymous"
}

// DefaultDir is the per-user directory holding config, drafts and logs.
func DefaultDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, AppName)
}

// NewDefaultConfig creates a Config struct with default values.
func NewDefaultConfig() *Config {
	draftsPath := DefaultDraftsFileName
	if dir := DefaultDir(); dir != "" {
		draftsPath = filepath.Join(dir, DefaultDraftsFileName)
	}
	return &Config{
		Logger: logger.Config{
			LogLevel:    "info",
			LogFilePath: "",
		},
		Session: SessionConfig{
			ServerURL: DefaultServerURL,
			User:      defaultUser(),
			ExportDir: DefaultExportDir,
		},
		Autosave: AutosaveConfig{
			Enabled:  true,
			Interval: Duration{DefaultAutosaveInterval},
			Debounce: Duration{DefaultAutosaveDebounce},
		},
		Typing: TypingConfig{
			Timeout: Duration{DefaultTypingTimeout},
		},
		Channel: ChannelConfig{
			QueueSize:      DefaultQueueSize,
			InitialBackoff: Duration{DefaultInitialBackoff},
			MaxBackoff:     Duration{DefaultMaxBackoff},
		},
		Relay: RelayConfig{
			Listen:     DefaultListenAddr,
			SQLitePath: DefaultSQLitePath,
		},
		Editor: EditorConfig{
			SystemClipboard: SystemClipboard,
			StatusBarHeight: StatusBarHeight,
			DraftsPath:      draftsPath,
		},
	}
}

// loadFromFile decodes a TOML file over cfg. A missing file is not an error.
func loadFromFile(filePath string, cfg *Config, verbose bool) error {
	_, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		if verbose {
			logger.Debugf("Config file not found: %s", filePath)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("error checking config file '%s': %w", filePath, err)
	}

	metadata, err := toml.DecodeFile(filePath, cfg)
	if err != nil {
		return fmt.Errorf("failed to parse config file '%s': %w", filePath, err)
	}
	if len(metadata.Undecoded()) > 0 && verbose {
		logger.Warnf("Config file '%s': Unrecognized keys: %v", filePath, metadata.Undecoded())
	}
	if verbose {
		logger.Infof("Successfully loaded configuration from: %s", filePath)
	}
	return nil
}

// validate checks config values and resets invalid ones to defaults.
func (c *Config) validate() {
	defaults := NewDefaultConfig()

	if c.Logger.LogLevel == "" {
		c.Logger.LogLevel = defaults.Logger.LogLevel
	}

	if c.Session.ServerURL == "" {
		c.Session.ServerURL = defaults.Session.ServerURL
	}
	if c.Session.User == "" {
		c.Session.User = defaults.Session.User
	}
	if c.Session.ExportDir == "" {
		c.Session.ExportDir = defaults.Session.ExportDir
	}

	if c.Autosave.Interval.Duration <= 0 {
		c.Autosave.Interval = defaults.Autosave.Interval
	}
	if c.Autosave.Debounce.Duration <= 0 {
		c.Autosave.Debounce = defaults.Autosave.Debounce
	}
	if c.Typing.Timeout.Duration <= 0 {
		c.Typing.Timeout = defaults.Typing.Timeout
	}

	if c.Channel.QueueSize <= 0 {
		c.Channel.QueueSize = defaults.Channel.QueueSize
	}
	if c.Channel.InitialBackoff.Duration <= 0 {
		c.Channel.InitialBackoff = defaults.Channel.InitialBackoff
	}
	if c.Channel.MaxBackoff.Duration < c.Channel.InitialBackoff.Duration {
		c.Channel.MaxBackoff = defaults.Channel.MaxBackoff
	}

	if c.Relay.Listen == "" {
		c.Relay.Listen = defaults.Relay.Listen
	}
	if c.Relay.SQLitePath == "" {
		c.Relay.SQLitePath = defaults.Relay.SQLitePath
	}

	if c.Editor.StatusBarHeight <= 0 {
		c.Editor.StatusBarHeight = defaults.Editor.StatusBarHeight
	}
	if c.Editor.DraftsPath == "" {
		c.Editor.DraftsPath = defaults.Editor.DraftsPath
	}
}

// Load builds a configuration from defaults, the TOML file at configFilePath
// (or the default location when empty), and flag overrides, then validates it.
func Load(configFilePath string, flags *Flags) (*Config, error) {
	// The logger is not initialized yet.
	verbose := false

	cfg := NewDefaultConfig()

	effectivePath := configFilePath
	if effectivePath == "" {
		if dir := DefaultDir(); dir != "" {
			effectivePath = filepath.Join(dir, DefaultConfigFileName)
		}
	}

	var err error
	if effectivePath != "" {
		err = loadFromFile(effectivePath, cfg, verbose)
	}

	if flags != nil {
		flags.ApplyOverrides(cfg, verbose)
	}

	cfg.validate()
	return cfg, err
}

// LoadConfig runs Load once and stores the result for Get.
// It should be called only once, typically from main.
func LoadConfig(configFilePath string, flags *Flags) (*Config, error) {
	loadOnce.Do(func() {
		loadedConfig, loadErr = Load(configFilePath, flags)
	})
	return loadedConfig, loadErr
}

// Get returns the loaded application configuration. Panics if LoadConfig wasn't called.
func Get() *Config {
	if loadedConfig == nil {
		panic("config.Get() called before config.LoadConfig()")
	}
	return loadedConfig
}
