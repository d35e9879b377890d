// internal/config/flags.go
package config

import (
	"flag"
	"fmt"
	"strings"

	"github.com/bethropolis/tandem/internal/logger"
)

// Flags holds values parsed from command-line flags.
// Use pointers to distinguish between unset flags and zero-value flags.
type Flags struct {
	fs *flag.FlagSet

	ConfigFilePath *string
	Version        *bool
	LogLevel       *string
	LogFilePath    *string
	// Add flags for logger filters
	EnableTags   *string
	DisableTags  *string
	EnablePkgs   *string
	DisablePkgs  *string
	EnableFiles  *string
	DisableFiles *string
	DebugLog     *bool

	// Client
	ServerURL       *string
	Document        *string
	User            *string
	Discover        *bool
	ExportDir       *string
	DraftsPath      *string
	NoAutosave      *bool
	SystemClipboard *bool

	// Relay
	Listen      *string
	SQLitePath  *string
	PostgresDSN *string
	RedisAddr   *string
	Advertise   *bool
}

// NewFlags binds a Flags to a flag set. A nil set means flag.CommandLine.
func NewFlags(fs *flag.FlagSet) *Flags {
	if fs == nil {
		fs = flag.CommandLine
	}
	return &Flags{fs: fs}
}

// DefineFlags sets up the flags both binaries share.
func (f *Flags) DefineFlags() {
	fs := f.fs
	f.ConfigFilePath = fs.String("config", "", fmt.Sprintf("Path to TOML configuration file (default ~/.config/%s/%s)", AppName, DefaultConfigFileName))
	f.Version = fs.Bool("version", false, "Show version information and exit")
	f.LogLevel = fs.String("loglevel", "", "Log level (debug, info, warn, error) - Overrides config file")
	f.LogFilePath = fs.String("logfile", "", "Path to write log file (use '-' for stderr) - Overrides config file")
	f.EnableTags = fs.String("log-tags", "", "Comma-separated list of tags to enable - Overrides config file")
	f.DisableTags = fs.String("log-disable-tags", "", "Comma-separated list of tags to disable - Overrides config file")
	f.EnablePkgs = fs.String("log-packages", "", "Comma-separated list of packages to enable - Overrides config file")
	f.DisablePkgs = fs.String("log-disable-packages", "", "Comma-separated list of packages to disable - Overrides config file")
	f.EnableFiles = fs.String("log-files", "", "Comma-separated list of files to enable - Overrides config file")
	f.DisableFiles = fs.String("log-disable-files", "", "Comma-separated list of files to disable - Overrides config file")
	f.DebugLog = fs.Bool("debug-log", false, "Enable verbose debug logging for the logger filtering system")
}

// DefineClientFlags adds the flags of the terminal client.
func (f *Flags) DefineClientFlags() {
	fs := f.fs
	f.ServerURL = fs.String("server", "", "Base URL of the document server - Overrides config file")
	f.Document = fs.String("doc", "", "Document id to open")
	f.User = fs.String("user", "", "Name shown to collaborators - Overrides config file")
	f.Discover = fs.Bool("discover", false, "Find a relay on the local network instead of using -server")
	f.ExportDir = fs.String("export-dir", "", "Directory exported files are written to")
	f.DraftsPath = fs.String("drafts", "", "Path to the local drafts database")
	f.NoAutosave = fs.Bool("no-autosave", false, "Disable periodic and idle saves")
	f.SystemClipboard = fs.Bool("system-clipboard", false, "Allow copying document text to the system clipboard")
}

// DefineRelayFlags adds the flags of the relay server.
func (f *Flags) DefineRelayFlags() {
	fs := f.fs
	f.Listen = fs.String("addr", "", "Listen address - Overrides config file")
	f.SQLitePath = fs.String("db", "", "SQLite database path - Overrides config file")
	f.PostgresDSN = fs.String("postgres", "", "Postgres connection string; replaces SQLite when set")
	f.RedisAddr = fs.String("redis", "", "Redis address for cross-instance fan-out")
	f.Advertise = fs.Bool("advertise", false, "Advertise the relay over mDNS")
}

// Parse parses args into the Flags struct.
// It returns the remaining non-flag arguments.
func (f *Flags) Parse(args []string) ([]string, error) {
	if err := f.fs.Parse(args); err != nil {
		return nil, err
	}
	return f.fs.Args(), nil
}

func setString(cfg *string, v *string, name string, verbose bool) {
	if v == nil || *v == "" {
		return
	}
	if verbose {
		logger.DebugTagf("config", "Setting %s from flag: %s", name, *v)
	}
	*cfg = *v
}

func setList(cfg *[]string, v *string, name string, verbose bool) {
	if v == nil || *v == "" {
		return
	}
	items := splitCommaList(*v)
	if verbose {
		logger.DebugTagf("config", "Setting %s from flag: %v", name, items)
	}
	*cfg = items
}

// ApplyOverrides updates the Config struct with values from flags *if* they were set.
func (f *Flags) ApplyOverrides(cfg *Config, verbose bool) {
	// Visit only processes flags that were actually set
	f.fs.Visit(func(fl *flag.Flag) {
		if verbose {
			logger.DebugTagf("config", "Applying flag override: %s", fl.Name)
		}
		switch fl.Name {
		case "loglevel":
			setString(&cfg.Logger.LogLevel, f.LogLevel, "log level", verbose)
		case "logfile":
			if f.LogFilePath != nil { // Empty string is valid ("-")
				cfg.Logger.LogFilePath = *f.LogFilePath
			}
		case "log-tags":
			setList(&cfg.Logger.EnabledTags, f.EnableTags, "enabled tags", verbose)
		case "log-disable-tags":
			setList(&cfg.Logger.DisabledTags, f.DisableTags, "disabled tags", verbose)
		case "log-packages":
			setList(&cfg.Logger.EnabledPackages, f.EnablePkgs, "enabled packages", verbose)
		case "log-disable-packages":
			setList(&cfg.Logger.DisabledPackages, f.DisablePkgs, "disabled packages", verbose)
		case "log-files":
			setList(&cfg.Logger.EnabledFiles, f.EnableFiles, "enabled files", verbose)
		case "log-disable-files":
			setList(&cfg.Logger.DisabledFiles, f.DisableFiles, "disabled files", verbose)
		case "server":
			setString(&cfg.Session.ServerURL, f.ServerURL, "server URL", verbose)
		case "doc":
			setString(&cfg.Session.Document, f.Document, "document", verbose)
		case "user":
			setString(&cfg.Session.User, f.User, "user", verbose)
		case "discover":
			if f.Discover != nil {
				cfg.Session.Discover = *f.Discover
			}
		case "export-dir":
			setString(&cfg.Session.ExportDir, f.ExportDir, "export dir", verbose)
		case "drafts":
			setString(&cfg.Editor.DraftsPath, f.DraftsPath, "drafts path", verbose)
		case "no-autosave":
			if f.NoAutosave != nil && *f.NoAutosave {
				cfg.Autosave.Enabled = false
			}
		case "system-clipboard":
			if f.SystemClipboard != nil {
				cfg.Editor.SystemClipboard = *f.SystemClipboard
			}
		case "addr":
			setString(&cfg.Relay.Listen, f.Listen, "listen address", verbose)
		case "db":
			setString(&cfg.Relay.SQLitePath, f.SQLitePath, "sqlite path", verbose)
		case "postgres":
			setString(&cfg.Relay.PostgresDSN, f.PostgresDSN, "postgres dsn", verbose)
		case "redis":
			setString(&cfg.Relay.RedisAddr, f.RedisAddr, "redis address", verbose)
		case "advertise":
			if f.Advertise != nil {
				cfg.Relay.Advertise = *f.Advertise
			}
		}
	})
}

// Helper function to split comma-separated list (can be moved to util)
func splitCommaList(list string) []string {
	if list == "" {
		return nil
	}
	items := strings.Split(list, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
