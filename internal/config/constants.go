package config

import "time"

// Base application details
const AppName = "tandem"
const AppVersion = "0.1.0"
const ThemesDirName = "themes"
const DefaultThemeFileName = "theme.toml"   // Active theme file
const DefaultConfigFileName = "config.toml" // Main config file
const DefaultLogFileName = "tandem.log"
const DefaultDraftsFileName = "drafts.db"

// Session
const DefaultServerURL = "http://localhost:8000"
const DefaultExportDir = "."

// UI Layout
const StatusBarHeight = 1

// Status Bar
const MessageTimeout = 4 * time.Second

// Timers shared by client and relay
const DefaultAutosaveInterval = 10 * time.Second
const DefaultAutosaveDebounce = 5 * time.Second
const DefaultTypingTimeout = 2 * time.Second

// Channel
const DefaultQueueSize = 64
const DefaultInitialBackoff = 500 * time.Millisecond
const DefaultMaxBackoff = 30 * time.Second

// Relay
const DefaultListenAddr = ":8000"
const DefaultSQLitePath = "tandem.db"

const SystemClipboard = true
