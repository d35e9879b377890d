// internal/theme/manager.go
package theme

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bethropolis/tandem/internal/logger"
)

// Manager holds loaded themes and the active one.
type Manager struct {
	themes      map[string]*Theme // lowercase name -> theme
	activeTheme *Theme
	themesDir   string
	mutex       sync.RWMutex
}

// NewManager loads the built-in theme plus any .toml themes in themesDir.
// An empty themesDir skips the directory scan.
func NewManager(themesDir string) *Manager {
	mgr := &Manager{
		themes:    make(map[string]*Theme),
		themesDir: themesDir,
	}
	mgr.themes[strings.ToLower(PaperDark.Name)] = &PaperDark
	mgr.activeTheme = &PaperDark

	if themesDir != "" {
		if err := mgr.LoadThemesFromDir(); err != nil {
			logger.Errorf("Error loading themes from '%s': %v", themesDir, err)
		}
	}
	logger.Infof("Initial active theme set to: %s", mgr.activeTheme.Name)
	return mgr
}

// LoadThemesFromDir scans the themes directory and loads .toml files.
// A missing directory is not an error.
func (m *Manager) LoadThemesFromDir() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	files, err := os.ReadDir(m.themesDir)
	if os.IsNotExist(err) {
		logger.Infof("Theme directory '%s' does not exist. No custom themes loaded.", m.themesDir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read theme directory '%s': %w", m.themesDir, err)
	}

	loadedCount := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(strings.ToLower(file.Name()), ".toml") {
			continue
		}
		filePath := filepath.Join(m.themesDir, file.Name())
		theme, err := LoadThemeFromFile(filePath)
		if err != nil {
			logger.Warnf("Failed to load theme from '%s': %v", filePath, err)
			continue
		}
		key := strings.ToLower(theme.Name)
		if existing, ok := m.themes[key]; ok {
			logger.Warnf("Theme '%s' from '%s' overrides existing theme '%s'", theme.Name, filePath, existing.Name)
		}
		m.themes[key] = theme
		loadedCount++
	}
	logger.Infof("Loaded %d custom themes.", loadedCount)
	return nil
}

// Current returns the active theme.
func (m *Manager) Current() *Theme {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.activeTheme
}

// SetTheme activates a theme by name (case-insensitive).
func (m *Manager) SetTheme(name string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	theme, ok := m.themes[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("theme '%s' not found", name)
	}
	if m.activeTheme != theme {
		m.activeTheme = theme
		logger.Infof("Active theme set to: %s", theme.Name)
	}
	return nil
}

// ListThemes returns the names of all loaded themes, sorted.
func (m *Manager) ListThemes() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	names := make([]string, 0, len(m.themes))
	for _, theme := range m.themes {
		names = append(names, theme.Name)
	}
	sort.Strings(names)
	return names
}
