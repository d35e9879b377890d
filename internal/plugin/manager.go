// internal/plugin/manager.go
package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bethropolis/tandem/internal/logger"
)

// Manager handles the registration, initialization, and lifecycle of plugins.
type Manager struct {
	mu      sync.RWMutex
	plugins map[string]Plugin // Store loaded plugins by name
}

// NewManager creates a new plugin manager.
func NewManager() *Manager {
	return &Manager{
		plugins: make(map[string]Plugin),
	}
}

// Register adds a plugin instance to the manager.
// This should be called before InitializePlugins.
func (m *Manager) Register(plugin Plugin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := plugin.Name()
	if name == "" {
		return fmt.Errorf("plugin registration failed: plugin name cannot be empty")
	}
	if _, exists := m.plugins[name]; exists {
		return fmt.Errorf("plugin registration failed: plugin named '%s' already registered", name)
	}

	m.plugins[name] = plugin
	logger.DebugTagf("plugin", "Registered plugin '%s'", name)
	return nil
}

// sorted returns the plugins in name order so startup is deterministic.
func (m *Manager) sorted() []Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// InitializePlugins calls Initialize on every registered plugin. A plugin
// that fails is logged and skipped.
func (m *Manager) InitializePlugins(api EditorAPI) {
	plugins := m.sorted()
	logger.DebugTagf("plugin", "Initializing %d plugins...", len(plugins))
	for _, plugin := range plugins {
		if err := plugin.Initialize(api); err != nil {
			logger.ErrorTagf("plugin", "initializing plugin '%s': %v", plugin.Name(), err)
		}
	}
}

// ShutdownPlugins calls Shutdown on all registered plugins.
func (m *Manager) ShutdownPlugins() {
	for _, plugin := range m.sorted() {
		if err := plugin.Shutdown(); err != nil {
			logger.ErrorTagf("plugin", "shutting down plugin '%s': %v", plugin.Name(), err)
		}
	}
}

// GetPlugin returns a registered plugin by name.
func (m *Manager) GetPlugin(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, exists := m.plugins[name]
	return p, exists
}
