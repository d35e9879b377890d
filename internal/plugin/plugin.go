// internal/plugin/plugin.go
package plugin

import (
	"github.com/bethropolis/tandem/internal/event"
)

// CommandFunc defines the signature for commands registered by plugins.
// It takes arguments (e.g., from user input) and returns an error.
type CommandFunc func(args []string) error

// EditorAPI defines the methods plugins can use to interact with the open document.
// Every method runs on the session loop.
type EditorAPI interface {
	// --- Document Access (Read-Only) ---
	DocumentID() string
	DocumentContent() string // serialized markup
	DocumentText() string    // plain text, one line per block

	// --- Event Bus Interaction ---
	SubscribeEvent(eventType event.Type, handler event.Handler)

	// --- Command Registration ---
	RegisterCommand(name string, cmdFunc CommandFunc) error

	// --- Status Bar ---
	SetStatusMessage(format string, args ...interface{})
}

// Plugin defines the interface that all plugins must implement.
type Plugin interface {
	// Name returns the unique identifier name of the plugin.
	Name() string

	// Initialize is called once when the plugin is loaded.
	// Used for subscribing to events and registering commands.
	Initialize(api EditorAPI) error

	// Shutdown is called once when the editor is closing.
	Shutdown() error
}
