// internal/event/event.go
package event

import (
	"fmt"

	"github.com/bethropolis/tandem/internal/types"
	"github.com/gdamore/tcell/v2"
)

// Type identifies the kind of event.
type Type int

// Define specific event types.
const (
	TypeUnknown Type = iota

	// Document lifecycle
	TypeDocumentLoaded // Content arrived from the server or a local draft
	TypeDocumentSaved  // A save finished successfully
	TypeDocumentClosed // The session ended (quit or delete)

	// Reconciler
	TypeLocalEdit     // Local input was captured and sent
	TypeRemoteEdit    // A collaborator's snapshot was applied
	TypeCursorPlaced  // A remote marker moved
	TypeTypingChanged // The set of typing badges changed

	// Channel
	TypeConnectionChanged
	TypePeerJoined
	TypePeerLeft

	// User-facing messages
	TypeNotify

	// Input Events
	TypeKeyPressed // Raw key press event forwarded

	// Application Lifecycle Events
	TypeAppReady // Fired when the application is fully initialized
	TypeAppQuit  // Fired just before application termination begins

	TypeThemeChanged // Fired when the theme is changed
)

var typeNames = map[Type]string{
	TypeUnknown:           "unknown",
	TypeDocumentLoaded:    "document-loaded",
	TypeDocumentSaved:     "document-saved",
	TypeDocumentClosed:    "document-closed",
	TypeLocalEdit:         "local-edit",
	TypeRemoteEdit:        "remote-edit",
	TypeCursorPlaced:      "cursor-placed",
	TypeTypingChanged:     "typing-changed",
	TypeConnectionChanged: "connection-changed",
	TypePeerJoined:        "peer-joined",
	TypePeerLeft:          "peer-left",
	TypeNotify:            "notify",
	TypeKeyPressed:        "key-pressed",
	TypeAppReady:          "app-ready",
	TypeAppQuit:           "app-quit",
	TypeThemeChanged:      "theme-changed",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// Event is the structure passed through the event bus.
type Event struct {
	Type Type        // The kind of event
	Data interface{} // Payload carrying event-specific data
}

// --- Specific Event Data Structures ---

// DocumentLoadedData says where the content came from.
type DocumentLoadedData struct {
	DocID     string
	FromDraft bool
}

// DocumentSavedData names the save trigger.
type DocumentSavedData struct {
	DocID   string
	Trigger string
}

// DocumentClosedData carries the reason the session ended.
type DocumentClosedData struct {
	Reason string
}

// LocalEditData is the snapshot that was just sent.
type LocalEditData struct {
	Edit types.EditEvent
	Sent bool // false when the channel queue was full or offline
}

// RemoteEditData identifies who changed the document.
type RemoteEditData struct {
	User    string
	Changed bool // false when the snapshot matched the current content
}

// CursorPlacedData is a marker's new geometry.
type CursorPlacedData struct {
	User string
	Rect types.Rect
}

// ConnectionChangedData mirrors the channel state.
type ConnectionChangedData struct {
	State string
	Err   error
}

// PeerData names a collaborator.
type PeerData struct {
	User string
}

// NotifyData is a message for the user. Blocking messages stay until dismissed.
type NotifyData struct {
	Message  string
	Blocking bool
}

// KeyPressedData contains the raw tcell key event.
type KeyPressedData struct {
	KeyEvent *tcell.EventKey
}

// AppQuitData could contain exit code or reason later.
type AppQuitData struct{}

// AppReadyData could contain initial config or state later.
type AppReadyData struct{}
