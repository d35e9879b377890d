// internal/statusbar/statusbar.go
package statusbar

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"

	"github.com/bethropolis/tandem/internal/theme"
)

// Config defines the behaviour of the status bar.
type Config struct {
	MessageTimeout time.Duration
	// Now is the clock used to expire messages; nil means time.Now.
	Now func() time.Time
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{MessageTimeout: 4 * time.Second}
}

// StatusBar is the bottom line: document, connection, typing badges and
// temporary messages.
type StatusBar struct {
	config Config
	mu     sync.RWMutex

	docID      string
	user       string
	connection string
	online     bool
	dirty      bool
	badges     []string

	commandActive bool
	command       string

	tempMessage     string
	tempMessageTime time.Time
	tempBlocking    bool
}

func New(config Config) *StatusBar {
	if config.Now == nil {
		config.Now = time.Now
	}
	return &StatusBar{config: config, connection: "connecting"}
}

// SetDocumentInfo updates the document id and local user shown.
func (sb *StatusBar) SetDocumentInfo(docID, user string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.docID = docID
	sb.user = user
}

// SetDirty marks whether local changes are waiting for the next save.
func (sb *StatusBar) SetDirty(dirty bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.dirty = dirty
}

// SetConnection updates the channel state indicator.
func (sb *StatusBar) SetConnection(state string, online bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.connection = state
	sb.online = online
}

// SetTyping replaces the typing badges.
func (sb *StatusBar) SetTyping(labels []string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.badges = append(sb.badges[:0], labels...)
}

// SetCommand shows the command line. Pass active=false to hide it.
func (sb *StatusBar) SetCommand(active bool, buffer string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.commandActive = active
	sb.command = buffer
}

// SetTemporaryMessage displays a message for the configured timeout.
func (sb *StatusBar) SetTemporaryMessage(format string, args ...interface{}) {
	sb.setMessage(false, format, args...)
}

// SetBlockingMessage displays a message until ResetTemporaryMessage.
func (sb *StatusBar) SetBlockingMessage(format string, args ...interface{}) {
	sb.setMessage(true, format, args...)
}

func (sb *StatusBar) setMessage(blocking bool, format string, args ...interface{}) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.tempMessage = fmt.Sprintf(format, args...)
	sb.tempMessageTime = sb.config.Now()
	sb.tempBlocking = blocking
}

// ResetTemporaryMessage clears any message being displayed.
func (sb *StatusBar) ResetTemporaryMessage() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.tempMessage = ""
	sb.tempMessageTime = time.Time{}
	sb.tempBlocking = false
}

// Blocking reports whether a blocking message is waiting to be dismissed.
func (sb *StatusBar) Blocking() bool {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.tempBlocking && sb.tempMessage != ""
}

// Message returns the active message, expiring timed ones first.
func (sb *StatusBar) Message() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.activeMessage()
}

// HasMessage reports whether a message is showing, expiring timed ones first.
func (sb *StatusBar) HasMessage() bool {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	msg, _ := sb.activeMessage()
	return msg != ""
}

// Dirty reports whether local edits have not been saved yet.
func (sb *StatusBar) Dirty() bool {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.dirty
}

// activeMessage expects the write lock.
func (sb *StatusBar) activeMessage() (string, bool) {
	if sb.tempMessage == "" {
		return "", false
	}
	if !sb.tempBlocking && sb.config.Now().Sub(sb.tempMessageTime) > sb.config.MessageTimeout {
		sb.tempMessage = ""
		sb.tempMessageTime = time.Time{}
		return "", false
	}
	return sb.tempMessage, sb.tempBlocking
}

// defaultText expects the lock.
func (sb *StatusBar) defaultText() string {
	doc := sb.docID
	if doc == "" {
		doc = "[no document]"
	}
	dirty := ""
	if sb.dirty {
		dirty = " [+]"
	}
	return fmt.Sprintf(" doc %s%s -- %s", doc, dirty, sb.user)
}

// Draw renders the status bar on the last screen row.
func (sb *StatusBar) Draw(screen tcell.Screen, width, height int, th *theme.Theme) {
	if height <= 0 || width <= 0 {
		return
	}
	y := height - 1

	sb.mu.Lock()
	msg, blocking := sb.activeMessage()
	commandActive, command := sb.commandActive, sb.command
	left := sb.defaultText()
	dirty := sb.dirty
	conn, online := sb.connection, sb.online
	badges := strings.Join(sb.badges, "  ")
	sb.mu.Unlock()

	base := th.GetStyle(theme.StyleStatusBar)
	for x := 0; x < width; x++ {
		screen.SetContent(x, y, ' ', nil, base)
	}

	switch {
	case commandActive:
		drawText(screen, 0, y, width, ":"+command, th.GetStyle(theme.StyleStatusBarCommand))
		return
	case msg != "" && blocking:
		drawText(screen, 0, y, width, " "+msg, th.GetStyle(theme.StyleStatusBarError))
		return
	case msg != "":
		drawText(screen, 0, y, width, " "+msg, th.GetStyle(theme.StyleStatusBarMessage))
		return
	}

	leftStyle := base
	if dirty {
		leftStyle = th.GetStyle(theme.StyleStatusBarDirty)
	}
	x := drawText(screen, 0, y, width, left, leftStyle)

	connText := " [" + conn + "] "
	connStyle := th.GetStyle(theme.StyleStatusBarOffline)
	if online {
		connStyle = th.GetStyle(theme.StyleStatusBarOnline)
	}
	connWidth := uniseg.StringWidth(connText)
	right := width - connWidth
	if right > x {
		drawText(screen, right, y, width, connText, connStyle)
	} else {
		right = width
	}

	if badges != "" {
		bw := uniseg.StringWidth(badges)
		start := right - bw - 1
		if start > x+1 {
			drawText(screen, start, y, right, badges, th.GetStyle(theme.StyleStatusBarTyping))
		}
	}
}

// drawText writes text from column x up to limit and returns the next column.
func drawText(screen tcell.Screen, x, y, limit int, text string, style tcell.Style) int {
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		w := gr.Width()
		if x+w > limit {
			break
		}
		runes := gr.Runes()
		if len(runes) > 0 {
			screen.SetContent(x, y, runes[0], runes[1:], style)
		}
		x += w
	}
	return x
}
