// internal/modehandler/modehandler.go
package modehandler

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/bethropolis/tandem/internal/event"
	"github.com/bethropolis/tandem/internal/input"
	"github.com/bethropolis/tandem/internal/logger"
	"github.com/bethropolis/tandem/internal/statusbar"
	"github.com/bethropolis/tandem/internal/surface"
)

// InputMode defines the different states for user input.
type InputMode int

const (
	ModeNormal InputMode = iota
	ModeCommand
)

// CommandFunc runs a command line entry with its parsed arguments.
type CommandFunc func(args []string) error

// Editor is the document side of the key bindings.
type Editor interface {
	Surface() *surface.Surface
	SaveNow()
	Export(format string) (string, error)
	CopyText() error
	Format(tag string) error
}

// ModeHandler manages input modes, key actions and the command registry.
type ModeHandler struct {
	editor         Editor
	inputProcessor *input.InputProcessor
	eventManager   *event.Manager
	statusBar      *statusbar.StatusBar
	quitSignal     chan<- struct{}
	redraw         func()

	currentMode InputMode
	cmdBuffer   []rune
	commands    map[string]CommandFunc
	quitting    bool
}

// Config holds dependencies for the ModeHandler.
type Config struct {
	Editor         Editor
	InputProcessor *input.InputProcessor
	EventManager   *event.Manager
	StatusBar      *statusbar.StatusBar
	QuitSignal     chan<- struct{}
	// Redraw forces a full repaint; optional.
	Redraw func()
}

func New(cfg Config) *ModeHandler {
	if cfg.Editor == nil || cfg.InputProcessor == nil || cfg.EventManager == nil || cfg.StatusBar == nil || cfg.QuitSignal == nil {
		panic("modehandler.New: Missing required dependencies in Config")
	}
	return &ModeHandler{
		editor:         cfg.Editor,
		inputProcessor: cfg.InputProcessor,
		eventManager:   cfg.EventManager,
		statusBar:      cfg.StatusBar,
		quitSignal:     cfg.QuitSignal,
		redraw:         cfg.Redraw,
		currentMode:    ModeNormal,
		commands:       make(map[string]CommandFunc),
	}
}

// HandleKeyEvent runs the key in the current mode and reports whether the
// screen needs a redraw.
func (mh *ModeHandler) HandleKeyEvent(ev *tcell.EventKey) bool {
	mh.eventManager.Dispatch(event.TypeKeyPressed, event.KeyPressedData{KeyEvent: ev})
	actionEvent := mh.inputProcessor.ProcessEvent(ev)

	if actionEvent.Action == input.ActionQuit {
		mh.Quit()
		return false
	}

	switch mh.currentMode {
	case ModeNormal:
		return mh.handleActionNormal(actionEvent)
	case ModeCommand:
		return mh.handleActionCommand(actionEvent)
	default:
		logger.Debugf("Warning: Unknown input mode: %v", mh.currentMode)
		return false
	}
}

// Quit signals the application to stop. Safe to call more than once.
func (mh *ModeHandler) Quit() {
	if mh.quitting {
		return
	}
	mh.quitting = true
	close(mh.quitSignal)
}

func (mh *ModeHandler) handleActionNormal(actionEvent input.ActionEvent) bool {
	// A blocking notification swallows the next key, like a modal alert.
	if mh.statusBar.Blocking() {
		mh.statusBar.ResetTemporaryMessage()
		return true
	}

	s := mh.editor.Surface()
	switch actionEvent.Action {
	case input.ActionEnterCommandMode:
		mh.currentMode = ModeCommand
		mh.cmdBuffer = mh.cmdBuffer[:0]
		mh.statusBar.SetCommand(true, "")
		logger.Debugf("ModeHandler: Entering Command Mode")

	case input.ActionCancel:
		mh.statusBar.ResetTemporaryMessage()

	case input.ActionSave:
		mh.editor.SaveNow()
		mh.statusBar.SetTemporaryMessage("Saving...")

	case input.ActionRedraw:
		if mh.redraw != nil {
			mh.redraw()
		}

	case input.ActionMoveUp:
		s.MoveUp()
	case input.ActionMoveDown:
		s.MoveDown()
	case input.ActionMoveLeft:
		s.MoveLeft()
	case input.ActionMoveRight:
		s.MoveRight()
	case input.ActionMoveHome:
		s.MoveHome()
	case input.ActionMoveEnd:
		s.MoveEnd()

	case input.ActionInsertRune:
		s.InsertText(string(actionEvent.Rune))
	case input.ActionInsertNewLine:
		s.SplitBlock()
	case input.ActionDeleteCharBackward:
		s.DeleteBackward()

	case input.ActionBold:
		mh.format("b")
	case input.ActionItalic:
		mh.format("i")
	case input.ActionUnderline:
		mh.format("u")

	case input.ActionExportHTML:
		// Export reports its own outcome on the status bar.
		_, _ = mh.editor.Export("html")
	case input.ActionCopyText:
		_ = mh.editor.CopyText()

	default:
		return false
	}
	return true
}

func (mh *ModeHandler) format(tag string) {
	if err := mh.editor.Format(tag); err != nil {
		mh.statusBar.SetTemporaryMessage("Format failed: %v", err)
	}
}

// RegisterCommand adds a command to the registry.
func (mh *ModeHandler) RegisterCommand(name string, cmdFunc CommandFunc) error {
	if name == "" {
		return fmt.Errorf("command name cannot be empty")
	}
	if _, exists := mh.commands[name]; exists {
		return fmt.Errorf("command '%s' already registered", name)
	}
	mh.commands[name] = cmdFunc
	logger.Debugf("ModeHandler: Registered command ':%s'", name)
	return nil
}

func (mh *ModeHandler) GetCurrentMode() InputMode {
	return mh.currentMode
}

// GetCommandBuffer returns the command line being typed.
func (mh *ModeHandler) GetCommandBuffer() string {
	if mh.currentMode == ModeCommand {
		return string(mh.cmdBuffer)
	}
	return ""
}
