// internal/input/keymap.go
package input

import (
	"github.com/gdamore/tcell/v2"
)

type Keymap map[tcell.Key]Action
type ModKeymap map[tcell.ModMask]Keymap

// InputProcessor translates tcell key events into ActionEvents.
type InputProcessor struct {
	keymap    Keymap
	modKeymap ModKeymap
}

// NewInputProcessor creates a processor with the default bindings.
func NewInputProcessor() *InputProcessor {
	p := &InputProcessor{
		keymap:    make(Keymap),
		modKeymap: make(ModKeymap),
	}
	p.loadDefaultBindings()
	return p
}

func (p *InputProcessor) loadDefaultBindings() {
	p.keymap[tcell.KeyUp] = ActionMoveUp
	p.keymap[tcell.KeyDown] = ActionMoveDown
	p.keymap[tcell.KeyLeft] = ActionMoveLeft
	p.keymap[tcell.KeyRight] = ActionMoveRight
	p.keymap[tcell.KeyHome] = ActionMoveHome
	p.keymap[tcell.KeyEnd] = ActionMoveEnd
	p.keymap[tcell.KeyEnter] = ActionInsertNewLine
	p.keymap[tcell.KeyBackspace] = ActionDeleteCharBackward
	p.keymap[tcell.KeyBackspace2] = ActionDeleteCharBackward
	p.keymap[tcell.KeyEscape] = ActionCancel

	ctrlMap := make(Keymap)
	ctrlMap[tcell.KeyCtrlS] = ActionSave
	ctrlMap[tcell.KeyCtrlQ] = ActionQuit
	ctrlMap[tcell.KeyCtrlC] = ActionQuit
	ctrlMap[tcell.KeyCtrlL] = ActionRedraw
	ctrlMap[tcell.KeyCtrlB] = ActionBold
	ctrlMap[tcell.KeyCtrlT] = ActionItalic
	ctrlMap[tcell.KeyCtrlU] = ActionUnderline
	ctrlMap[tcell.KeyCtrlE] = ActionExportHTML
	ctrlMap[tcell.KeyCtrlY] = ActionCopyText
	ctrlMap[tcell.KeyCtrlK] = ActionEnterCommandMode
	p.modKeymap[tcell.ModCtrl] = ctrlMap
}

// ProcessEvent maps a key event to an action. Mode handling is left to the caller.
func (p *InputProcessor) ProcessEvent(ev *tcell.EventKey) ActionEvent {
	key := ev.Key()
	mod := ev.Modifiers()

	// Some terminals report Ctrl+letter without the modifier bit.
	if key >= tcell.KeyCtrlA && key <= tcell.KeyCtrlZ {
		mod |= tcell.ModCtrl
	}
	if modKeyMap, ok := p.modKeymap[mod]; ok {
		if action, ok := modKeyMap[key]; ok {
			return ActionEvent{Action: action}
		}
	}
	// Enter, Backspace and Esc alias Ctrl+M, Ctrl+H and Ctrl+[.
	if action, ok := p.keymap[key]; ok {
		return ActionEvent{Action: action}
	}
	if key == tcell.KeyRune && mod&(tcell.ModCtrl|tcell.ModAlt) == 0 {
		return ActionEvent{Action: ActionInsertRune, Rune: ev.Rune()}
	}
	return ActionEvent{Action: ActionUnknown}
}
