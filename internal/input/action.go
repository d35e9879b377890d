// internal/input/action.go
package input

// Action represents an operation requested by a key press.
type Action int

const (
	ActionUnknown Action = iota
	ActionQuit
	ActionSave
	ActionRedraw

	ActionMoveUp
	ActionMoveDown
	ActionMoveLeft
	ActionMoveRight
	ActionMoveHome
	ActionMoveEnd

	ActionInsertRune
	ActionInsertNewLine
	ActionDeleteCharBackward

	ActionBold
	ActionItalic
	ActionUnderline
	ActionExportHTML
	ActionCopyText

	ActionEnterCommandMode
	ActionCancel
)

// ActionEvent is a decoded key press. Rune is set for ActionInsertRune.
type ActionEvent struct {
	Action Action
	Rune   rune
}
