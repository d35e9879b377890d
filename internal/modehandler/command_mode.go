package modehandler

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/bethropolis/tandem/internal/input"
	"github.com/bethropolis/tandem/internal/logger"
)

// handleActionCommand edits and runs the command line.
func (mh *ModeHandler) handleActionCommand(actionEvent input.ActionEvent) bool {
	switch actionEvent.Action {
	case input.ActionInsertRune:
		mh.cmdBuffer = append(mh.cmdBuffer, actionEvent.Rune)

	case input.ActionDeleteCharBackward:
		if len(mh.cmdBuffer) == 0 {
			mh.leaveCommandMode()
			logger.Debugf("ModeHandler: Exiting Command Mode via Backspace")
			return true
		}
		mh.cmdBuffer = mh.cmdBuffer[:len(mh.cmdBuffer)-1]

	case input.ActionInsertNewLine:
		cmdStr := string(mh.cmdBuffer)
		mh.leaveCommandMode()
		mh.executeCommand(cmdStr)
		return true

	case input.ActionCancel:
		mh.leaveCommandMode()
		logger.Debugf("ModeHandler: Canceled Command Mode via Escape")
		return true

	default:
		return false
	}
	mh.statusBar.SetCommand(true, string(mh.cmdBuffer))
	return true
}

func (mh *ModeHandler) leaveCommandMode() {
	mh.currentMode = ModeNormal
	mh.cmdBuffer = mh.cmdBuffer[:0]
	mh.statusBar.SetCommand(false, "")
}

// executeCommand parses and runs one command line.
func (mh *ModeHandler) executeCommand(cmdStr string) {
	parts, err := splitArgs(cmdStr)
	if err != nil {
		mh.statusBar.SetTemporaryMessage("Bad command: %v", err)
		return
	}
	if len(parts) == 0 {
		return
	}
	cmdName, args := parts[0], parts[1:]

	cmdFunc, exists := mh.commands[cmdName]
	if !exists {
		mh.statusBar.SetTemporaryMessage("Unknown command: %s", cmdName)
		return
	}
	logger.Debugf("ModeHandler: Executing command ':%s' with args %v", cmdName, args)
	if err := cmdFunc(args); err != nil {
		mh.statusBar.SetTemporaryMessage("Error executing command '%s': %v", cmdName, err)
	}
}

// splitArgs splits on whitespace; double quotes group words and a backslash
// escapes the next rune inside them.
func splitArgs(s string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		escaped bool
		started bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case inQuote && r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && unicode.IsSpace(r):
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote || escaped {
		return nil, fmt.Errorf("unterminated quote")
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}
