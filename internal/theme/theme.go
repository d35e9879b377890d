// internal/theme/theme.go
package theme

import (
	"strings"

	"github.com/bethropolis/tandem/internal/logger"
	"github.com/gdamore/tcell/v2"
)

// Style names the editor draws with.
const (
	StyleDefault          = "Default"
	StyleSelection        = "Selection"
	StyleRemoteCursor     = "RemoteCursor"
	StyleStatusBar        = "StatusBar"
	StyleStatusBarMessage = "StatusBarMessage"
	StyleStatusBarError   = "StatusBarError"
	StyleStatusBarTyping  = "StatusBarTyping"
	StyleStatusBarOnline  = "StatusBarOnline"
	StyleStatusBarOffline = "StatusBarOffline"
	StyleStatusBarCommand = "StatusBarCommand"
	StyleStatusBarDirty   = "StatusBarDirty"
)

type Theme struct {
	Name   string
	IsDark bool
	Styles map[string]tcell.Style
}

// GetStyle looks up name, then the part before its first dot, then Default.
func (t *Theme) GetStyle(name string) tcell.Style {
	if style, ok := t.Styles[name]; ok {
		return style
	}

	if dotIndex := strings.Index(name, "."); dotIndex != -1 {
		baseName := name[:dotIndex]
		if style, ok := t.Styles[baseName]; ok {
			logger.Debugf("Theme '%s': Style '%s' not found, using base '%s'", t.Name, name, baseName)
			return style
		}
	}

	if defStyle, ok := t.Styles[StyleDefault]; ok {
		if name != StyleDefault {
			logger.Debugf("Theme '%s': Style '%s' not found, falling back to 'Default'", t.Name, name)
		}
		return defStyle
	}

	logger.Warnf("Theme '%s': Style '%s' and 'Default' style not found, using tcell default.", t.Name, name)
	return tcell.StyleDefault
}

var PaperDark Theme

func init() {
	bar := tcell.NewHexColor(0x2a2f38)
	fg := tcell.NewHexColor(0xc5cdd9)
	muted := tcell.NewHexColor(0x5c6370)
	yellow := tcell.NewHexColor(0xe5c07b)
	green := tcell.NewHexColor(0x98c379)
	red := tcell.NewHexColor(0xe06c75)
	blue := tcell.NewHexColor(0x61afef)

	base := tcell.StyleDefault.Background(tcell.ColorReset).Foreground(fg)
	status := tcell.StyleDefault.Background(bar).Foreground(fg)

	PaperDark = Theme{
		Name:   "Paper Dark",
		IsDark: true,
		Styles: map[string]tcell.Style{
			StyleDefault:          base,
			StyleSelection:        base.Reverse(true),
			StyleRemoteCursor:     base.Foreground(tcell.ColorBlack),
			StyleStatusBar:        status,
			StyleStatusBarMessage: status.Bold(true),
			StyleStatusBarError:   status.Foreground(red).Bold(true),
			StyleStatusBarTyping:  status.Foreground(muted).Italic(true),
			StyleStatusBarOnline:  status.Foreground(green),
			StyleStatusBarOffline: status.Foreground(red),
			StyleStatusBarCommand: status.Foreground(blue).Bold(true),
			StyleStatusBarDirty:   status.Foreground(yellow),
		},
	}
}
