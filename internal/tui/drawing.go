// internal/tui/drawing.go
package tui

import (
	"github.com/gdamore/tcell/v2"

	"github.com/bethropolis/tandem/internal/cursor"
	"github.com/bethropolis/tandem/internal/surface"
	"github.com/bethropolis/tandem/internal/theme"
	"github.com/bethropolis/tandem/internal/types"
)

// View is everything needed to paint the document area.
type View struct {
	Layout   *surface.Layout
	Caret    types.Rect
	HasCaret bool
	Markers  []cursor.Marker
}

func styleFor(base tcell.Style, attrs surface.Attr) tcell.Style {
	if attrs&surface.AttrBold != 0 {
		base = base.Bold(true)
	}
	if attrs&surface.AttrItalic != 0 {
		base = base.Italic(true)
	}
	if attrs&surface.AttrUnderline != 0 {
		base = base.Underline(true)
	}
	return base
}

// MarkerColor converts a collaborator colour for the terminal.
func MarkerColor(c cursor.Color) tcell.Color {
	r, g, b := c.RGB()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

// DrawView paints the layout rows above the status bar, then the remote
// markers, then places the terminal cursor on the local caret.
func DrawView(t *TUI, v View, th *theme.Theme, statusBarHeight int) {
	width, height := t.Size()
	viewHeight := height - statusBarHeight
	if width <= 0 || viewHeight <= 0 {
		t.screen.HideCursor()
		return
	}
	if v.HasCaret {
		t.ScrollTo(v.Caret.Row, viewHeight)
	}

	defaultStyle := th.GetStyle(theme.StyleDefault)
	var lines []surface.Line
	if v.Layout != nil {
		lines = v.Layout.Lines
	}

	for screenY := 0; screenY < viewHeight; screenY++ {
		for x := 0; x < width; x++ {
			t.screen.SetContent(x, screenY, ' ', nil, defaultStyle)
		}
		row := screenY + t.viewY
		if row >= len(lines) {
			continue
		}
		x := 0
		for _, cell := range lines[row].Cells {
			if x+cell.Width > width {
				break
			}
			style := styleFor(defaultStyle, cell.Attrs)
			t.screen.SetContent(x, screenY, cell.Runes[0], cell.Runes[1:], style)
			for cw := 1; cw < cell.Width; cw++ {
				t.screen.SetContent(x+cw, screenY, ' ', nil, style)
			}
			x += cell.Width
		}
	}

	markerBase := th.GetStyle(theme.StyleRemoteCursor)
	for _, m := range v.Markers {
		screenY := m.Rect.Row - t.viewY
		if screenY < 0 || screenY >= viewHeight || m.Rect.Col < 0 || m.Rect.Col >= width {
			continue
		}
		mainc, combc, style, _ := t.screen.GetContent(m.Rect.Col, screenY)
		_, _, attrs := style.Decompose()
		markerStyle := markerBase.Background(MarkerColor(m.Color)).Attributes(attrs)
		t.screen.SetContent(m.Rect.Col, screenY, mainc, combc, markerStyle)
	}

	if !v.HasCaret {
		t.screen.HideCursor()
		return
	}
	screenX, screenY := v.Caret.Col, v.Caret.Row-t.viewY
	if screenX < 0 || screenX >= width || screenY < 0 || screenY >= viewHeight {
		t.screen.HideCursor()
		return
	}
	t.screen.ShowCursor(screenX, screenY)
}
