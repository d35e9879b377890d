// internal/tui/tui.go
package tui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/bethropolis/tandem/internal/theme"
)

// TUI manages the terminal screen and the vertical scroll of the document view.
type TUI struct {
	screen tcell.Screen
	viewY  int
}

// New creates and initializes a terminal screen.
func New(th *theme.Theme) (*TUI, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to create tcell screen: %w", err)
	}
	return NewWithScreen(s, th)
}

// NewWithScreen wraps an existing screen, such as a simulation screen in tests.
func NewWithScreen(s tcell.Screen, th *theme.Theme) (*TUI, error) {
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize tcell screen: %w", err)
	}
	s.SetStyle(th.GetStyle(theme.StyleDefault))
	return &TUI{screen: s}, nil
}

// Close finalizes the tcell screen.
func (t *TUI) Close() {
	if t.screen != nil {
		t.screen.Fini()
	}
}

// PollEvent blocks for the next event; nil after Close.
func (t *TUI) PollEvent() tcell.Event {
	return t.screen.PollEvent()
}

// PostEvent injects an event into the poll queue.
func (t *TUI) PostEvent(ev tcell.Event) error {
	return t.screen.PostEvent(ev)
}

func (t *TUI) Clear() {
	t.screen.Clear()
}

func (t *TUI) Show() {
	t.screen.Show()
}

func (t *TUI) Sync() {
	t.screen.Sync()
}

func (t *TUI) Size() (int, int) {
	return t.screen.Size()
}

func (t *TUI) GetScreen() tcell.Screen {
	return t.screen
}

// SetStyle changes the screen's base style, as after a theme switch.
func (t *TUI) SetStyle(th *theme.Theme) {
	t.screen.SetStyle(th.GetStyle(theme.StyleDefault))
}

// ViewY is the first document row shown.
func (t *TUI) ViewY() int {
	return t.viewY
}

// ScrollTo adjusts the viewport so row is visible in a view of viewHeight rows.
func (t *TUI) ScrollTo(row, viewHeight int) {
	if viewHeight <= 0 {
		return
	}
	if row < t.viewY {
		t.viewY = row
	} else if row >= t.viewY+viewHeight {
		t.viewY = row - viewHeight + 1
	}
	if t.viewY < 0 {
		t.viewY = 0
	}
}
