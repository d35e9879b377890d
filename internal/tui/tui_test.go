package tui

import (
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/bethropolis/tandem/internal/cursor"
	"github.com/bethropolis/tandem/internal/surface"
	"github.com/bethropolis/tandem/internal/theme"
	"github.com/bethropolis/tandem/internal/types"
)

func newSimTUI(t *testing.T, w, h int) (*TUI, tcell.SimulationScreen) {
	t.Helper()
	sim := tcell.NewSimulationScreen("UTF-8")
	tu, err := NewWithScreen(sim, &theme.PaperDark)
	if err != nil {
		t.Fatalf("NewWithScreen: %v", err)
	}
	t.Cleanup(tu.Close)
	sim.SetSize(w, h)
	return tu, sim
}

func rowText(sim tcell.SimulationScreen, y, w int) string {
	var out []rune
	for x := 0; x < w; x++ {
		r, _, _, _ := sim.GetContent(x, y)
		out = append(out, r)
	}
	return string(out)
}

func TestDrawViewRowsAndAttrs(t *testing.T) {
	tu, sim := newSimTUI(t, 10, 4)
	s := surface.New()
	if err := s.SetContent("<p>a<b>b</b></p><p>cd</p>", surface.OriginLoad); err != nil {
		t.Fatal(err)
	}
	DrawView(tu, View{Layout: s.Layout(10)}, &theme.PaperDark, 1)

	if got := rowText(sim, 0, 3); got != "ab " {
		t.Errorf("row 0 = %q", got)
	}
	if got := rowText(sim, 1, 3); got != "cd " {
		t.Errorf("row 1 = %q", got)
	}
	_, _, style, _ := sim.GetContent(1, 0)
	if _, _, attrs := style.Decompose(); attrs&tcell.AttrBold == 0 {
		t.Error("bold cell should be drawn bold")
	}
}

func TestDrawViewMarkerAndCaret(t *testing.T) {
	tu, sim := newSimTUI(t, 10, 4)
	s := surface.New()
	if err := s.SetContent("<p>hello</p>", surface.OriginLoad); err != nil {
		t.Fatal(err)
	}
	bob := cursor.ColorFor("bob")
	DrawView(tu, View{
		Layout:   s.Layout(10),
		Caret:    types.Rect{Row: 0, Col: 2, Width: 1, Height: 1},
		HasCaret: true,
		Markers:  []cursor.Marker{{User: "bob", Color: bob, Rect: types.Rect{Row: 0, Col: 4, Width: 1, Height: 1}}},
	}, &theme.PaperDark, 1)
	sim.Show()

	r, _, style, _ := sim.GetContent(4, 0)
	if r != 'o' {
		t.Errorf("marker cell rune = %q, want 'o'", r)
	}
	if _, bg, _ := style.Decompose(); bg != MarkerColor(bob) {
		t.Errorf("marker background = %v, want %v", bg, MarkerColor(bob))
	}
	if x, y, visible := sim.GetCursor(); !visible || x != 2 || y != 0 {
		t.Errorf("cursor = (%d,%d) visible=%v", x, y, visible)
	}
}

func TestScrollTo(t *testing.T) {
	tu := &TUI{}
	tu.ScrollTo(10, 5)
	if tu.ViewY() != 6 {
		t.Errorf("viewY = %d, want 6", tu.ViewY())
	}
	tu.ScrollTo(2, 5)
	if tu.ViewY() != 2 {
		t.Errorf("viewY = %d, want 2", tu.ViewY())
	}
	tu.ScrollTo(4, 5)
	if tu.ViewY() != 2 {
		t.Errorf("viewY moved to %d for a visible row", tu.ViewY())
	}
}
