package theme

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestGetStyleFallbacks(t *testing.T) {
	th := &Theme{Name: "t", Styles: map[string]tcell.Style{
		"Default":   tcell.StyleDefault.Foreground(tcell.ColorWhite),
		"StatusBar": tcell.StyleDefault.Foreground(tcell.ColorRed),
	}}
	if th.GetStyle("StatusBar.extra") != th.Styles["StatusBar"] {
		t.Error("dotted name should fall back to its base")
	}
	if th.GetStyle("Missing") != th.Styles["Default"] {
		t.Error("unknown name should fall back to Default")
	}
	empty := &Theme{Name: "empty", Styles: map[string]tcell.Style{}}
	if empty.GetStyle("x") != tcell.StyleDefault {
		t.Error("theme without Default should return tcell default")
	}
}

func TestBuiltinCoversEditorStyles(t *testing.T) {
	for _, name := range []string{
		StyleDefault, StyleSelection, StyleRemoteCursor, StyleStatusBar,
		StyleStatusBarMessage, StyleStatusBarError, StyleStatusBarTyping,
		StyleStatusBarOnline, StyleStatusBarOffline, StyleStatusBarCommand, StyleStatusBarDirty,
	} {
		if _, ok := PaperDark.Styles[name]; !ok {
			t.Errorf("built-in theme lacks %s", name)
		}
	}
}

func TestParseColorString(t *testing.T) {
	cases := []struct {
		in   string
		want tcell.Color
	}{
		{"#ff0000", tcell.NewRGBColor(255, 0, 0)},
		{"#0f0", tcell.NewRGBColor(0, 255, 0)},
		{" RESET ", tcell.ColorReset},
		{"default", tcell.ColorDefault},
		{"red", tcell.ColorRed},
	}
	for _, c := range cases {
		got, err := parseColorString(c.in)
		if err != nil {
			t.Errorf("parseColorString(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseColorString(%q) = %v, want %v", c.in, got, c.want)
		}
	}
	for _, bad := range []string{"#zzz", "not-a-colour"} {
		if _, err := parseColorString(bad); err == nil {
			t.Errorf("parseColorString(%q) should fail", bad)
		}
	}
}

func TestManagerLoadsDirectory(t *testing.T) {
	dir := t.TempDir()
	data := `
name = "Paper Light"
is_dark = false

[styles.Default]
fg = "#000000"
bg = "#ffffff"

[styles.StatusBar]
bold = true
`
	if err := os.WriteFile(filepath.Join(dir, "light.toml"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.toml"), []byte("name = ["), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(dir)
	if got := m.ListThemes(); len(got) != 2 || got[0] != "Paper Dark" || got[1] != "Paper Light" {
		t.Fatalf("ListThemes = %v", got)
	}
	if m.Current().Name != "Paper Dark" {
		t.Errorf("initial theme = %s", m.Current().Name)
	}
	if err := m.SetTheme("paper light"); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	light := m.Current()
	fg, bg, _ := light.GetStyle(StyleStatusBar).Decompose()
	if fg != tcell.NewRGBColor(0, 0, 0) || bg != tcell.NewRGBColor(255, 255, 255) {
		t.Errorf("StatusBar should inherit Default colours, got fg=%v bg=%v", fg, bg)
	}
	if err := m.SetTheme("nope"); err == nil {
		t.Error("SetTheme should fail for an unknown theme")
	}
}

func TestManagerMissingDirectory(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "absent"))
	if len(m.ListThemes()) != 1 {
		t.Errorf("themes = %v", m.ListThemes())
	}
}
