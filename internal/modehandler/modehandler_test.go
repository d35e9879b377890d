package modehandler

import (
	"errors"
	"reflect"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/bethropolis/tandem/internal/event"
	"github.com/bethropolis/tandem/internal/input"
	"github.com/bethropolis/tandem/internal/statusbar"
	"github.com/bethropolis/tandem/internal/surface"
)

type fakeEditor struct {
	surface *surface.Surface
	saves   int
	exports []string
	copies  int
	formats []string
}

func (f *fakeEditor) Surface() *surface.Surface { return f.surface }
func (f *fakeEditor) SaveNow()                  { f.saves++ }
func (f *fakeEditor) CopyText() error           { f.copies++; return nil }

func (f *fakeEditor) Export(format string) (string, error) {
	f.exports = append(f.exports, format)
	return "doc." + format, nil
}

func (f *fakeEditor) Format(tag string) error {
	f.formats = append(f.formats, tag)
	return nil
}

type harness struct {
	mh     *ModeHandler
	editor *fakeEditor
	bar    *statusbar.StatusBar
	quit   chan struct{}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s := surface.New()
	if err := s.SetContent("<p>ab</p>", surface.OriginLoad); err != nil {
		t.Fatal(err)
	}
	ed := &fakeEditor{surface: s}
	bar := statusbar.New(statusbar.DefaultConfig())
	quit := make(chan struct{})
	mh := New(Config{
		Editor:         ed,
		InputProcessor: input.NewInputProcessor(),
		EventManager:   event.NewManager(),
		StatusBar:      bar,
		QuitSignal:     quit,
	})
	return &harness{mh: mh, editor: ed, bar: bar, quit: quit}
}

func key(k tcell.Key) *tcell.EventKey { return tcell.NewEventKey(k, 0, tcell.ModNone) }
func ctrl(k tcell.Key) *tcell.EventKey { return tcell.NewEventKey(k, 0, tcell.ModCtrl) }
func char(r rune) *tcell.EventKey      { return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone) }

func (h *harness) typeString(s string) {
	for _, r := range s {
		h.mh.HandleKeyEvent(char(r))
	}
}

func TestTypingEditsSurface(t *testing.T) {
	h := newHarness(t)
	h.typeString("c:")
	h.mh.HandleKeyEvent(key(tcell.KeyBackspace2))
	if got := h.editor.surface.Content(); got != "<p>abc</p>" {
		t.Errorf("content = %q", got)
	}
}

func TestShortcuts(t *testing.T) {
	h := newHarness(t)
	h.mh.HandleKeyEvent(ctrl(tcell.KeyCtrlS))
	h.mh.HandleKeyEvent(ctrl(tcell.KeyCtrlB))
	h.mh.HandleKeyEvent(ctrl(tcell.KeyCtrlT))
	h.mh.HandleKeyEvent(ctrl(tcell.KeyCtrlU))
	h.mh.HandleKeyEvent(ctrl(tcell.KeyCtrlE))
	h.mh.HandleKeyEvent(ctrl(tcell.KeyCtrlY))

	if h.editor.saves != 1 || h.editor.copies != 1 {
		t.Errorf("saves=%d copies=%d", h.editor.saves, h.editor.copies)
	}
	if !reflect.DeepEqual(h.editor.formats, []string{"b", "i", "u"}) {
		t.Errorf("formats = %v", h.editor.formats)
	}
	if !reflect.DeepEqual(h.editor.exports, []string{"html"}) {
		t.Errorf("exports = %v", h.editor.exports)
	}
}

func TestCommandLine(t *testing.T) {
	h := newHarness(t)
	var got []string
	if err := h.mh.RegisterCommand("replace", func(args []string) error {
		got = args
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := h.mh.RegisterCommand("replace", nil); err == nil {
		t.Error("duplicate registration should fail")
	}

	h.mh.HandleKeyEvent(ctrl(tcell.KeyCtrlK))
	if h.mh.GetCurrentMode() != ModeCommand {
		t.Fatal("Ctrl+K should enter command mode")
	}
	h.typeString(`replace fo+ "new text"`)
	if h.mh.GetCommandBuffer() != `replace fo+ "new text"` {
		t.Errorf("buffer = %q", h.mh.GetCommandBuffer())
	}
	h.mh.HandleKeyEvent(key(tcell.KeyEnter))

	if h.mh.GetCurrentMode() != ModeNormal {
		t.Error("Enter should leave command mode")
	}
	if !reflect.DeepEqual(got, []string{"fo+", "new text"}) {
		t.Errorf("args = %q", got)
	}
	if h.editor.surface.Content() != "<p>ab</p>" {
		t.Error("command typing must not reach the document")
	}
}

func TestCommandErrorsAndCancel(t *testing.T) {
	h := newHarness(t)
	_ = h.mh.RegisterCommand("fail", func([]string) error { return errors.New("boom") })

	h.mh.HandleKeyEvent(ctrl(tcell.KeyCtrlK))
	h.typeString("fail")
	h.mh.HandleKeyEvent(key(tcell.KeyEnter))
	if msg, _ := h.bar.Message(); msg != "Error executing command 'fail': boom" {
		t.Errorf("message = %q", msg)
	}

	h.mh.HandleKeyEvent(ctrl(tcell.KeyCtrlK))
	h.typeString("nope")
	h.mh.HandleKeyEvent(key(tcell.KeyEnter))
	if msg, _ := h.bar.Message(); msg != "Unknown command: nope" {
		t.Errorf("message = %q", msg)
	}

	h.mh.HandleKeyEvent(ctrl(tcell.KeyCtrlK))
	h.typeString("x")
	h.mh.HandleKeyEvent(key(tcell.KeyEscape))
	if h.mh.GetCurrentMode() != ModeNormal || h.mh.GetCommandBuffer() != "" {
		t.Error("Esc should cancel the command line")
	}
}

func TestBlockingMessageSwallowsKey(t *testing.T) {
	h := newHarness(t)
	h.bar.SetBlockingMessage("Failed to delete document")
	h.mh.HandleKeyEvent(char('x'))
	if h.bar.Blocking() {
		t.Error("key should dismiss the blocking message")
	}
	if h.editor.surface.Content() != "<p>ab</p>" {
		t.Error("dismissing key must not edit the document")
	}
}

func TestQuitClosesOnce(t *testing.T) {
	h := newHarness(t)
	h.mh.HandleKeyEvent(ctrl(tcell.KeyCtrlQ))
	h.mh.HandleKeyEvent(ctrl(tcell.KeyCtrlQ))
	select {
	case <-h.quit:
	default:
		t.Error("quit signal not closed")
	}
}

func TestSplitArgs(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"  save  ", []string{"save"}},
		{`replace a "b c"`, []string{"replace", "a", "b c"}},
		{`replace "" x`, []string{"replace", "", "x"}},
		{`replace "say \"hi\"" y`, []string{"replace", `say "hi"`, "y"}},
	}
	for _, c := range cases {
		got, err := splitArgs(c.in)
		if err != nil {
			t.Errorf("splitArgs(%q): %v", c.in, err)
			continue
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("splitArgs(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	if _, err := splitArgs(`replace "open`); err == nil {
		t.Error("unterminated quote should fail")
	}
}
