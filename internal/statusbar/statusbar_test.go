package statusbar

import (
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/bethropolis/tandem/internal/theme"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newBar() (*StatusBar, *fakeClock) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	cfg := DefaultConfig()
	cfg.Now = clk.Now
	return New(cfg), clk
}

func lineOf(t *testing.T, sb *StatusBar, w int) string {
	t.Helper()
	sim := tcell.NewSimulationScreen("UTF-8")
	if err := sim.Init(); err != nil {
		t.Fatal(err)
	}
	defer sim.Fini()
	sim.SetSize(w, 2)
	sb.Draw(sim, w, 2, &theme.PaperDark)
	var out []rune
	for x := 0; x < w; x++ {
		r, _, _, _ := sim.GetContent(x, 1)
		out = append(out, r)
	}
	return strings.TrimRight(string(out), " ")
}

func TestTemporaryMessageExpires(t *testing.T) {
	sb, clk := newBar()
	sb.SetTemporaryMessage("Saved %s", "42")
	if msg, blocking := sb.Message(); msg != "Saved 42" || blocking {
		t.Fatalf("Message = %q, %v", msg, blocking)
	}
	clk.now = clk.now.Add(5 * time.Second)
	if msg, _ := sb.Message(); msg != "" {
		t.Errorf("message should have expired, got %q", msg)
	}
}

func TestBlockingMessageStays(t *testing.T) {
	sb, clk := newBar()
	sb.SetBlockingMessage("Connection failed")
	clk.now = clk.now.Add(time.Hour)
	if !sb.Blocking() {
		t.Fatal("blocking message should stay until reset")
	}
	if got := lineOf(t, sb, 40); got != " Connection failed" {
		t.Errorf("line = %q", got)
	}
	sb.ResetTemporaryMessage()
	if sb.Blocking() {
		t.Error("reset should clear the blocking message")
	}
}

func TestDrawDefaultLine(t *testing.T) {
	sb, _ := newBar()
	sb.SetDocumentInfo("42", "alice")
	sb.SetConnection("connected", true)
	sb.SetTyping([]string{"bob is typing…"})
	sb.SetDirty(true)

	got := lineOf(t, sb, 60)
	if !strings.HasPrefix(got, " doc 42 [+] -- alice") {
		t.Errorf("left part = %q", got)
	}
	if !strings.HasSuffix(got, "[connected]") {
		t.Errorf("right part = %q", got)
	}
	if !strings.Contains(got, "bob is typing…") {
		t.Errorf("badge missing: %q", got)
	}
}

func TestDrawCommandLine(t *testing.T) {
	sb, _ := newBar()
	sb.SetTemporaryMessage("ignored while typing a command")
	sb.SetCommand(true, "export html")
	if got := lineOf(t, sb, 30); got != ":export html" {
		t.Errorf("line = %q", got)
	}
}
