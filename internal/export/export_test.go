package export

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atotto/clipboard"
)

type doc struct{ content, text string }

func (d doc) Content() string { return d.content }
func (d doc) Text() string    { return d.text }

var sample = doc{content: "<p>hello</p><p>world</p>", text: "hello\nworld"}

func TestRender(t *testing.T) {
	cases := []struct {
		format string
		ext    string
		mime   string
		check  func(string) bool
	}{
		{"html", "html", "text/html", func(s string) bool { return s == sample.content }},
		{"txt", "txt", "text/plain", func(s string) bool { return s == sample.text }},
		{"doc", "doc", "application/msword", func(s string) bool {
			return strings.HasPrefix(s, "\ufeff<!DOCTYPE html>") && strings.Contains(s, "<body>"+sample.content+"</body>")
		}},
		{"HTML", "html", "text/html", func(s string) bool { return s == sample.content }},
	}
	for _, c := range cases {
		f, data, err := Render(c.format, sample)
		if err != nil {
			t.Fatalf("Render(%s): %v", c.format, err)
		}
		if f.Extension != c.ext || f.MIMEType != c.mime {
			t.Errorf("Render(%s) format = %+v", c.format, f)
		}
		if !c.check(string(data)) {
			t.Errorf("Render(%s) body = %q", c.format, data)
		}
		if f.FileName() != "document."+c.ext {
			t.Errorf("FileName = %q", f.FileName())
		}
	}
}

func TestWriteUnsupportedProducesNothing(t *testing.T) {
	dir := t.TempDir()
	_, err := Write(dir, "pdf", sample)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("files written: %v", entries)
	}
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := Write(dir, "txt", sample)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "document.txt" {
		t.Errorf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != sample.text {
		t.Errorf("file = %q", data)
	}
}

func TestClipboard(t *testing.T) {
	if clipboard.Unsupported {
		t.Skip("no clipboard utility on this system")
	}
	var copied string
	copyFunc = func(s string) error { copied = s; return nil }
	t.Cleanup(func() { copyFunc = clipboard.WriteAll })

	if err := Clipboard(sample); err != nil {
		t.Fatal(err)
	}
	if copied != sample.text {
		t.Errorf("copied %q", copied)
	}
}
