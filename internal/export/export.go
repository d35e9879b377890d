// Package export turns the current document into a downloadable file or puts
// its text on the system clipboard.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
)

// ErrUnsupportedFormat is returned for any format other than html, txt or doc.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Source is the document being exported.
type Source interface {
	Content() string // serialized markup
	Text() string    // plain text, one line per block
}

// Format describes one export target.
type Format struct {
	Name      string
	Extension string
	MIMEType  string
}

var formats = map[string]Format{
	"html": {Name: "html", Extension: "html", MIMEType: "text/html"},
	"txt":  {Name: "txt", Extension: "txt", MIMEType: "text/plain"},
	"doc":  {Name: "doc", Extension: "doc", MIMEType: "application/msword"},
}

// Lookup returns the format registered under name.
func Lookup(name string) (Format, error) {
	f, ok := formats[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	return f, nil
}

// FileName is the download name for a format: document.<ext>.
func (f Format) FileName() string {
	return "document." + f.Extension
}

const byteOrderMark = "\ufeff"

// wordTemplate is the minimal HTML wrapper word processors open as a document.
const wordTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Document</title></head>
<body>%s</body>
</html>
`

// Render produces the file body for format.
func Render(format string, src Source) (Format, []byte, error) {
	f, err := Lookup(format)
	if err != nil {
		return Format{}, nil, err
	}
	switch f.Name {
	case "html":
		return f, []byte(src.Content()), nil
	case "txt":
		return f, []byte(src.Text()), nil
	case "doc":
		return f, []byte(byteOrderMark + fmt.Sprintf(wordTemplate, src.Content())), nil
	}
	return Format{}, nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// Write renders format into dir/document.<ext> and returns the path.
// Nothing is written for an unsupported format.
func Write(dir, format string, src Source) (string, error) {
	f, data, err := Render(format, src)
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, f.FileName())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// copyFunc is swapped out in tests; the real clipboard needs a display.
var copyFunc = clipboard.WriteAll

// Clipboard copies the plain text of src to the system clipboard.
func Clipboard(src Source) error {
	if clipboard.Unsupported {
		return errors.New("system clipboard is not available")
	}
	if err := copyFunc(src.Text()); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}
