package session

import (
	"context"
	"errors"
	"time"

	"github.com/bethropolis/tandem/internal/autosave"
	"github.com/bethropolis/tandem/internal/docapi"
	"github.com/bethropolis/tandem/internal/drafts"
	"github.com/bethropolis/tandem/internal/event"
	"github.com/bethropolis/tandem/internal/export"
	"github.com/bethropolis/tandem/internal/logger"
	"github.com/bethropolis/tandem/internal/surface"
)

// ErrClipboardDisabled is returned by CopyText when the clipboard is turned off.
var ErrClipboardDisabled = errors.New("system clipboard disabled")

// save is the autosave.SaveFunc. The draft is written first so a failed
// request still leaves the content on disk.
func (s *Session) save(trigger autosave.Trigger, done func(error)) {
	content := s.surface.Content()
	docID := s.cfg.DocID
	s.async(func(ctx context.Context) func() {
		s.putDraft(content, false)
		err := s.api.Save(ctx, docID, content)
		if err == nil {
			s.putDraft(content, true)
		}
		return func() {
			if err != nil {
				logger.ErrorTagf("session", "Error saving document %s: %v", docID, err)
			} else {
				s.events.Dispatch(event.TypeDocumentSaved, event.DocumentSavedData{DocID: docID, Trigger: trigger.String()})
			}
			done(err)
		}
	})
}

// putDraft runs off the loop; bbolt serializes writers itself.
func (s *Session) putDraft(content string, synced bool) {
	if s.drafts == nil {
		return
	}
	err := s.drafts.Put(drafts.Draft{
		DocID:   s.cfg.DocID,
		Server:  s.cfg.Server,
		Content: content,
		SavedAt: time.Now(),
		Synced:  synced,
	})
	if err != nil {
		logger.WarnTagf("session", "writing draft: %v", err)
	}
}

// SaveNow asks the scheduler for an immediate save.
func (s *Session) SaveNow() {
	s.autosave.SaveNow()
}

// Export writes the document in format to the export directory.
// Unsupported formats produce a blocking notification and no file.
func (s *Session) Export(format string) (string, error) {
	path, err := export.Write(s.cfg.ExportDir, format, s.surface)
	if err != nil {
		if errors.Is(err, export.ErrUnsupportedFormat) {
			s.notify(true, "Unsupported format: %s", format)
		} else {
			logger.ErrorTagf("session", "export %s: %v", format, err)
			s.notify(true, "Export failed: %v", err)
		}
		return "", err
	}
	s.notify(false, "Exported %s", path)
	return path, nil
}

// CopyText puts the plain text of the document on the system clipboard.
func (s *Session) CopyText() error {
	if s.cfg.NoClipboard {
		s.notify(false, "System clipboard is disabled")
		return ErrClipboardDisabled
	}
	if err := export.Clipboard(s.surface); err != nil {
		s.notify(false, "Copy failed: %v", err)
		return err
	}
	s.notify(false, "Document text copied")
	return nil
}

// Format toggles an inline element (b, i, u) around the word at the caret.
func (s *Session) Format(tag string) error {
	changed, err := s.surface.Wrap(tag)
	if err != nil {
		return err
	}
	if !changed {
		s.notify(false, "Nothing to format")
	}
	return nil
}

// Replace runs a regular-expression replacement over the document markup.
func (s *Session) Replace(pattern, replacement string) (int, error) {
	n, err := s.surface.ReplaceAll(pattern, replacement)
	if err != nil {
		return 0, err
	}
	s.notify(false, "%d replacement(s)", n)
	return n, nil
}

// Delete removes the document on the server. Failure is reported to the
// user; success closes the session.
func (s *Session) Delete() {
	target := s.api.DeleteURL(s.cfg.DocID)
	s.async(func(ctx context.Context) func() {
		err := s.api.Delete(ctx, target)
		return func() { s.deleted(err) }
	})
}

func (s *Session) deleted(err error) {
	if err != nil {
		logger.ErrorTagf("session", "Error deleting document %s: %v", s.cfg.DocID, err)
		s.notify(true, "Failed to delete document: %v", err)
		return
	}
	if s.drafts != nil {
		if err := s.drafts.Delete(s.cfg.Server, s.cfg.DocID); err != nil {
			logger.WarnTagf("session", "removing draft: %v", err)
		}
	}
	s.Close()
	s.events.Dispatch(event.TypeDocumentClosed, event.DocumentClosedData{Reason: "deleted"})
}

// Versions lists saved versions; result runs on the loop.
func (s *Session) Versions(result func([]docapi.Version, error)) {
	docID := s.cfg.DocID
	s.async(func(ctx context.Context) func() {
		versions, err := s.api.Versions(ctx, docID)
		return func() { result(versions, err) }
	})
}

// Version loads one saved version with its content; result runs on the loop.
func (s *Session) Version(versionID string, result func(docapi.Version, error)) {
	docID := s.cfg.DocID
	s.async(func(ctx context.Context) func() {
		v, err := s.api.Version(ctx, docID, versionID)
		return func() { result(v, err) }
	})
}

// Documents lists the documents on the server; result runs on the loop.
func (s *Session) Documents(result func([]docapi.Summary, error)) {
	s.async(func(ctx context.Context) func() {
		docs, err := s.api.List(ctx)
		return func() { result(docs, err) }
	})
}

// Revert restores a saved version and broadcasts it as a local edit.
func (s *Session) Revert(versionID string) {
	docID := s.cfg.DocID
	s.async(func(ctx context.Context) func() {
		content, err := s.api.Revert(ctx, docID, versionID)
		return func() {
			if err != nil {
				logger.ErrorTagf("session", "reverting to version %s: %v", versionID, err)
				s.notify(true, "Revert failed: %v", err)
				return
			}
			if err := s.surface.SetContent(content, surface.OriginLocal); err != nil {
				s.notify(true, "Reverted content could not be displayed: %v", err)
				return
			}
			s.notify(false, "Reverted to version %s", versionID)
		}
	})
}
