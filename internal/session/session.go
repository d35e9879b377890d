// Package session wires one open document together: the surface, the echo
// suppressor, remote cursors, typing badges, autosave, the document API and
// the live channel. Every method must run on the session loop; network calls
// run on their own goroutines and post their results back.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bethropolis/tandem/internal/autosave"
	"github.com/bethropolis/tandem/internal/channel"
	"github.com/bethropolis/tandem/internal/cursor"
	"github.com/bethropolis/tandem/internal/docapi"
	"github.com/bethropolis/tandem/internal/drafts"
	"github.com/bethropolis/tandem/internal/echo"
	"github.com/bethropolis/tandem/internal/event"
	"github.com/bethropolis/tandem/internal/logger"
	"github.com/bethropolis/tandem/internal/loop"
	"github.com/bethropolis/tandem/internal/surface"
	"github.com/bethropolis/tandem/internal/types"
	"github.com/bethropolis/tandem/internal/typing"
)

// DefaultRequestTimeout bounds each document API call.
const DefaultRequestTimeout = 15 * time.Second

// Poster queues a callback on the session loop.
type Poster interface {
	Post(fn func()) error
}

// DocumentAPI is the part of docapi.Client the session uses.
type DocumentAPI interface {
	Fetch(ctx context.Context, docID string) (docapi.Document, error)
	Save(ctx context.Context, docID, content string) error
	Delete(ctx context.Context, deleteURL string) error
	DeleteURL(docID string) string
	Versions(ctx context.Context, docID string) ([]docapi.Version, error)
	Version(ctx context.Context, docID, versionID string) (docapi.Version, error)
	Revert(ctx context.Context, docID, versionID string) (string, error)
	List(ctx context.Context) ([]docapi.Summary, error)
}

// Sender queues an outbound channel message without blocking.
type Sender interface {
	Send(m channel.Message) bool
}

// DraftStore is the part of drafts.Store the session uses.
type DraftStore interface {
	Put(d drafts.Draft) error
	Get(server, docID string) (drafts.Draft, error)
	Delete(server, docID string) error
}

// Config describes the document and the local user.
type Config struct {
	DocID           string
	User            string
	Server          string // base URL, also the draft key
	ExportDir       string
	Autosave        autosave.Config
	AutosaveEnabled bool
	TypingTimeout   time.Duration
	RequestTimeout  time.Duration
	NoClipboard     bool // disables CopyText
}

// Deps are the collaborators a session is built from. Channel and Drafts may be nil.
type Deps struct {
	Loop    Poster
	Clock   loop.Clock
	API     DocumentAPI
	Channel Sender
	Drafts  DraftStore
	Events  *event.Manager
}

// Session is one open document.
type Session struct {
	cfg    Config
	loop   Poster
	clock  loop.Clock
	api    DocumentAPI
	sender Sender
	drafts DraftStore
	events *event.Manager

	surface  *surface.Surface
	echo     *echo.Suppressor
	cursors  *cursor.Manager
	typing   *typing.Manager
	autosave *autosave.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
	loaded bool
	closed bool

	// alerted is set once a connection failure has been shown as blocking;
	// it clears when the channel connects again.
	alerted bool
}

// New builds a session. Nothing touches the network until Open.
func New(cfg Config, deps Deps) (*Session, error) {
	if cfg.DocID == "" {
		return nil, errors.New("session: document id is required")
	}
	if cfg.User == "" {
		return nil, errors.New("session: user is required")
	}
	if deps.Loop == nil || deps.Clock == nil || deps.API == nil {
		return nil, errors.New("session: loop, clock and api are required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if deps.Events == nil {
		deps.Events = event.NewManager()
	}

	s := &Session{
		cfg:     cfg,
		loop:    deps.Loop,
		clock:   deps.Clock,
		api:     deps.API,
		sender:  deps.Channel,
		drafts:  deps.Drafts,
		events:  deps.Events,
		surface: surface.New(),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.echo = echo.New(s.surface, cfg.User, s.sendEdit)
	s.cursors = cursor.NewManager(s.surface)
	s.typing = typing.NewManager(s.clock, cfg.TypingTimeout)
	s.typing.OnChange(func() { s.events.Dispatch(event.TypeTypingChanged, nil) })
	s.autosave = autosave.New(s.clock, cfg.Autosave, s.save)
	s.surface.OnInput(s.onInput)
	return s, nil
}

// Surface returns the editable document.
func (s *Session) Surface() *surface.Surface { return s.surface }

// Cursors returns the remote marker manager.
func (s *Session) Cursors() *cursor.Manager { return s.cursors }

// Typing returns the typing badge manager.
func (s *Session) Typing() *typing.Manager { return s.typing }

// Autosave returns the save scheduler.
func (s *Session) Autosave() *autosave.Scheduler { return s.autosave }

// Events returns the session event bus.
func (s *Session) Events() *event.Manager { return s.events }

// Config returns the session configuration.
func (s *Session) Config() Config { return s.cfg }

// Loaded reports whether document content has arrived.
func (s *Session) Loaded() bool { return s.loaded }

// Closed reports whether Close has run.
func (s *Session) Closed() bool { return s.closed }

func (s *Session) notify(blocking bool, format string, args ...interface{}) {
	s.events.Dispatch(event.TypeNotify, event.NotifyData{
		Message:  fmt.Sprintf(format, args...),
		Blocking: blocking,
	})
}

// async runs work off the loop with a request deadline and posts then back.
func (s *Session) async(work func(ctx context.Context) func()) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.RequestTimeout)
	go func() {
		defer cancel()
		then := work(ctx)
		if err := s.loop.Post(then); err != nil {
			logger.DebugTagf("session", "result dropped: %v", err)
		}
	}()
}

// Open fetches the document. The content is applied on the loop and
// autosave is armed afterwards; when the fetch fails the local draft is used.
func (s *Session) Open() {
	docID := s.cfg.DocID
	s.async(func(ctx context.Context) func() {
		doc, err := s.api.Fetch(ctx, docID)
		return func() { s.fetched(doc, err) }
	})
}

func (s *Session) fetched(doc docapi.Document, err error) {
	if s.closed {
		return
	}
	if s.loaded {
		// A live snapshot arrived first and is newer than the stored copy.
		logger.InfoTagf("session", "ignoring fetch result for %s; live content already shown", s.cfg.DocID)
		return
	}
	if err != nil {
		logger.ErrorTagf("session", "Error fetching document %s: %v", s.cfg.DocID, err)
		if s.restoreDraft() {
			s.notify(false, "Server unreachable, opened local draft")
			return
		}
		s.notify(true, "Failed to load document %s: %v", s.cfg.DocID, err)
		return
	}

	if err := s.surface.SetContent(doc.Content, surface.OriginLoad); err != nil {
		logger.ErrorTagf("session", "Error applying fetched content: %v", err)
		s.notify(true, "Document %s could not be displayed: %v", s.cfg.DocID, err)
		return
	}
	s.markLoaded(false)

	if s.drafts != nil {
		if d, err := s.drafts.Get(s.cfg.Server, s.cfg.DocID); err == nil && !d.Synced && d.Content != doc.Content {
			s.notify(false, "Unsynced local draft from %s available (:draft to restore)", d.SavedAt.Format(time.Kitchen))
		}
	}
}

func (s *Session) markLoaded(fromDraft bool) {
	s.loaded = true
	if s.cfg.AutosaveEnabled {
		s.autosave.Start()
	}
	logger.InfoTagf("session", "document %s loaded (draft=%v)", s.cfg.DocID, fromDraft)
	s.events.Dispatch(event.TypeDocumentLoaded, event.DocumentLoadedData{DocID: s.cfg.DocID, FromDraft: fromDraft})
}

// restoreDraft loads the local draft, if any, without broadcasting it.
func (s *Session) restoreDraft() bool {
	if s.drafts == nil {
		return false
	}
	d, err := s.drafts.Get(s.cfg.Server, s.cfg.DocID)
	if err != nil {
		if !errors.Is(err, drafts.ErrNoDraft) {
			logger.WarnTagf("session", "reading draft: %v", err)
		}
		return false
	}
	if err := s.surface.SetContent(d.Content, surface.OriginLoad); err != nil {
		logger.WarnTagf("session", "applying draft: %v", err)
		return false
	}
	s.markLoaded(true)
	return true
}

// RestoreDraft replaces the document with the local draft as a local edit,
// so collaborators and the next save pick it up.
func (s *Session) RestoreDraft() error {
	if s.drafts == nil {
		return errors.New("no draft store")
	}
	d, err := s.drafts.Get(s.cfg.Server, s.cfg.DocID)
	if err != nil {
		return err
	}
	return s.surface.SetContent(d.Content, surface.OriginLocal)
}

// onInput runs after every surface mutation, behind the echo suppressor.
func (s *Session) onInput(c surface.Change) {
	if c.Origin != surface.OriginLocal || s.echo.Suppressed() {
		return
	}
	s.autosave.Touch()
}

func (s *Session) sendEdit(ev types.EditEvent) {
	sent := false
	if s.sender != nil {
		sent = s.sender.Send(channel.EditMessage(ev))
		if !sent {
			logger.WarnTagf("session", "edit not queued; channel is full")
		}
	}
	s.events.Dispatch(event.TypeLocalEdit, event.LocalEditData{Edit: ev, Sent: sent})
}

// Close stops timers and cancels outstanding requests.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.autosave.Stop()
	s.typing.Clear()
	s.cancel()
}
