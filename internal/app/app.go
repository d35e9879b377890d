// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/bethropolis/tandem/internal/channel"
	"github.com/bethropolis/tandem/internal/event"
	"github.com/bethropolis/tandem/internal/input"
	"github.com/bethropolis/tandem/internal/logger"
	"github.com/bethropolis/tandem/internal/loop"
	"github.com/bethropolis/tandem/internal/modehandler"
	"github.com/bethropolis/tandem/internal/plugin"
	"github.com/bethropolis/tandem/internal/session"
	"github.com/bethropolis/tandem/internal/statusbar"
	"github.com/bethropolis/tandem/internal/theme"
	"github.com/bethropolis/tandem/internal/tui"
	"github.com/bethropolis/tandem/plugins/wordcount"
)

// messageCheckInterval is how often an expired status message is looked for.
const messageCheckInterval = 500 * time.Millisecond

// Config holds everything the application is assembled from.
type Config struct {
	Session *session.Session
	Loop    *loop.Loop
	// Channel is the live connection; nil runs the editor offline.
	Channel *channel.Client
	Themes  *theme.Manager
	// Screen overrides the terminal, for tests.
	Screen          tcell.Screen
	StatusBarHeight int
	MessageTimeout  time.Duration
}

// App encapsulates the core components and main loop of the editor.
type App struct {
	tuiManager    *tui.TUI
	session       *session.Session
	loop          *loop.Loop
	channel       *channel.Client
	statusBar     *statusbar.StatusBar
	eventManager  *event.Manager
	modeHandler   *modehandler.ModeHandler
	pluginManager *plugin.Manager
	themeManager  *theme.Manager
	activeTheme   *theme.Theme

	statusBarHeight int
	messageShown    bool

	// Channels managed by the App
	quit          chan struct{}
	redrawRequest chan struct{}
}

// NewApp creates and initializes a new application instance.
func NewApp(cfg Config) (*App, error) {
	if cfg.Session == nil || cfg.Loop == nil {
		return nil, errors.New("app: session and loop are required")
	}
	if cfg.Themes == nil {
		cfg.Themes = theme.NewManager("")
	}
	if cfg.StatusBarHeight <= 0 {
		cfg.StatusBarHeight = 1
	}
	activeTheme := cfg.Themes.Current()

	var (
		tuiManager *tui.TUI
		err        error
	)
	if cfg.Screen != nil {
		tuiManager, err = tui.NewWithScreen(cfg.Screen, activeTheme)
	} else {
		tuiManager, err = tui.New(activeTheme)
	}
	if err != nil {
		return nil, fmt.Errorf("TUI initialization failed: %w", err)
	}

	sbConfig := statusbar.DefaultConfig()
	if cfg.MessageTimeout > 0 {
		sbConfig.MessageTimeout = cfg.MessageTimeout
	}
	statusBar := statusbar.New(sbConfig)
	sessCfg := cfg.Session.Config()
	statusBar.SetDocumentInfo(sessCfg.DocID, sessCfg.User)
	if cfg.Channel == nil {
		statusBar.SetConnection("offline", false)
	}

	quitChan := make(chan struct{})
	a := &App{
		tuiManager:      tuiManager,
		session:         cfg.Session,
		loop:            cfg.Loop,
		channel:         cfg.Channel,
		statusBar:       statusBar,
		eventManager:    cfg.Session.Events(),
		pluginManager:   plugin.NewManager(),
		themeManager:    cfg.Themes,
		activeTheme:     activeTheme,
		statusBarHeight: cfg.StatusBarHeight,
		quit:            quitChan,
		redrawRequest:   make(chan struct{}, 1),
	}

	a.modeHandler = modehandler.New(modehandler.Config{
		Editor:         cfg.Session,
		InputProcessor: input.NewInputProcessor(),
		EventManager:   a.eventManager,
		StatusBar:      statusBar,
		QuitSignal:     quitChan,
		Redraw:         a.forceRedraw,
	})

	a.subscribe()
	registerAppCommands(a)

	// --- Register Built-in Plugins ---
	if err := a.pluginManager.Register(wordcount.New()); err != nil {
		logger.Warnf("Failed to register WordCount plugin: %v", err)
	}
	a.pluginManager.InitializePlugins(newEditorAPI(a))

	if a.channel != nil {
		a.channel.OnState(func(state channel.State, err error) {
			a.post(func() { a.session.ConnectionChanged(state, err) })
		})
	}
	return a, nil
}

// subscribe wires session events to the status bar and the redraw loop.
func (a *App) subscribe() {
	em := a.eventManager
	em.Subscribe(event.TypeNotify, a.handleNotify)
	em.Subscribe(event.TypeTypingChanged, a.handleTypingChanged)
	em.Subscribe(event.TypeConnectionChanged, a.handleConnectionChanged)
	em.Subscribe(event.TypeLocalEdit, func(event.Event) bool {
		a.statusBar.SetDirty(true)
		return false
	})
	em.Subscribe(event.TypeDocumentSaved, func(event.Event) bool {
		a.statusBar.SetDirty(false)
		a.requestRedraw()
		return false
	})
	em.Subscribe(event.TypeDocumentClosed, func(e event.Event) bool {
		if data, ok := e.Data.(event.DocumentClosedData); ok {
			logger.Infof("App: document closed (%s)", data.Reason)
		}
		a.modeHandler.Quit()
		return false
	})
	for _, t := range []event.Type{event.TypeDocumentLoaded, event.TypeRemoteEdit, event.TypeCursorPlaced} {
		em.Subscribe(t, func(event.Event) bool {
			a.requestRedraw()
			return false
		})
	}
}

func (a *App) handleNotify(e event.Event) bool {
	data, ok := e.Data.(event.NotifyData)
	if !ok {
		return false
	}
	if data.Blocking {
		a.statusBar.SetBlockingMessage("%s", data.Message)
	} else {
		a.statusBar.SetTemporaryMessage("%s", data.Message)
	}
	a.requestRedraw()
	return false
}

func (a *App) handleTypingChanged(event.Event) bool {
	badges := a.session.Typing().Badges()
	labels := make([]string, 0, len(badges))
	for _, b := range badges {
		labels = append(labels, b.Label)
	}
	a.statusBar.SetTyping(labels)
	a.requestRedraw()
	return false
}

func (a *App) handleConnectionChanged(e event.Event) bool {
	if data, ok := e.Data.(event.ConnectionChangedData); ok {
		a.statusBar.SetConnection(data.State, data.State == channel.StateConnected.String())
		a.requestRedraw()
	}
	return false
}

// post queues fn on the session loop.
func (a *App) post(fn func()) {
	if err := a.loop.Post(fn); err != nil {
		logger.Debugf("App: dropped task: %v", err)
	}
}

// Run starts the session loop, the live channel and the terminal event
// loop, and draws until the user quits or ctx ends.
func (a *App) Run(ctx context.Context) error {
	defer a.tuiManager.Close()
	defer a.pluginManager.ShutdownPlugins()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := a.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("App: session loop stopped: %v", err)
		}
	}()
	if a.channel != nil {
		go func() {
			if err := a.channel.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warnf("App: channel stopped: %v", err)
			}
		}()
	}
	go a.eventLoop()

	a.post(func() {
		a.session.Open()
		a.eventManager.Dispatch(event.TypeAppReady, event.AppReadyData{})
		a.statusBar.SetTemporaryMessage("tandem - Ctrl+S Save | Ctrl+K Command | Ctrl+Q Quit")
	})
	a.requestRedraw()

	ticker := time.NewTicker(messageCheckInterval)
	defer ticker.Stop()

	// --- Main Drawing Loop ---
	for {
		select {
		case <-a.quit:
			a.shutdown()
			logger.Infof("Exiting application.")
			return nil
		case <-ctx.Done():
			a.shutdown()
			return ctx.Err()
		case <-a.redrawRequest:
			a.post(a.drawEditor)
		case <-ticker.C:
			a.post(a.expireMessage)
		}
	}
}

// shutdown closes the session on the loop and waits for it.
func (a *App) shutdown() {
	done := make(chan struct{})
	err := a.loop.Post(func() {
		defer close(done)
		a.eventManager.Dispatch(event.TypeAppQuit, event.AppQuitData{})
		if a.session.Loaded() && a.statusBar.Dirty() {
			logger.Warnf("Warning: Exited with unsaved changes.")
		}
		a.session.Close()
	})
	if err != nil {
		return
	}
	select {
	case <-done:
	case <-a.loop.Done():
	case <-time.After(time.Second):
		logger.Warnf("App: session did not close in time")
	}
}

// eventLoop forwards terminal events to the session loop.
func (a *App) eventLoop() {
	for {
		ev := a.tuiManager.PollEvent()
		if ev == nil {
			return
		}

		switch eventData := ev.(type) {
		case *tcell.EventResize:
			a.post(func() {
				a.tuiManager.Sync()
				a.drawEditor()
			})
		case *tcell.EventKey:
			a.post(func() {
				if a.modeHandler.HandleKeyEvent(eventData) {
					a.requestRedraw()
				}
			})
		}
	}
}

// expireMessage redraws once a timed message has run out.
func (a *App) expireMessage() {
	if a.messageShown && !a.statusBar.HasMessage() {
		a.drawEditor()
	}
}

// --- Drawing ---

// drawEditor clears screen and redraws all components. It runs on the loop.
func (a *App) drawEditor() {
	screen := a.tuiManager.GetScreen()
	width, height := a.tuiManager.Size()

	s := a.session.Surface()
	view := tui.View{
		Layout:  s.Layout(width),
		Markers: a.session.Cursors().Markers(),
	}
	view.Caret, view.HasCaret = s.CaretRect()

	a.tuiManager.Clear()
	tui.DrawView(a.tuiManager, view, a.activeTheme, a.statusBarHeight)
	a.statusBar.Draw(screen, width, height, a.activeTheme)
	a.messageShown = a.statusBar.HasMessage()
	a.tuiManager.Show()
}

// forceRedraw resynchronises the whole terminal, as after Ctrl+L.
func (a *App) forceRedraw() {
	a.tuiManager.Sync()
	a.requestRedraw()
}

// requestRedraw sends a redraw signal non-blockingly.
func (a *App) requestRedraw() {
	select {
	case a.redrawRequest <- struct{}{}:
	default: // Don't block if a redraw is already pending
	}
}

// GetTheme returns the app's active theme.
func (a *App) GetTheme() *theme.Theme {
	return a.activeTheme
}

// SetTheme changes the app's active theme and triggers a redraw.
func (a *App) SetTheme(name string) error {
	if err := a.themeManager.SetTheme(name); err != nil {
		return err
	}
	a.activeTheme = a.themeManager.Current()
	a.tuiManager.SetStyle(a.activeTheme)
	a.eventManager.Dispatch(event.TypeThemeChanged, a.activeTheme.Name)
	a.requestRedraw()
	return nil
}
