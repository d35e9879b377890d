// cmd/tandem/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stlog "log" // Use standard log for FATAL errors before logger is ready
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bethropolis/tandem/internal/app"
	"github.com/bethropolis/tandem/internal/autosave"
	"github.com/bethropolis/tandem/internal/channel"
	"github.com/bethropolis/tandem/internal/config"
	"github.com/bethropolis/tandem/internal/discovery"
	"github.com/bethropolis/tandem/internal/docapi"
	"github.com/bethropolis/tandem/internal/drafts"
	"github.com/bethropolis/tandem/internal/event"
	"github.com/bethropolis/tandem/internal/logger"
	"github.com/bethropolis/tandem/internal/loop"
	"github.com/bethropolis/tandem/internal/session"
	"github.com/bethropolis/tandem/internal/theme"
)

const discoveryTimeout = 3 * time.Second

func main() {
	// --- Argument & Flag Parsing ---
	flags := config.NewFlags(flag.CommandLine)
	flags.DefineFlags()
	flags.DefineClientFlags()
	args, err := flags.Parse(os.Args[1:])
	if err != nil {
		stlog.Fatalf("Failed to parse flags: %v", err)
	}
	if *flags.Version {
		fmt.Printf("%s %s\n", config.AppName, config.AppVersion)
		return
	}

	cfg, err := config.LoadConfig(*flags.ConfigFilePath, flags)
	if err != nil {
		// Defaults and flags still apply; report once the logger is up.
		stlog.Printf("Warning: %v", err)
	}
	if len(args) > 0 && cfg.Session.Document == "" {
		cfg.Session.Document = args[0]
	}

	// --- Logger Initialization ---
	// The terminal belongs to tcell, so the client always logs to a file.
	logPath := cfg.Logger.LogFilePath
	if logPath == "" || logPath == "-" {
		logPath = config.DefaultLogFileName
		if dir := config.DefaultDir(); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err == nil {
				logPath = filepath.Join(dir, config.DefaultLogFileName)
			}
		}
	}
	logOut, closeLog, err := logger.OpenOutput(logPath)
	if err != nil {
		stlog.Fatalf("%v", err)
	}
	defer closeLog()
	logger.SetDebugFilter(*flags.DebugLog)
	logger.Init(cfg.Logger, logOut)
	logger.Infof("Starting %s %s...", config.AppName, config.AppVersion)

	if err := run(cfg); err != nil {
		logger.Errorf("Application exited with error: %v", err)
		fmt.Fprintf(os.Stderr, "%s: %v\n", config.AppName, err)
		closeLog()
		os.Exit(1)
	}
	logger.Infof("%s finished.", config.AppName)
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverURL := cfg.Session.ServerURL
	if cfg.Session.Discover {
		fmt.Fprintln(os.Stderr, "Looking for a relay on the local network...")
		svc, err := discovery.First(ctx, discoveryTimeout)
		if err != nil {
			return fmt.Errorf("discover relay: %w", err)
		}
		serverURL = svc.URL()
		logger.Infof("Discovered relay %s at %s", svc.Instance, serverURL)
	}

	api, err := docapi.New(serverURL, nil)
	if err != nil {
		return err
	}
	api.SetUser(cfg.Session.User)

	docID := cfg.Session.Document
	if docID == "" {
		createCtx, cancel := context.WithTimeout(ctx, session.DefaultRequestTimeout)
		docID, err = api.Create(createCtx, "")
		cancel()
		if err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		logger.Infof("Created document %s", docID)
	}

	var draftStore *drafts.Store
	if path := cfg.Editor.DraftsPath; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			logger.Warnf("Drafts disabled: %v", err)
		} else if draftStore, err = drafts.Open(path); err != nil {
			logger.Warnf("Drafts disabled: %v", err)
			draftStore = nil
		} else {
			defer draftStore.Close()
		}
	}

	l := loop.New(0)
	events := event.NewManager()

	wsURL, err := channel.WebsocketURL(serverURL, docID, cfg.Session.User)
	if err != nil {
		return err
	}
	var sess *session.Session
	client := channel.NewClient(channel.Config{
		URL:            wsURL,
		QueueSize:      cfg.Channel.QueueSize,
		InitialBackoff: cfg.Channel.InitialBackoff.Duration,
		MaxBackoff:     cfg.Channel.MaxBackoff.Duration,
	}, func(m channel.Message) {
		// Runs on the channel reader; the session only runs on the loop.
		if err := l.Post(func() { sess.HandleMessage(m) }); err != nil {
			logger.DebugTagf("channel", "message dropped: %v", err)
		}
	})

	deps := session.Deps{
		Loop:    l,
		Clock:   loop.NewClock(l),
		API:     api,
		Channel: client,
		Events:  events,
	}
	if draftStore != nil {
		deps.Drafts = draftStore
	}
	sess, err = session.New(session.Config{
		DocID:     docID,
		User:      cfg.Session.User,
		Server:    serverURL,
		ExportDir: cfg.Session.ExportDir,
		Autosave: autosave.Config{
			Interval: cfg.Autosave.Interval.Duration,
			Debounce: cfg.Autosave.Debounce.Duration,
		},
		AutosaveEnabled: cfg.Autosave.Enabled,
		TypingTimeout:   cfg.Typing.Timeout.Duration,
		NoClipboard:     !cfg.Editor.SystemClipboard,
	}, deps)
	if err != nil {
		return err
	}

	themesDir := ""
	if dir := config.DefaultDir(); dir != "" {
		themesDir = filepath.Join(dir, config.ThemesDirName)
	}

	tandemApp, err := app.NewApp(app.Config{
		Session:         sess,
		Loop:            l,
		Channel:         client,
		Themes:          theme.NewManager(themesDir),
		StatusBarHeight: cfg.Editor.StatusBarHeight,
		MessageTimeout:  config.MessageTimeout,
	})
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	return ignoreCanceled(tandemApp.Run(ctx))
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
