// cmd/tandemd/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stlog "log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/bethropolis/tandem/internal/config"
	"github.com/bethropolis/tandem/internal/discovery"
	"github.com/bethropolis/tandem/internal/logger"
	"github.com/bethropolis/tandem/internal/relay"
	"github.com/bethropolis/tandem/internal/relay/broker"
	"github.com/bethropolis/tandem/internal/relay/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	flags := config.NewFlags(flag.CommandLine)
	flags.DefineFlags()
	flags.DefineRelayFlags()
	if _, err := flags.Parse(os.Args[1:]); err != nil {
		stlog.Fatalf("Failed to parse flags: %v", err)
	}
	if *flags.Version {
		fmt.Printf("%sd %s\n", config.AppName, config.AppVersion)
		return
	}

	cfg, cfgErr := config.LoadConfig(*flags.ConfigFilePath, flags)

	logOut, closeLog, err := logger.OpenOutput(cfg.Logger.LogFilePath)
	if err != nil {
		stlog.Fatalf("%v", err)
	}
	defer closeLog()
	logger.SetDebugFilter(*flags.DebugLog)
	logger.Init(cfg.Logger, logOut)
	if cfgErr != nil {
		logger.Warnf("Config: %v", cfgErr)
	}

	if err := run(cfg); err != nil {
		logger.Errorf("Relay exited with error: %v", err)
		closeLog()
		os.Exit(1)
	}
	logger.Infof("Relay stopped.")
}

func openStore(ctx context.Context, rc config.RelayConfig) (store.Store, error) {
	if rc.PostgresDSN != "" {
		logger.Infof("Using Postgres document store")
		return store.OpenPostgres(ctx, rc.PostgresDSN)
	}
	logger.Infof("Using SQLite document store at %s", rc.SQLitePath)
	return store.OpenSQLite(rc.SQLitePath)
}

func openBroker(ctx context.Context, rc config.RelayConfig) (broker.Broker, error) {
	if rc.RedisAddr != "" {
		logger.Infof("Fanning out through Redis at %s", rc.RedisAddr)
		return broker.NewRedis(ctx, rc.RedisAddr)
	}
	return broker.NewLocal(), nil
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Relay)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	if err := st.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	b, err := openBroker(ctx, cfg.Relay)
	if err != nil {
		return fmt.Errorf("open broker: %w", err)
	}
	defer b.Close()

	srv := relay.NewServer(st, b)
	defer srv.Close()

	ln, err := net.Listen("tcp", cfg.Relay.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Relay.Listen, err)
	}
	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Relay.Advertise {
		_, portStr, _ := net.SplitHostPort(ln.Addr().String())
		port, _ := strconv.Atoi(portStr)
		adv, err := discovery.Advertise(cfg.Relay.Name, port)
		if err != nil {
			logger.Warnf("mDNS advertisement failed: %v", err)
		} else {
			defer adv.Shutdown()
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Relay listening on %s", ln.Addr())
		serveErr <- httpServer.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Infof("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown; srv.Close ends them.
	srv.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
