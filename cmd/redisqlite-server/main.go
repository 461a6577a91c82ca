// Command redisqlite-server runs the RESP2-compatible TCP server: it loads
// configuration, opens (or creates) the backing SQLite database, starts
// the expiry reaper in the background, and serves Redis clients until an
// interrupt or termination signal asks it to shut down.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/smallnest/redisqlite/config"
	"github.com/smallnest/redisqlite/engine"
	"github.com/smallnest/redisqlite/log"
	"github.com/smallnest/redisqlite/server"
	"github.com/smallnest/redisqlite/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("redisqlite-server: %w", err)
	}

	level := parseLevel(cfg.LogLevel)

	storageLogger := log.NewComponentLogger("storage")
	storageLogger.SetLevel(level)
	engineLogger := log.NewComponentLogger("engine")
	engineLogger.SetLevel(level)
	serverLogger := log.NewComponentLogger("server")
	serverLogger.SetLevel(level)

	store, err := storage.Open(storage.Options{
		Path:   cfg.DBPath,
		Prefix: cfg.TablePrefix,
		Logger: storageLogger,
	})
	if err != nil {
		return fmt.Errorf("redisqlite-server: open storage: %w", err)
	}
	defer store.Close()

	reaper := storage.NewReaper(store, 0)
	go reaper.Run()
	defer reaper.Stop()

	eng := engine.New(store, cfg.Password, engineLogger)
	srv := server.New(eng, serverLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverLogger.Info("listening on %s (db=%s prefix=%s)", cfg.Addr(), cfg.DBPath, cfg.TablePrefix)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx, cfg.Addr()) }()

	select {
	case <-ctx.Done():
		serverLogger.Info("shutting down")
		return srv.Close()
	case err := <-errCh:
		return err
	}
}

func parseLevel(level string) log.LogLevel {
	switch level {
	case "debug":
		return log.LogLevelDebug
	case "warn":
		return log.LogLevelWarn
	case "error":
		return log.LogLevelError
	case "none":
		return log.LogLevelNone
	default:
		return log.LogLevelInfo
	}
}
