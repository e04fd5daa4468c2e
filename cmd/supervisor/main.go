package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"

	"github.com/Naman6019/News-Agent/internal/config"
	"github.com/Naman6019/News-Agent/internal/logging"
	"github.com/Naman6019/News-Agent/internal/ollama"
	"github.com/Naman6019/News-Agent/internal/supervise"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel)

	// Only one supervisor instance per host
	lock := flock.New(cfg.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("Failed to acquire lock %s: %v", cfg.LockFile, err)
	}
	if !locked {
		log.Fatalf("Another supervisor instance is already running (lock %s)", cfg.LockFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := ollama.NewClient(cfg, logging.For(logger, "ollama"))
	supervisor := supervise.New(cfg, client, logging.For(logger, "supervisor"))

	if err := supervisor.Boot(ctx); err != nil {
		logger.Error("supervisor boot failed", "error", err)
		releaseLock(lock, logger)
		os.Exit(supervise.ExitNotReady)
	}

	code := supervisor.Monitor(ctx)
	releaseLock(lock, logger)
	os.Exit(code)
}

// releaseLock is called on every exit path because os.Exit skips deferred
// calls.
func releaseLock(lock *flock.Flock, logger *slog.Logger) {
	if err := lock.Unlock(); err != nil {
		logger.Warn("releasing supervisor lock failed", "error", err)
	}
}
