package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"rollcall/internal/app"
	"rollcall/internal/config"
	"rollcall/internal/logger"
	"rollcall/internal/worker"
)

// Worker consumes session-closed events and warms the history cache.
func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	if cfg.StoreBackend == "memory" {
		// warming reads the store the API writes to; a private memory store is always empty
		log.Error("worker needs STORE_BACKEND=postgres")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error("build backends failed", zap.Error(err))
		return 1
	}
	defer b.Close()

	if b.InProcessQueue() {
		// an in-memory queue only carries jobs published by the same process
		log.Error("worker needs CACHE_BACKEND=redis")
		return 1
	}

	if err := worker.New(b.Queue, b.Attendance, log.Named("worker")).Run(ctx); err != nil {
		log.Error("queue consume failed", zap.Error(err))
		return 1
	}
	return 0
}
