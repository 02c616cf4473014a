package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rollcall/internal/api"
	"rollcall/internal/app"
	"rollcall/internal/config"
	"rollcall/internal/logger"
	"rollcall/internal/worker"
)

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

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Error("http server failed", zap.Error(err))
		return 1
	}
	return 0
}

func runHTTP(cfg config.App, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	if cfg.SeedEnabled {
		n, err := b.Users.SeedDemo(ctx)
		if err != nil {
			return fmt.Errorf("seed demo users: %w", err)
		}
		log.Info("demo users ready", zap.Int("created", n))
	}

	if b.InProcessQueue() {
		go func() {
			if err := worker.New(b.Queue, b.Attendance, log.Named("worker")).Run(ctx); err != nil {
				log.Error("in-process worker stopped", zap.Error(err))
			}
		}()
	}

	deps := api.Deps{
		Config:     cfg,
		Users:      b.Users,
		Courses:    b.Courses,
		Attendance: b.Attendance,
		Revoker:    b.Revoker,
		Log:        log.Named("http"),
	}
	if b.DB != nil {
		deps.DB = b.DB
	}
	if b.Redis != nil {
		deps.Redis = b.Redis
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.StoreBackend),
			zap.String("cache", cfg.CacheBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}
