package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/link-tracker/internal/config"
	"github.com/mmeshcher/link-tracker/internal/handler"
	"github.com/mmeshcher/link-tracker/internal/logger"
	"github.com/mmeshcher/link-tracker/internal/notifier"
	"github.com/mmeshcher/link-tracker/internal/repository"
	"github.com/mmeshcher/link-tracker/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("Service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	sugar := zl.Sugar()

	sugar.Infow("Configuration loaded",
		"server_address", cfg.ServerAddress,
		"base_url", cfg.BaseURL,
		"notify_timeout", cfg.NotifyTimeout,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := repository.Open(ctx, cfg.DatabaseDSN, zl)
	if err != nil {
		return err
	}
	defer repo.Close()

	tenants := cfg.Tenants()
	for linkType := range tenants {
		sugar.Infow("Tenant configured", "type", string(linkType))
	}

	n := notifier.New(tenants, notifier.Options{
		Timeout:      cfg.NotifyTimeout,
		MaxFailures:  cfg.NotifyBreakerFailures,
		ResetTimeout: cfg.NotifyBreakerReset,
	}, zl)

	shortenerService := service.NewShortenerService(repo, n, tenants, cfg.BaseURL, zl)
	h := handler.NewHandler(shortenerService, zl, cfg.SecureCookie)

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		sugar.Infow("Server starting", "address", cfg.ServerAddress)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	sugar.Infow("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
