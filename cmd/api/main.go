// Package main is the entry point for the subscription signup service.
//
// It loads configuration from the environment (failing fast on missing
// values), builds the Stripe client and webhook verifier, mounts the HTTP
// routes, and serves on the configured port. Graceful shutdown is handled
// via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"subsignup/internal/api/handlers"
	"subsignup/internal/config"
	"subsignup/internal/core"
	"subsignup/internal/external"
	"subsignup/internal/webhook"
)

// shutdownGrace is how long in-flight requests get to finish on SIGTERM.
const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("signup service starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
		"static_dir", cfg.Server.StaticDir,
	)

	// Stripe client with a per-call timeout bounding every provider request.
	stripeClient := external.NewStripeClient(
		&http.Client{Timeout: cfg.Server.StripeTimeout},
		external.StripeClientConfig{
			SecretKey: cfg.Billing.StripeSecretKey,
			Logger:    logger,
		},
	)

	verifier := webhook.NewVerifier(cfg.Billing.StripeWebhookSecret)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	signupHandler := handlers.NewSignupHandler(
		stripeClient,
		cfg.Billing.StripePublishableKey,
		cfg.Billing.PlanID,
		srv.Validator,
		logger,
	)
	webhookHandler := handlers.NewStripeWebhookHandler(verifier, logger)

	srv.RouteRegistrars = append(srv.RouteRegistrars,
		func(r chi.Router) { signupHandler.RegisterRoutes(r) },
		func(r chi.Router) { webhookHandler.RegisterRoutes(r) },
	)
	srv.MountRoutes()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// newLogger builds the application-wide structured logger from the
// configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
