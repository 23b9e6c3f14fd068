// Package main runs the eventchat real-time server
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

	"golang.org/x/sync/errgroup"

	"github.com/eventhub/eventchat/internal/config"
	"github.com/eventhub/eventchat/internal/secrets"
	"github.com/eventhub/eventchat/internal/slogging"
)

func main() {
	configFile, generateConfig, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		os.Exit(1)
	}

	if generateConfig {
		if err := config.GenerateExampleConfig(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := slogging.Initialize(loggerConfig(cfg)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := resolveSecrets(cfg); err != nil {
		slogging.Get().Error("Failed to resolve secrets: %v", err)
		_ = slogging.Get().Close()
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slogging.Get().Error("Server stopped with error: %v", err)
		_ = slogging.Get().Close()
		os.Exit(1)
	}
	_ = slogging.Get().Close()
}

// resolveSecrets fills credentials the config file left empty
func resolveSecrets(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	provider, err := secrets.NewProvider(ctx, cfg.Secrets)
	if err != nil {
		return err
	}
	defer func() { _ = provider.Close() }()

	return secrets.Apply(ctx, provider, cfg)
}

func loggerConfig(cfg *config.Config) slogging.Config {
	return slogging.Config{
		Level:                       cfg.GetLogLevel(),
		IsDev:                       cfg.Logging.IsDev,
		LogDir:                      cfg.Logging.LogDir,
		MaxAgeDays:                  cfg.Logging.MaxAgeDays,
		MaxSizeMB:                   cfg.Logging.MaxSizeMB,
		MaxBackups:                  cfg.Logging.MaxBackups,
		AlsoLogToConsole:            cfg.Logging.AlsoLogToConsole,
		SuppressUnauthenticatedLogs: cfg.Logging.SuppressUnauthenticatedLogs,
	}
}

// run serves until SIGINT or SIGTERM, then drains websocket clients before
// stopping the listener
func run(cfg *config.Config) error {
	logger := slogging.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.ListenAddress(),
		Handler:           app.router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		// websocket connections outlive the HTTP timeouts, so ReadTimeout and
		// WriteTimeout are not set on the server itself
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting eventchat server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := app.hub.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("hub shutdown: %w", err))
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := app.telemetry.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	err = g.Wait()
	if err == nil {
		logger.Info("Server stopped after %s", time.Since(app.started).Round(time.Second))
	}
	return err
}
