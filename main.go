package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/raine/photo-lister/config"
	"github.com/raine/photo-lister/internal/api"
	"github.com/raine/photo-lister/internal/app"
	"github.com/raine/photo-lister/internal/maintenance"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

const shutdownTimeout = 30 * time.Second

func fatal(format string, args ...any) {
	log.Error().Msgf(format, args...)
	os.Exit(1)
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	config.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		fatal("invalid configuration: %v", err)
	}

	// JOURNAL_STREAM is set by systemd when running as a service; journald
	// keeps the logs there.
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			fatal("failed to open log file: %v", err)
		}
		defer logFile.Close()

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))

		log.Info().Str("logFile", cfg.LogFile).Msg("logging to file")
	}
	if os.Getenv("DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fatal("failed to start: %v", err)
	}
	defer a.Close()

	housekeeping := maintenance.NewService(a.Store)
	housekeeping.Recover()

	gin.SetMode(gin.ReleaseMode)
	router := api.NewHandler(api.Deps{
		Listings:    a.Store,
		Pipeline:    a.Pipeline,
		Images:      a.Assets,
		Settings:    a.Settings,
		Providers:   a.Registry,
		Usage:       a.Ledger,
		UsageWindow: cfg.UsageWindow,
		Version:     version,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		housekeeping.Run(ctx)
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("version", version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}
