package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobmcallan/fundhub/internal/app"
	"github.com/bobmcallan/fundhub/internal/common"
	"github.com/bobmcallan/fundhub/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to fundhub.toml (defaults to FUNDHUB_CONFIG or the binary directory)")
	flag.Parse()

	a, err := app.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	common.PrintBanner(a.Config, a.Logger)

	// Start the worker pool and recovery loop
	a.Start()

	srv := server.NewServer(a)
	shutdownChan := make(chan struct{})
	srv.SetShutdownChannel(shutdownChan)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	a.Logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", a.Config.Server.Host, a.Config.Server.Port)).
		Msg("Server ready")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		a.Logger.Info().Msg("Shutdown signal received")
	case <-shutdownChan:
		a.Logger.Info().Msg("Shutdown requested")
	}

	// Graceful shutdown: stop accepting requests, then drain workers
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	a.Shutdown()
	common.PrintShutdownBanner(a.Logger)
}
