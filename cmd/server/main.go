// Package main is the entry point for the drink tracker API server.
//
// main only reads configuration, builds the logger and hands both to the
// server package; everything else lives under internal/.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/drink-tracker/internal/config"
	"github.com/sakif/drink-tracker/internal/server"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file read before the environment")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		// the configured level is unknown at this point
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))

	// Migrations and seeding run inside New; bound them so a wedged database
	// fails start-up instead of hanging it.
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	srv, err := server.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
