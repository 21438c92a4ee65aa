package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/coaster/internal/services"
	"github.com/desertthunder/coaster/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	if config.Debug {
		shared.SetLogLevel(logger, log.DebugLevel)
	}

	var service services.Service
	if svc, err := services.NewService(config.Service, config); err == nil {
		service = svc
	}

	runner := NewRunner(RunnerOpts{
		Config:  config,
		Service: service,
		Logger:  logger,
	})

	app := &cli.Command{
		Name:     "coaster",
		Usage:    "Watch liked songs and queue top tracks from unfamiliar artists",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}
