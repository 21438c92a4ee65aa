package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/coaster/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file and initializes the cache database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if err := r.SetupConfig(ctx, cmd); err != nil {
		return err
	}
	return r.SetupDatabase(ctx, cmd)
}

// SetupConfig writes a config file from the embedded template, leaving an
// existing file untouched.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("config file already exists", "path", configPath)
		return nil
	}

	if err := shared.CreateConfigFile(configPath); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	r.logger.Info("config file created", "path", configPath)
	r.writePlain("✓ Config created at %s\n", configPath)
	r.writePlain("  Fill in your service credentials, then run 'coaster auth spotify'\n")
	return nil
}

// SetupDatabase initializes the cache database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.reloadConfig(cmd)

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}
