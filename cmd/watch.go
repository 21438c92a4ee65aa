package main

import (
	"context"
	"database/sql"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/coaster/internal/models"
	"github.com/desertthunder/coaster/internal/rules"
	"github.com/desertthunder/coaster/internal/services"
	"github.com/desertthunder/coaster/internal/shared"
	"github.com/desertthunder/coaster/internal/watcher"
	"github.com/urfave/cli/v3"
)

// Watch runs the liked-songs poll loop until interrupted, or for a single
// cycle with --once.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	config := r.reloadConfig(cmd)

	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	if cmd.Bool("no-cache") {
		config.Scraping.UseCache = false
	}
	if interval := cmd.Int("interval"); interval > 0 {
		config.Scraping.PollIntervalSeconds = int(interval)
	}
	if name := cmd.String("service"); name != "" {
		config.Service = name
	}

	if err := config.Validate(); err != nil {
		return err
	}

	svc, err := r.resolveService(cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}

	if err := r.authenticateService(ctx, svc, config); err != nil {
		return err
	}

	var db *sql.DB
	var opener *watcher.StoreOpener
	if config.Scraping.UseCache {
		if db, err = r.openCacheDatabase(config); err != nil {
			r.logger.Warn("cache unavailable, continuing without it", "error", err)
			config.Scraping.UseCache = false
		} else {
			defer db.Close()
			opener = &watcher.StoreOpener{
				Open: func(service, userID string) *watcher.Store {
					return watcher.NewStore(db, service, userID)
				},
			}
		}
	}

	dryRun := cmd.Bool("dry-run")
	w := watcher.New(watcher.Opts{
		Service: svc,
		Engine:  rules.NewEngine(config.Scraping),
		Config:  config.Scraping,
		Logger:  r.logger,
		Store:   opener,
		DryRun:  dryRun,
		OnQueued: func(trigger models.Track, queued []models.Track) {
			names := make([]string, len(queued))
			for i, track := range queued {
				names[i] = track.Name
			}
			r.writePlain("♪ %s triggered: queued %s\n", trigger.Name, strings.Join(names, ", "))
		},
	})

	if dryRun {
		r.writePlain("Running in dry-run mode: nothing will be queued.\n")
	}

	if cmd.Bool("once") {
		result, err := w.RunOnce(ctx)
		w.Stop()
		if err != nil {
			return err
		}
		r.writePlain("Cycle complete: %d new likes, %d triggered, %d queued\n",
			result.NewTracks, result.Triggered, len(result.Queued))
		return nil
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return w.Start(runCtx)
}

// authenticateService installs stored tokens on the service before any
// API calls are made.
func (r *Runner) authenticateService(ctx context.Context, svc services.Service, config *shared.Config) error {
	var creds map[string]string
	switch strings.ToLower(svc.Name()) {
	case "spotify":
		creds = config.Credentials.Spotify.Map()
	case "tidal":
		creds = config.Credentials.Tidal.Map()
	default:
		return nil
	}

	if creds["access_token"] == "" {
		return fmt.Errorf("%w: no stored token for %s, run 'coaster auth %s' first",
			shared.ErrNotAuthenticated, svc.Name(), strings.ToLower(svc.Name()))
	}

	return svc.Authenticate(ctx, creds)
}

// openCacheDatabase opens the sqlite cache and applies pending migrations.
func (r *Runner) openCacheDatabase(config *shared.Config) (*sql.DB, error) {
	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, err
	}

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
