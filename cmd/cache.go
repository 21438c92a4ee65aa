package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/coaster/internal/shared"
	"github.com/desertthunder/coaster/internal/watcher"
	"github.com/urfave/cli/v3"
)

// openStore resolves the authenticated user and returns a cache store
// scoped to them. The caller owns closing the returned database.
func (r *Runner) openStore(ctx context.Context, cmd *cli.Command) (*watcher.Store, func(), error) {
	config := r.reloadConfig(cmd)
	if name := cmd.String("service"); name != "" {
		config.Service = name
	}

	svc, err := r.resolveService(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	if err := r.authenticateService(ctx, svc, config); err != nil {
		return nil, nil, err
	}

	user, err := svc.CurrentUser(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}

	db, err := r.openCacheDatabase(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	return watcher.NewStore(db, svc.Name(), user.ID), func() { db.Close() }, nil
}

// CacheShow prints cached artist and track counts for the current user.
func (r *Runner) CacheShow(ctx context.Context, cmd *cli.Command) error {
	store, closeDB, err := r.openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	artists, tracks, err := store.Counts()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	r.writePlain("Known artists: %d\n", artists)
	r.writePlain("Seen tracks:   %d\n", tracks)
	return nil
}

// CacheClear deletes cached rows for the current service and user.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	store, closeDB, err := r.openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	r.logger.Info("cache cleared")
	r.writePlain("✓ Cache cleared; the next watch run will rescan the library\n")
	return nil
}
