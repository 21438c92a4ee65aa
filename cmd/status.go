package main

import (
	"context"
	"os"

	"github.com/desertthunder/coaster/internal/rules"
	"github.com/desertthunder/coaster/internal/watcher"
	"github.com/urfave/cli/v3"
)

// statusReport is the JSON shape of the status command output.
type statusReport struct {
	Service       string   `json:"service"`
	Authenticated bool     `json:"authenticated"`
	User          string   `json:"user,omitempty"`
	ConfigFile    string   `json:"config_file"`
	CacheEnabled  bool     `json:"cache_enabled"`
	CachedArtists int      `json:"cached_artists"`
	CachedTracks  int      `json:"cached_tracks"`
	PollInterval  string   `json:"poll_interval"`
	Rules         []string `json:"rules"`
}

// Status reports configuration, authentication, and cache state.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	config := r.reloadConfig(cmd)
	if name := cmd.String("service"); name != "" {
		config.Service = name
	}

	report := statusReport{
		Service:      config.Service,
		ConfigFile:   cmd.String("config"),
		CacheEnabled: config.Scraping.UseCache,
		PollInterval: config.Scraping.PollInterval().String(),
		Rules:        rules.NewEngine(config.Scraping).Names(),
	}
	if _, err := os.Stat(report.ConfigFile); err != nil {
		report.ConfigFile = ""
	}

	if svc, err := r.resolveService(cmd); err == nil {
		if err := r.authenticateService(ctx, svc, config); err == nil {
			if user, err := svc.CurrentUser(ctx); err == nil {
				report.Authenticated = true
				report.User = user.DisplayName

				if config.Scraping.UseCache {
					if db, err := r.openCacheDatabase(config); err == nil {
						store := watcher.NewStore(db, svc.Name(), user.ID)
						report.CachedArtists, report.CachedTracks, _ = store.Counts()
						db.Close()
					}
				}
			}
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, cmd.Bool("pretty"))
	}

	r.writePlainHeader("coaster status")
	r.writePlain("Service:       %s\n", report.Service)
	if report.Authenticated {
		r.writePlain("Auth:          ✓ authenticated as %s\n", report.User)
	} else {
		r.writePlain("Auth:          ✗ not authenticated\n")
	}
	if report.ConfigFile != "" {
		r.writePlain("Config:        %s\n", report.ConfigFile)
	} else {
		r.writePlain("Config:        (defaults)\n")
	}
	r.writePlain("Poll interval: %s\n", report.PollInterval)
	if report.CacheEnabled {
		r.writePlain("Cache:         %d artists, %d tracks\n", report.CachedArtists, report.CachedTracks)
	} else {
		r.writePlain("Cache:         disabled\n")
	}
	r.writePlain("Rules:\n")
	for i, name := range report.Rules {
		r.writePlain("  %d. %s\n", i+1, name)
	}

	return nil
}

// ruleReport is the JSON shape of one rule in the rules command output.
type ruleReport struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Rules lists the active rule chain in evaluation order.
func (r *Runner) Rules(ctx context.Context, cmd *cli.Command) error {
	config := r.reloadConfig(cmd)
	engine := rules.NewEngine(config.Scraping)

	reports := []ruleReport{}
	for _, rule := range engine.Rules() {
		reports = append(reports, ruleReport{Name: rule.Name(), Description: rule.Describe()})
	}

	if cmd.Bool("json") {
		return r.writeJSON(reports, cmd.Bool("pretty"))
	}

	r.writePlain("Evaluation order (first failure wins):\n\n")
	for i, report := range reports {
		r.writePlain("%d. %s\n", i+1, report.Name)
		r.writePlain("   %s\n", report.Description)
	}

	return nil
}
