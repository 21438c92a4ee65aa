// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func serviceFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "service",
		Aliases: []string{"s"},
		Usage:   "Streaming service to use (spotify or tidal)",
	}
}

// watchCommand runs the liked-songs poll loop
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Poll liked songs and queue top tracks from unfamiliar artists",
		Flags: []cli.Flag{
			configFlag(),
			serviceFlag(),
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single poll cycle and exit",
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"n"},
				Usage:   "Evaluate and log without queueing anything",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Skip the local cache and rescan the liked library",
			},
			&cli.IntFlag{
				Name:  "interval",
				Usage: "Seconds between poll cycles (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Action: r.Watch,
	}
}

// statusCommand reports configuration, authentication, and cache state
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show configuration, authentication, and cache state",
		Flags: []cli.Flag{
			configFlag(),
			serviceFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Status,
	}
}

// rulesCommand lists the active rule chain
func rulesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "rules",
		Usage: "List the rules newly liked tracks are evaluated against",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Rules,
	}
}

// authCommand handles service authentication
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a streaming service",
		Commands: []*cli.Command{
			{
				Name:   "spotify",
				Usage:  "Authenticate with Spotify using OAuth2",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthSpotify,
			},
			{
				Name:   "tidal",
				Usage:  "Authenticate with Tidal using the device flow",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthTidal,
			},
			{
				Name:   "status",
				Usage:  "Check stored credentials against the service",
				Flags:  []cli.Flag{configFlag(), serviceFlag()},
				Action: r.AuthStatus,
			},
		},
	}
}

// setupCommand initializes config and database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and cache database",
		Flags: []cli.Flag{configFlag()},
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Create a config file from the template",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the cache database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
		},
		Action: r.Setup,
	}
}

// cacheCommand inspects and clears the known-artist cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the known-artist and seen-track cache",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show cached artist and track counts",
				Flags:  []cli.Flag{configFlag(), serviceFlag()},
				Action: r.CacheShow,
			},
			{
				Name:   "clear",
				Usage:  "Delete cached rows for the configured service and user",
				Flags:  []cli.Flag{configFlag(), serviceFlag()},
				Action: r.CacheClear,
			},
		},
	}
}
