package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/coaster/internal/services"
	"github.com/desertthunder/coaster/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for
// each command action.
type Runner struct {
	config     *shared.Config
	service    services.Service
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Service    services.Service
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		service:    opts.Service,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		watchCommand, statusCommand, rulesCommand, authCommand, setupCommand, cacheCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// resolveService returns the configured streaming service, constructing it
// lazily when main could not build one from credentials.
func (r *Runner) resolveService(cmd *cli.Command) (services.Service, error) {
	if name := cmd.String("service"); name != "" && (r.service == nil || r.service.Name() != name) {
		svc, err := services.NewService(name, r.config)
		if err != nil {
			return nil, err
		}
		r.service = svc
		return svc, nil
	}

	if r.service != nil {
		return r.service, nil
	}

	svc, err := services.NewService(r.config.Service, r.config)
	if err != nil {
		return nil, err
	}
	r.service = svc
	return svc, nil
}

// reloadConfig re-reads the config file named by the command's --config
// flag, falling back to the runner's config when the file is absent.
func (r *Runner) reloadConfig(cmd *cli.Command) *shared.Config {
	configPath := cmd.String("config")
	if configPath == "" {
		return r.config
	}
	if _, err := os.Stat(configPath); err != nil {
		return r.config
	}
	config, err := shared.LoadConfig(configPath)
	if err != nil {
		r.logger.Warn("failed to load config, keeping current", "error", err)
		return r.config
	}
	r.config = config
	return config
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
