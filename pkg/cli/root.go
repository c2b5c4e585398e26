// Package cli is the ekaya-intake command line: it reads client, worker and
// task files from disk and prints what the intake engine makes of them.
package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-intake/pkg/config"
	"github.com/ekaya-inc/ekaya-intake/pkg/ingest"
	"github.com/ekaya-inc/ekaya-intake/pkg/logging"
	"github.com/ekaya-inc/ekaya-intake/pkg/models"
	"github.com/ekaya-inc/ekaya-intake/pkg/profiles"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

// ValidOutputFormats contains the accepted --format values.
var ValidOutputFormats = []string{FormatJSON, FormatText}

// ErrValidationFailed is returned by validate when the run found errors.
var ErrValidationFailed = errors.New("validation found errors")

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configPath   string
	profilesPath string
	format       string
}

// environment is everything a subcommand needs to run the engine.
type environment struct {
	cfg      *config.Config
	registry *profiles.Registry
	logger   *zap.Logger
}

// Execute runs the root command with os.Args.
func Execute(version string) error {
	return NewRoot(version).Execute()
}

// NewRoot builds the command tree.
func NewRoot(version string) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "ekaya-intake",
		Short:         "Classify and validate client, worker and task files",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidOutputFormats, opts.format) {
				return fmt.Errorf("--format must be one of %v, got %q", ValidOutputFormats, opts.format)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file (environment variables only when empty)")
	flags.StringVar(&opts.profilesPath, "profiles", "", "YAML or TOML entity profile file (overrides profiles_path)")
	flags.StringVar(&opts.format, "format", FormatJSON, "Output format: json or text")

	root.AddCommand(
		classifyCmd(opts, version),
		validateCmd(opts, version),
	)
	return root
}

// load reads configuration, builds the logger and loads entity profiles.
func (o *globalOptions) load(version string) (*environment, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath, version)
	} else {
		cfg, err = config.LoadEnv(version)
	}
	if err != nil {
		return nil, err
	}
	if o.profilesPath != "" {
		cfg.ProfilesPath = o.profilesPath
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return nil, err
	}

	registry, err := profiles.Load(cfg.ProfilesPath)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	logger.Debug("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("profiles_path", cfg.ProfilesPath),
		zap.Int("max_concurrent_tables", cfg.Engine.MaxConcurrentTables))

	return &environment{cfg: cfg, registry: registry, logger: logger}, nil
}

// readTables parses every path in order.
func readTables(paths []string) ([]*models.Table, error) {
	tables := make([]*models.Table, 0, len(paths))
	for _, p := range paths {
		t, err := ingest.ReadFile(p)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}
