package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-intake/pkg/models"
	"github.com/ekaya-inc/ekaya-intake/pkg/services"
)

func validateCmd(opts *globalOptions, version string) *cobra.Command {
	var overrides []string

	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate files individually and against each other",
		Long: "Validate classifies every file, canonicalizes its headers, validates its rows and then\n" +
			"checks references, skills, groups, capacity and phases across files. The exit status\n" +
			"is non-zero when any error-severity issue is found.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseOverrides(overrides)
			if err != nil {
				return err
			}

			env, err := opts.load(version)
			if err != nil {
				return err
			}
			defer func() { _ = env.logger.Sync() }()

			tables, err := readTables(args)
			if err != nil {
				return err
			}

			service := services.NewDefaultIntakeService(env.registry, env.cfg.Engine, env.logger)
			report, err := service.Run(cmd.Context(), tables, services.RunOptions{
				Overrides: parsed,
				Progress: func(completed, total int, message string) {
					env.logger.Debug("Intake progress",
						zap.Int("completed", completed),
						zap.Int("total", total),
						zap.String("message", message))
				},
			})
			if err != nil {
				return err
			}

			if opts.format == FormatText {
				err = renderReport(cmd.OutOrStdout(), report)
			} else {
				err = writeJSON(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}

			if n := report.Combined.Summary.ErrorCount; n > 0 {
				return fmt.Errorf("%d error(s): %w", n, ErrValidationFailed)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&overrides, "override", nil, "Force the entity type of a file, as name=type (repeatable)")
	return cmd
}

// parseOverrides turns name=type pairs into a table name to entity type map.
// Names are file base names, matching the table names the ingest layer sets.
func parseOverrides(pairs []string) (map[string]models.EntityType, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]models.EntityType, len(pairs))
	for _, p := range pairs {
		name, typ, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("--override %q: expected name=type", p)
		}
		out[name] = models.EntityType(strings.ToLower(strings.TrimSpace(typ)))
	}
	return out, nil
}
