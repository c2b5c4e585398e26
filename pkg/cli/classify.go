package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-intake/pkg/models"
	"github.com/ekaya-inc/ekaya-intake/pkg/services"
)

// classification is the classify output for one file.
type classification struct {
	Name           string                      `json:"name"`
	Classification models.ClassificationResult `json:"classification"`
	Mapping        models.HeaderMapping        `json:"mapping"`
	Suggestions    []string                    `json:"suggestions"`
	// Corrections is only filled for unknown tables.
	Corrections map[string][]string `json:"header_corrections,omitempty"`
}

func classifyCmd(opts *globalOptions, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>...",
		Short: "Detect the entity type of each file and map its headers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.load(version)
			if err != nil {
				return err
			}
			defer func() { _ = env.logger.Sync() }()

			tables, err := readTables(args)
			if err != nil {
				return err
			}

			classifier := services.NewEntityClassifier(env.registry, env.cfg.Engine, env.logger)
			mapper := services.NewHeaderMapper(env.registry, env.cfg.Engine, env.logger)

			results := make([]classification, 0, len(tables))
			for _, t := range tables {
				c := classifier.Classify(cmd.Context(), t)
				mapping := mapper.MapHeaders(t.Headers, c.EntityType)
				out := classification{
					Name:           t.Name,
					Classification: c,
					Mapping:        mapping,
					Suggestions:    mapper.Suggest(t, mapping, c.EntityType),
				}
				if c.EntityType == models.EntityUnknown {
					out.Corrections = mapper.SuggestHeaderCorrections(t.Headers)
				}
				env.logger.Debug("Classified file",
					zap.String("table", t.Name),
					zap.String("entity_type", string(c.EntityType)),
					zap.Float64("confidence", c.Confidence))
				results = append(results, out)
			}

			if opts.format == FormatText {
				return renderClassifications(cmd.OutOrStdout(), results)
			}
			return writeJSON(cmd.OutOrStdout(), results)
		},
	}
}
