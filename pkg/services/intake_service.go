package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-intake/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-intake/pkg/audit"
	"github.com/ekaya-inc/ekaya-intake/pkg/config"
	"github.com/ekaya-inc/ekaya-intake/pkg/models"
	"github.com/ekaya-inc/ekaya-intake/pkg/profiles"
	"github.com/ekaya-inc/ekaya-intake/pkg/workerpool"
)

// RunOptions adjusts a single intake run.
type RunOptions struct {
	// Overrides forces the entity type of tables by name, bypassing the
	// classifier. Every key must name an input table.
	Overrides map[string]models.EntityType

	// Progress, when set, is called as tables finish the per-table stages.
	Progress func(completed, total int, message string)
}

// IntakeService runs the full pipeline over a set of uploaded tables.
type IntakeService interface {
	// Run classifies, maps, canonicalizes and validates every table, then
	// validates across tables. Tables in the report keep input order. Data
	// problems are reported as issues; an error is returned only for
	// unusable input or a cancelled ctx.
	Run(ctx context.Context, tables []*models.Table, opts RunOptions) (*models.Report, error)
}

type intakeService struct {
	classifier EntityClassifier
	mapper     HeaderMapper
	validator  FieldValidator
	crossFile  CrossFileValidator
	workerPool *workerpool.WorkerPool
	logger     *zap.Logger
}

// NewIntakeService creates an intake service from its stages.
func NewIntakeService(
	classifier EntityClassifier,
	mapper HeaderMapper,
	validator FieldValidator,
	crossFile CrossFileValidator,
	workerPool *workerpool.WorkerPool,
	logger *zap.Logger,
) IntakeService {
	return &intakeService{
		classifier: classifier,
		mapper:     mapper,
		validator:  validator,
		crossFile:  crossFile,
		workerPool: workerPool,
		logger:     logger.Named("intake"),
	}
}

// NewDefaultIntakeService wires every stage from a profile registry and
// engine thresholds.
func NewDefaultIntakeService(registry *profiles.Registry, cfg config.EngineConfig, logger *zap.Logger) IntakeService {
	return NewIntakeService(
		NewEntityClassifier(registry, cfg, logger),
		NewHeaderMapper(registry, cfg, logger),
		NewFieldValidator(cfg, logger),
		NewCrossFileValidator(registry, logger),
		workerpool.New(workerpool.Config{MaxConcurrent: cfg.MaxConcurrentTables}, logger),
		logger,
	)
}

var _ IntakeService = (*intakeService)(nil)

// tableOutcome is what the per-table stages produce for one input table.
type tableOutcome struct {
	report      models.TableReport
	transformed *models.Table
}

func (s *intakeService) Run(ctx context.Context, tables []*models.Table, opts RunOptions) (*models.Report, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables to process: %w", apperrors.ErrEmptyInput)
	}
	for i, t := range tables {
		if t == nil {
			return nil, fmt.Errorf("table %d is nil: %w", i, apperrors.ErrEmptyInput)
		}
	}
	if err := validateOverrides(tables, opts.Overrides); err != nil {
		return nil, err
	}

	runID := uuid.New()
	ctx = audit.WithRunID(ctx, runID)
	logger := s.logger.With(zap.String("run_id", runID.String()))
	logger.Info("Starting intake run", zap.Int("tables", len(tables)))

	workItems := make([]workerpool.WorkItem[*tableOutcome], 0, len(tables))
	for _, t := range tables {
		t := t
		workItems = append(workItems, workerpool.WorkItem[*tableOutcome]{
			ID: t.Name,
			Execute: func(ctx context.Context) (*tableOutcome, error) {
				return s.processTable(ctx, t, opts.Overrides)
			},
		})
	}

	results := workerpool.Process(ctx, s.workerPool, workItems, func(completed, total int) {
		if opts.Progress != nil {
			opts.Progress(completed, total, fmt.Sprintf("Validated table %d/%d", completed, total))
		}
	})

	if err := ctx.Err(); err != nil {
		logger.Info("Intake run cancelled", zap.Error(err))
		return nil, err
	}

	report := &models.Report{
		RunID:  runID,
		Tables: make([]models.TableReport, 0, len(results)),
	}
	transformed := make([]*models.Table, 0, len(results))
	perTable := make([]models.ValidationResult, 0, len(results))

	for _, r := range results {
		if r.Err != nil {
			logger.Error("Table processing failed",
				zap.String("table", r.ID),
				zap.Error(r.Err))
			return nil, fmt.Errorf("process table %q: %w", r.ID, r.Err)
		}
		report.Tables = append(report.Tables, r.Result.report)
		transformed = append(transformed, r.Result.transformed)
		perTable = append(perTable, r.Result.report.Result)
	}

	crossFile, err := s.crossFile.ValidateCrossFile(ctx, transformed)
	if err != nil {
		logger.Info("Intake run cancelled during cross-file validation", zap.Error(err))
		return nil, err
	}
	report.CrossFile = crossFile

	report.Combined = Aggregate(append(perTable, crossFile)...)
	report.FixSuggestions = SuggestFixes(transformed, report.Combined)

	logger.Info("Intake run complete",
		zap.Int("tables", len(report.Tables)),
		zap.Int("errors", report.Combined.Summary.ErrorCount),
		zap.Int("warnings", report.Combined.Summary.WarningCount),
		zap.Int("info", report.Combined.Summary.InfoCount),
		zap.Int("fix_suggestions", len(report.FixSuggestions)))

	return report, nil
}

// processTable runs classify, map, suggest, transform and validate for one
// table.
func (s *intakeService) processTable(ctx context.Context, table *models.Table, overrides map[string]models.EntityType) (*tableOutcome, error) {
	classification := s.classifier.Classify(ctx, table)

	overridden := false
	if t, ok := overrides[table.Name]; ok {
		classification.EntityType = t
		classification.Confidence = 1.0
		overridden = true
	}

	mapping := s.mapper.MapHeaders(table.Headers, classification.EntityType)
	suggestions := s.mapper.Suggest(table, mapping, classification.EntityType)
	if classification.EntityType == models.EntityUnknown {
		suggestions = append(suggestions, headerCorrectionNotes(table.Headers, s.mapper.SuggestHeaderCorrections(table.Headers))...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	canonical, err := TransformTable(table, mapping)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}

	result := s.validator.ValidateTable(ctx, canonical)

	return &tableOutcome{
		report: models.TableReport{
			Name:           table.Name,
			Classification: classification,
			Overridden:     overridden,
			Mapping:        mapping,
			Suggestions:    suggestions,
			Headers:        canonical.Headers,
			RowCount:       canonical.RowCount(),
			Result:         result,
		},
		transformed: canonical,
	}, nil
}

// headerCorrectionNotes renders header corrections in header order.
func headerCorrectionNotes(headers []string, corrections map[string][]string) []string {
	var notes []string
	for _, h := range headers {
		if fields, ok := corrections[h]; ok {
			notes = append(notes, fmt.Sprintf("Header '%s' may be: %s", h, strings.Join(fields, ", ")))
		}
	}
	return notes
}

func validateOverrides(tables []*models.Table, overrides map[string]models.EntityType) error {
	names := make(map[string]bool, len(tables))
	for _, t := range tables {
		names[t.Name] = true
	}
	for name, t := range overrides {
		if !names[name] {
			return fmt.Errorf("override for unknown table %q: %w", name, apperrors.ErrInvalidOverride)
		}
		if !models.IsValidEntityType(t) {
			return fmt.Errorf("override %q for table %q: %w", t, name, apperrors.ErrInvalidOverride)
		}
	}
	return nil
}
