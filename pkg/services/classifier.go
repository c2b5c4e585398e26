package services

import (
	"context"
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-intake/pkg/config"
	"github.com/ekaya-inc/ekaya-intake/pkg/models"
	"github.com/ekaya-inc/ekaya-intake/pkg/profiles"
	"github.com/ekaya-inc/ekaya-intake/pkg/textmatch"
)

// Header scoring weights used by the classifier.
const (
	classifyExactMatch      = 5.0
	classifyRequiredPattern = 3.0
	classifyOptionalPattern = 1.5
	classifyContainment     = 1.0
	classifySimilarityScale = 2.0
	classifySimilarityFloor = 0.7
)

// EntityClassifier infers which business role a table plays.
type EntityClassifier interface {
	// Classify scores the table against every profile. It never fails: a
	// table that matches nothing well comes back as unknown.
	Classify(ctx context.Context, table *models.Table) models.ClassificationResult
}

type entityClassifier struct {
	registry *profiles.Registry
	cfg      config.EngineConfig
	logger   *zap.Logger
}

// NewEntityClassifier creates a classifier over the given profiles.
func NewEntityClassifier(registry *profiles.Registry, cfg config.EngineConfig, logger *zap.Logger) EntityClassifier {
	return &entityClassifier{
		registry: registry,
		cfg:      cfg,
		logger:   logger.Named("entity-classifier"),
	}
}

var _ EntityClassifier = (*entityClassifier)(nil)

func (c *entityClassifier) Classify(ctx context.Context, table *models.Table) models.ClassificationResult {
	result := models.ClassificationResult{
		EntityType: models.EntityUnknown,
		Scores:     make(map[models.EntityType]float64),
	}
	if table == nil || (len(table.Headers) == 0 && len(table.Rows) == 0) {
		return result
	}

	var best *models.EntityProfile
	bestScore := 0.0
	for _, p := range c.registry.Profiles() {
		score := c.scoreProfile(p, table)
		result.Scores[p.Type] = score
		// Strictly greater, so earlier profiles win ties.
		if best == nil || score > bestScore {
			best = p
			bestScore = score
		}
	}
	if best == nil {
		return result
	}

	result.Confidence = math.Min(bestScore/3, 1.0)
	if result.Confidence > c.cfg.ClassificationCutoff {
		result.EntityType = best.Type
	}

	c.logger.Debug("Classified table",
		zap.String("table", table.Name),
		zap.String("entity_type", string(result.EntityType)),
		zap.Float64("confidence", result.Confidence),
		zap.String("best_match", string(best.Type)))

	return result
}

// scoreProfile returns the profile's raw score divided by its field count.
// Every increment is non-negative, so adding a matching header can only
// raise the score.
func (c *entityClassifier) scoreProfile(p *models.EntityProfile, table *models.Table) float64 {
	score := 0.0
	fields := p.AllFields()

	for _, header := range table.Headers {
		normalizedHeader := textmatch.Normalize(strings.TrimSpace(header))

		for _, field := range fields {
			if anyPatternMatches(p.Patterns[field], header) {
				if p.IsRequired(field) {
					score += classifyRequiredPattern
				} else {
					score += classifyOptionalPattern
				}
			}

			normalizedField := textmatch.Normalize(field)
			if normalizedHeader == normalizedField {
				score += classifyExactMatch
			}

			if len(normalizedHeader) > 2 && len(normalizedField) > 2 &&
				(strings.Contains(normalizedHeader, normalizedField) || strings.Contains(normalizedField, normalizedHeader)) {
				score += classifyContainment
			}

			if sim := textmatch.Similarity(normalizedHeader, normalizedField); sim > classifySimilarityFloor {
				score += sim * classifySimilarityScale
			}
		}
	}

	score += c.sampleScore(p, table)

	return score / float64(p.FieldCount())
}

// sampleScore scans the leading rows for the profile's content-shape
// signals. A signal counts at most once per row.
func (c *entityClassifier) sampleScore(p *models.EntityProfile, table *models.Table) float64 {
	if c.cfg.SampleRows <= 0 {
		return 0
	}

	score := 0.0
	for _, row := range table.Sample(c.cfg.SampleRows) {
		for _, signal := range p.SampleSignals {
			for _, header := range table.Headers {
				if signal.Matches(row[header]) {
					score += signal.Weight
					break
				}
			}
		}
	}
	return score
}

func anyPatternMatches(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
