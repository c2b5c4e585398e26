package services

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-intake/pkg/config"
	"github.com/ekaya-inc/ekaya-intake/pkg/listparse"
	"github.com/ekaya-inc/ekaya-intake/pkg/models"
	"github.com/ekaya-inc/ekaya-intake/pkg/profiles"
	"github.com/ekaya-inc/ekaya-intake/pkg/textmatch"
)

// Header scoring weights used by the mapper.
const (
	mapExactMatch       = 10.0
	mapPattern          = 5.0
	mapRawContainsField = 3.0
	mapFieldContainsRaw = 2.0
	mapSimilarityScale  = 4.0
	mapKeyword          = 1.0

	// suggestionSampleRows bounds the rows Suggest inspects.
	suggestionSampleRows = 5
	// maxInvalidIDExamples bounds the ID examples listed in a suggestion.
	maxInvalidIDExamples = 3
	// maxHeaderCorrections bounds the fields offered per header.
	maxHeaderCorrections = 3
	// correctionSimilarity is the similarity above which a field is offered
	// as a header correction.
	correctionSimilarity = 0.6
)

// HeaderMapper assigns raw headers to the canonical fields of a profile.
type HeaderMapper interface {
	// MapHeaders builds a total mapping over headers. Unknown entity types
	// get the identity mapping.
	MapHeaders(headers []string, entityType models.EntityType) models.HeaderMapping

	// Suggest returns human-readable notes about how well the raw table fits
	// the profile under the given mapping.
	Suggest(table *models.Table, mapping models.HeaderMapping, entityType models.EntityType) []string

	// SuggestHeaderCorrections lists, per header, up to three canonical
	// fields from any profile that the header resembles.
	SuggestHeaderCorrections(headers []string) map[string][]string
}

type headerMapper struct {
	registry *profiles.Registry
	cfg      config.EngineConfig
	logger   *zap.Logger
}

// NewHeaderMapper creates a header mapper over the given profiles.
func NewHeaderMapper(registry *profiles.Registry, cfg config.EngineConfig, logger *zap.Logger) HeaderMapper {
	return &headerMapper{
		registry: registry,
		cfg:      cfg,
		logger:   logger.Named("header-mapper"),
	}
}

var _ HeaderMapper = (*headerMapper)(nil)

// headerCandidate is one cell of the (header x field) scoring matrix.
type headerCandidate struct {
	headerIndex int
	fieldIndex  int
	score       float64
}

func (m *headerMapper) MapHeaders(headers []string, entityType models.EntityType) models.HeaderMapping {
	profile, ok := m.registry.Profile(entityType)
	if entityType == models.EntityUnknown || !ok {
		return models.IdentityMapping(headers, entityType)
	}

	fields := profile.AllFields()
	candidates := make([]headerCandidate, 0, len(headers)*len(fields))
	for hi, header := range headers {
		for fi, field := range fields {
			candidates = append(candidates, headerCandidate{
				headerIndex: hi,
				fieldIndex:  fi,
				score:       mappingScore(header, field, profile),
			})
		}
	}

	// Highest score first; ties go to the earlier header, then to the
	// earlier field in profile order.
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.headerIndex != b.headerIndex {
			return a.headerIndex < b.headerIndex
		}
		return a.fieldIndex < b.fieldIndex
	})

	assignments := models.IdentityMapping(headers, entityType).Assignments
	headerTaken := make([]bool, len(headers))
	fieldTaken := make([]bool, len(fields))

	for _, c := range candidates {
		if c.score <= m.cfg.MappingAcceptance {
			break
		}
		if headerTaken[c.headerIndex] || fieldTaken[c.fieldIndex] {
			continue
		}
		headerTaken[c.headerIndex] = true
		fieldTaken[c.fieldIndex] = true
		assignments[c.headerIndex] = models.HeaderAssignment{
			Raw:       headers[c.headerIndex],
			Canonical: fields[c.fieldIndex],
			Score:     c.score,
			Matched:   true,
		}
	}

	mapping := models.HeaderMapping{EntityType: entityType, Assignments: assignments}

	m.logger.Debug("Mapped headers",
		zap.String("entity_type", string(entityType)),
		zap.Int("headers", len(headers)),
		zap.Int("matched", len(mapping.MatchedFields())))

	return mapping
}

// mappingScore scores one (raw header, canonical field) pair.
func mappingScore(rawHeader, field string, profile *models.EntityProfile) float64 {
	normalizedRaw := textmatch.Normalize(strings.TrimSpace(rawHeader))
	normalizedField := textmatch.Normalize(field)

	score := 0.0
	if normalizedRaw == normalizedField {
		score += mapExactMatch
	}

	for _, re := range profile.Patterns[field] {
		if re.MatchString(rawHeader) {
			score += mapPattern
		}
	}

	if strings.Contains(normalizedRaw, normalizedField) {
		score += mapRawContainsField
	}
	if len(normalizedRaw) > 2 && strings.Contains(normalizedField, normalizedRaw) {
		score += mapFieldContainsRaw
	}

	score += textmatch.Similarity(normalizedRaw, normalizedField) * mapSimilarityScale

	for _, keyword := range textmatch.Keywords(field) {
		if len(keyword) > 2 && strings.Contains(normalizedRaw, keyword) {
			score += mapKeyword
		}
	}

	return score
}

func (m *headerMapper) Suggest(table *models.Table, mapping models.HeaderMapping, entityType models.EntityType) []string {
	profile, ok := m.registry.Profile(entityType)
	if entityType == models.EntityUnknown || !ok {
		return []string{"Could not determine file type. Please verify this is a Client, Worker, or Task file."}
	}

	var suggestions []string

	mapped := make(map[string]bool, len(mapping.Assignments))
	for _, a := range mapping.Assignments {
		mapped[a.Canonical] = true
	}

	var missing []string
	for _, field := range profile.RequiredFields {
		if !mapped[field] {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		suggestions = append(suggestions, "Missing required fields: "+strings.Join(missing, ", "))
	} else {
		suggestions = append(suggestions, fmt.Sprintf("All required fields found for %s data", strings.ToUpper(string(entityType))))
	}

	if table.RowCount() > 0 {
		sample := table.Sample(suggestionSampleRows)
		suggestions = append(suggestions, idPatternSuggestions(profile, mapping, sample)...)
		for _, a := range mapping.Assignments {
			suggestions = append(suggestions, formatSuggestions(a, sample)...)
		}
	}

	standard := 0
	for _, a := range mapping.Assignments {
		if profile.IsCanonical(a.Canonical) {
			standard++
		}
	}
	suggestions = append(suggestions, fmt.Sprintf("Mapped %d columns, %d to standard fields", len(mapping.Assignments), standard))

	return suggestions
}

// idPatternSuggestions checks sampled identifiers against the profile's ID
// pattern.
func idPatternSuggestions(profile *models.EntityProfile, mapping models.HeaderMapping, sample []models.Record) []string {
	if profile.IDField == "" || profile.IDPattern == nil {
		return nil
	}
	raw, ok := mapping.RawFor(profile.IDField)
	if !ok {
		return nil
	}

	var valid int
	var invalid []string
	for _, id := range nonEmptyTexts(sample, raw) {
		if profile.IDPattern.MatchString(id) {
			valid++
		} else {
			invalid = append(invalid, id)
		}
	}

	var out []string
	if valid > 0 {
		out = append(out, fmt.Sprintf("Found %d valid %s values", valid, profile.IDField))
	}
	if len(invalid) > 0 {
		if len(invalid) > maxInvalidIDExamples {
			invalid = invalid[:maxInvalidIDExamples]
		}
		out = append(out, fmt.Sprintf("Some %s values don't match expected pattern: %s", profile.IDField, strings.Join(invalid, ", ")))
	}
	return out
}

// formatSuggestions runs the per-format checks for one mapped column.
func formatSuggestions(a models.HeaderAssignment, sample []models.Record) []string {
	values := nonEmptyTexts(sample, a.Raw)
	field := a.Canonical

	var out []string

	if strings.Contains(field, "Slots") || strings.Contains(field, "Phases") {
		if countValid(values, listparse.IsValidPhase) > 0 {
			out = append(out, field+" format validation passed")
		} else if len(values) > 0 {
			out = append(out, field+" format needs attention. Expected: [1,2,3], 1-3, or 1,2,3")
		}
	}

	if strings.Contains(field, "Skills") {
		validSkills := func(v string) bool {
			ok, _ := listparse.ValidateSkills(v)
			return ok
		}
		if countValid(values, validSkills) > 0 {
			out = append(out, field+" format validation passed")
		} else if len(values) > 0 {
			out = append(out, field+" should be comma-separated or JSON array")
		}
	}

	if strings.Contains(field, "JSON") {
		if countValid(values, listparse.ValidJSONOrText) == len(values) {
			out = append(out, field+" format validation passed")
		} else {
			out = append(out, "Some "+field+" entries have invalid format")
		}
	}

	return out
}

func (m *headerMapper) SuggestHeaderCorrections(headers []string) map[string][]string {
	corrections := make(map[string][]string)

	for _, header := range headers {
		normalized := strings.ToLower(strings.TrimSpace(header))
		var fields []string
		seen := make(map[string]bool)

		for _, profile := range m.registry.Profiles() {
			for _, field := range profile.AllFields() {
				patterns := profile.Patterns[field]
				if len(patterns) == 0 || seen[field] {
					continue
				}
				if anyPatternMatches(patterns, normalized) ||
					textmatch.Similarity(normalized, strings.ToLower(field)) > correctionSimilarity {
					seen[field] = true
					fields = append(fields, field)
				}
			}
		}

		if len(fields) > 0 {
			if len(fields) > maxHeaderCorrections {
				fields = fields[:maxHeaderCorrections]
			}
			corrections[header] = fields
		}
	}

	return corrections
}

// nonEmptyTexts returns the text of every non-empty cell of a column.
func nonEmptyTexts(rows []models.Record, column string) []string {
	var out []string
	for _, row := range rows {
		if c := row[column]; !c.IsEmpty() {
			out = append(out, c.Text())
		}
	}
	return out
}

func countValid(values []string, valid func(string) bool) int {
	n := 0
	for _, v := range values {
		if valid(v) {
			n++
		}
	}
	return n
}
