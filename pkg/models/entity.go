package models

import "slices"

// ============================================================================
// Entity Types
// ============================================================================

// EntityType is the business role a table plays.
type EntityType string

const (
	EntityClient  EntityType = "client"
	EntityWorker  EntityType = "worker"
	EntityTask    EntityType = "task"
	EntityUnknown EntityType = "unknown"
)

// KnownEntityTypes lists the roles that have a profile, in resolution order.
var KnownEntityTypes = []EntityType{EntityClient, EntityWorker, EntityTask}

// ValidEntityTypes contains all valid entity type values.
var ValidEntityTypes = []EntityType{EntityClient, EntityWorker, EntityTask, EntityUnknown}

// IsValidEntityType checks if the given type is valid.
func IsValidEntityType(t EntityType) bool {
	return slices.Contains(ValidEntityTypes, t)
}

// ============================================================================
// Classification
// ============================================================================

// ClassificationResult is the inferred role of one table.
type ClassificationResult struct {
	EntityType EntityType `json:"entity_type"`
	Confidence float64    `json:"confidence"` // 0.0 - 1.0

	// Scores holds the field-count-normalized score of every profile.
	Scores map[EntityType]float64 `json:"scores,omitempty"`
}

// ============================================================================
// Header Mapping
// ============================================================================

// HeaderAssignment records where one raw header ended up.
type HeaderAssignment struct {
	Raw       string  `json:"raw"`
	Canonical string  `json:"canonical"`
	Score     float64 `json:"score"`
	Matched   bool    `json:"matched"` // false means identity fallback
}

// HeaderMapping translates raw headers to canonical field names. It is total
// over the raw headers and never assigns one canonical field twice.
type HeaderMapping struct {
	EntityType  EntityType         `json:"entity_type"`
	Assignments []HeaderAssignment `json:"assignments"`
}

// IdentityMapping maps every header to itself.
func IdentityMapping(headers []string, entityType EntityType) HeaderMapping {
	assignments := make([]HeaderAssignment, len(headers))
	for i, h := range headers {
		assignments[i] = HeaderAssignment{Raw: h, Canonical: h}
	}
	return HeaderMapping{EntityType: entityType, Assignments: assignments}
}

// Canonical returns the canonical name for a raw header.
func (m HeaderMapping) Canonical(raw string) (string, bool) {
	for _, a := range m.Assignments {
		if a.Raw == raw {
			return a.Canonical, true
		}
	}
	return "", false
}

// AsMap returns the mapping as raw -> canonical.
func (m HeaderMapping) AsMap() map[string]string {
	out := make(map[string]string, len(m.Assignments))
	for _, a := range m.Assignments {
		out[a.Raw] = a.Canonical
	}
	return out
}

// MatchedFields returns the canonical fields that were actually assigned,
// in raw header order.
func (m HeaderMapping) MatchedFields() []string {
	var fields []string
	for _, a := range m.Assignments {
		if a.Matched {
			fields = append(fields, a.Canonical)
		}
	}
	return fields
}

// RawFor returns the raw header that was assigned to a canonical field.
func (m HeaderMapping) RawFor(canonical string) (string, bool) {
	for _, a := range m.Assignments {
		if a.Matched && a.Canonical == canonical {
			return a.Raw, true
		}
	}
	return "", false
}
