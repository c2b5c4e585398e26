package models

import (
	"regexp"
	"slices"
	"strings"
)

// ============================================================================
// Entity Profiles
// ============================================================================

// SignalKind selects how a SampleSignal inspects a cell.
type SignalKind string

const (
	SignalPattern      SignalKind = "pattern"       // regex finds a match in the cell text
	SignalContainsAny  SignalKind = "contains_any"  // cell text contains any substring (case-insensitive)
	SignalContainsAll  SignalKind = "contains_all"  // cell text contains every substring (case-insensitive)
	SignalNumericRange SignalKind = "numeric_range" // cell coerces to a number inside the bounds
)

// ValidSignalKinds contains all valid signal kind values.
var ValidSignalKinds = []SignalKind{SignalPattern, SignalContainsAny, SignalContainsAll, SignalNumericRange}

// IsValidSignalKind checks if the given kind is valid.
func IsValidSignalKind(k SignalKind) bool {
	return slices.Contains(ValidSignalKinds, k)
}

// SampleSignal is a content-shape rule. A sampled row earns Weight once if
// any of its cells satisfies the rule.
type SampleSignal struct {
	Kind       SignalKind
	Pattern    *regexp.Regexp
	Substrings []string
	Min        float64
	Max        float64
	// Exclusive makes both numeric bounds strict.
	Exclusive bool
	Weight    float64
}

// Matches reports whether a single cell satisfies the signal.
func (s SampleSignal) Matches(c Cell) bool {
	switch s.Kind {
	case SignalPattern:
		return s.Pattern != nil && s.Pattern.MatchString(c.Text())
	case SignalContainsAny:
		text := strings.ToLower(c.Text())
		for _, sub := range s.Substrings {
			if strings.Contains(text, strings.ToLower(sub)) {
				return true
			}
		}
		return false
	case SignalContainsAll:
		if len(s.Substrings) == 0 {
			return false
		}
		text := strings.ToLower(c.Text())
		for _, sub := range s.Substrings {
			if !strings.Contains(text, strings.ToLower(sub)) {
				return false
			}
		}
		return true
	case SignalNumericRange:
		n, ok := c.Number()
		if !ok {
			return false
		}
		if s.Exclusive {
			return n > s.Min && n < s.Max
		}
		return n >= s.Min && n <= s.Max
	default:
		return false
	}
}

// RoleMatcher identifies which uploaded table plays a role during cross-file
// validation.
type RoleMatcher struct {
	Filename []*regexp.Regexp
	Headers  []*regexp.Regexp
}

// Column concepts used by cross-file validation. Each profile lists the
// header aliases under which it expects to find them.
const (
	ColumnID             = "id"
	ColumnRequestedTasks = "requested_tasks"
	ColumnAttributes     = "attributes"
	ColumnSkills         = "skills"
	ColumnRequiredSkills = "required_skills"
	ColumnGroups         = "groups"
	ColumnSlots          = "slots"
	ColumnMaxConcurrent  = "max_concurrent"
	ColumnPhases         = "phases"
)

// EntityProfile describes the fields and content shape of one role. Profiles
// are loaded once and never mutated afterwards.
type EntityProfile struct {
	Type           EntityType
	RequiredFields []string
	OptionalFields []string

	// Patterns holds case-insensitive header rules per canonical field.
	Patterns map[string][]*regexp.Regexp

	// IDField is the canonical identifier column, e.g. "TaskID".
	IDField string
	// IDPattern is the shape an identifier value should have, e.g. ^T\d+$.
	IDPattern *regexp.Regexp
	// IDTokens are scanned across every cell when no identifier column exists.
	IDTokens []*regexp.Regexp

	SampleSignals []SampleSignal
	Role          RoleMatcher

	// Columns maps a column concept to its header aliases.
	Columns map[string][]string
}

// AllFields returns required fields followed by optional fields.
func (p *EntityProfile) AllFields() []string {
	fields := make([]string, 0, len(p.RequiredFields)+len(p.OptionalFields))
	fields = append(fields, p.RequiredFields...)
	fields = append(fields, p.OptionalFields...)
	return fields
}

// FieldCount returns the number of canonical fields, at least 1.
func (p *EntityProfile) FieldCount() int {
	n := len(p.RequiredFields) + len(p.OptionalFields)
	if n < 1 {
		return 1
	}
	return n
}

// IsRequired reports whether field is a required canonical field.
func (p *EntityProfile) IsRequired(field string) bool {
	return slices.Contains(p.RequiredFields, field)
}

// IsCanonical reports whether field is any canonical field of the profile.
func (p *EntityProfile) IsCanonical(field string) bool {
	return slices.Contains(p.RequiredFields, field) || slices.Contains(p.OptionalFields, field)
}

// ColumnAliases returns the aliases for a column concept.
func (p *EntityProfile) ColumnAliases(concept string) []string {
	return p.Columns[concept]
}

// ============================================================================
// ID Universes
// ============================================================================

// IDUniverse is the set of normalized identifiers of one entity type.
type IDUniverse struct {
	EntityType EntityType
	ids        map[string]struct{}
	order      []string
}

// NewIDUniverse creates an empty universe.
func NewIDUniverse(entityType EntityType) *IDUniverse {
	return &IDUniverse{EntityType: entityType, ids: make(map[string]struct{})}
}

// Add inserts an already-normalized identifier. Empty strings are ignored.
func (u *IDUniverse) Add(id string) {
	if id == "" {
		return
	}
	if _, ok := u.ids[id]; ok {
		return
	}
	u.ids[id] = struct{}{}
	u.order = append(u.order, id)
}

// Contains reports whether id is in the universe.
func (u *IDUniverse) Contains(id string) bool {
	_, ok := u.ids[id]
	return ok
}

// Len returns the number of identifiers.
func (u *IDUniverse) Len() int {
	return len(u.ids)
}

// InsertionOrder returns identifiers in the order they were first seen.
func (u *IDUniverse) InsertionOrder() []string {
	return append([]string(nil), u.order...)
}

// Sorted returns identifiers in lexical order.
func (u *IDUniverse) Sorted() []string {
	ids := u.InsertionOrder()
	slices.Sort(ids)
	return ids
}
