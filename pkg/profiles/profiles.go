// Package profiles loads the entity profiles that drive classification,
// header mapping and cross-file role resolution. Profiles are data: the
// default set is embedded, and operators may supply their own YAML or TOML
// document with the same shape.
package profiles

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-intake/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-intake/pkg/models"
)

//go:embed default.yaml
var defaultDocument []byte

// Format is the encoding of a profile document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the document format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("profile file %q: %w", path, apperrors.ErrUnsupportedFormat)
	}
}

// Document is the on-disk shape of a profile file.
type Document struct {
	Profiles []ProfileSpec `yaml:"profiles" toml:"profiles"`
}

// ProfileSpec is one profile as written by an operator.
type ProfileSpec struct {
	Type           string              `yaml:"type" toml:"type"`
	RequiredFields []string            `yaml:"required_fields" toml:"required_fields"`
	OptionalFields []string            `yaml:"optional_fields" toml:"optional_fields"`
	Patterns       map[string][]string `yaml:"patterns" toml:"patterns"`
	IDField        string              `yaml:"id_field" toml:"id_field"`
	IDPattern      string              `yaml:"id_pattern" toml:"id_pattern"`
	IDTokens       []string            `yaml:"id_tokens" toml:"id_tokens"`
	SampleSignals  []SignalSpec        `yaml:"sample_signals" toml:"sample_signals"`
	Role           RoleSpec            `yaml:"role" toml:"role"`
	Columns        map[string][]string `yaml:"columns" toml:"columns"`
}

// SignalSpec is one sample signal as written by an operator.
type SignalSpec struct {
	Kind       string   `yaml:"kind" toml:"kind"`
	Pattern    string   `yaml:"pattern" toml:"pattern"`
	Substrings []string `yaml:"substrings" toml:"substrings"`
	Min        float64  `yaml:"min" toml:"min"`
	Max        float64  `yaml:"max" toml:"max"`
	Exclusive  bool     `yaml:"exclusive" toml:"exclusive"`
	Weight     float64  `yaml:"weight" toml:"weight"`
}

// RoleSpec holds the filename and header patterns that identify a role's
// table among several uploaded files.
type RoleSpec struct {
	Filename []string `yaml:"filename" toml:"filename"`
	Headers  []string `yaml:"headers" toml:"headers"`
}

// Registry holds compiled profiles for every known entity type.
type Registry struct {
	profiles []*models.EntityProfile
	byType   map[models.EntityType]*models.EntityProfile
}

// Profile returns the profile for an entity type.
func (r *Registry) Profile(t models.EntityType) (*models.EntityProfile, bool) {
	p, ok := r.byType[t]
	return p, ok
}

// Profiles returns every profile in resolution order (client, worker, task).
func (r *Registry) Profiles() []*models.EntityProfile {
	return append([]*models.EntityProfile(nil), r.profiles...)
}

var loadDefault = sync.OnceValues(func() (*Registry, error) {
	return Parse(defaultDocument, FormatYAML)
})

// Default returns the registry built from the embedded profile document.
func Default() (*Registry, error) {
	return loadDefault()
}

// MustDefault is Default for callers that cannot recover from a broken
// embedded document.
func MustDefault() *Registry {
	r, err := Default()
	if err != nil {
		panic(err)
	}
	return r
}

// Load reads a profile document from disk. An empty path loads the defaults.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file %q: %w", path, err)
	}
	return Parse(data, format)
}

// Parse decodes and compiles a profile document.
func Parse(data []byte, format Format) (*Registry, error) {
	var doc Document
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode YAML profiles: %v: %w", err, apperrors.ErrInvalidProfile)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &doc)
		if err != nil {
			return nil, fmt.Errorf("failed to decode TOML profiles: %v: %w", err, apperrors.ErrInvalidProfile)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown TOML profile key %q: %w", undecoded[0].String(), apperrors.ErrInvalidProfile)
		}
	default:
		return nil, fmt.Errorf("profile format %q: %w", format, apperrors.ErrUnsupportedFormat)
	}
	return Compile(doc)
}

// Compile validates a decoded document and compiles its patterns. Every
// known entity type must be defined exactly once.
func Compile(doc Document) (*Registry, error) {
	byType := make(map[models.EntityType]*models.EntityProfile, len(doc.Profiles))
	for i, spec := range doc.Profiles {
		p, err := compileProfile(spec)
		if err != nil {
			return nil, fmt.Errorf("profile %d (%s): %w", i, spec.Type, err)
		}
		if _, dup := byType[p.Type]; dup {
			return nil, fmt.Errorf("profile %q defined twice: %w", p.Type, apperrors.ErrInvalidProfile)
		}
		byType[p.Type] = p
	}

	r := &Registry{byType: byType}
	for _, t := range models.KnownEntityTypes {
		p, ok := byType[t]
		if !ok {
			return nil, fmt.Errorf("missing profile for %q: %w", t, apperrors.ErrInvalidProfile)
		}
		r.profiles = append(r.profiles, p)
	}
	return r, nil
}

func compileProfile(spec ProfileSpec) (*models.EntityProfile, error) {
	t := models.EntityType(spec.Type)
	if !models.IsValidEntityType(t) || t == models.EntityUnknown {
		return nil, fmt.Errorf("invalid entity type %q: %w", spec.Type, apperrors.ErrInvalidProfile)
	}
	if len(spec.RequiredFields) == 0 {
		return nil, fmt.Errorf("no required fields: %w", apperrors.ErrInvalidProfile)
	}

	p := &models.EntityProfile{
		Type:           t,
		RequiredFields: append([]string(nil), spec.RequiredFields...),
		OptionalFields: append([]string(nil), spec.OptionalFields...),
		Patterns:       make(map[string][]*regexp.Regexp, len(spec.Patterns)),
		IDField:        spec.IDField,
		Columns:        make(map[string][]string, len(spec.Columns)),
	}

	seen := make(map[string]bool)
	for _, f := range p.AllFields() {
		if f == "" || seen[f] {
			return nil, fmt.Errorf("field %q is empty or listed twice: %w", f, apperrors.ErrInvalidProfile)
		}
		seen[f] = true
	}

	for field, exprs := range spec.Patterns {
		if !seen[field] {
			return nil, fmt.Errorf("patterns for unknown field %q: %w", field, apperrors.ErrInvalidProfile)
		}
		compiled, err := compileAll(exprs, true)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		p.Patterns[field] = compiled
	}

	if p.IDField != "" && !seen[p.IDField] {
		return nil, fmt.Errorf("id_field %q is not a profile field: %w", p.IDField, apperrors.ErrInvalidProfile)
	}
	if spec.IDPattern != "" {
		re, err := compile(spec.IDPattern, true)
		if err != nil {
			return nil, err
		}
		p.IDPattern = re
	}

	var err error
	if p.IDTokens, err = compileAll(spec.IDTokens, true); err != nil {
		return nil, fmt.Errorf("id_tokens: %w", err)
	}
	if p.Role.Filename, err = compileAll(spec.Role.Filename, true); err != nil {
		return nil, fmt.Errorf("role filename: %w", err)
	}
	if p.Role.Headers, err = compileAll(spec.Role.Headers, true); err != nil {
		return nil, fmt.Errorf("role headers: %w", err)
	}

	for _, s := range spec.SampleSignals {
		signal, err := compileSignal(s)
		if err != nil {
			return nil, err
		}
		p.SampleSignals = append(p.SampleSignals, signal)
	}

	for concept, aliases := range spec.Columns {
		p.Columns[concept] = append([]string(nil), aliases...)
	}

	return p, nil
}

func compileSignal(s SignalSpec) (models.SampleSignal, error) {
	kind := models.SignalKind(s.Kind)
	if !models.IsValidSignalKind(kind) {
		return models.SampleSignal{}, fmt.Errorf("invalid sample signal kind %q: %w", s.Kind, apperrors.ErrInvalidProfile)
	}
	if s.Weight < 0 {
		return models.SampleSignal{}, fmt.Errorf("negative sample signal weight %v: %w", s.Weight, apperrors.ErrInvalidProfile)
	}

	signal := models.SampleSignal{
		Kind:       kind,
		Substrings: append([]string(nil), s.Substrings...),
		Min:        s.Min,
		Max:        s.Max,
		Exclusive:  s.Exclusive,
		Weight:     s.Weight,
	}

	switch kind {
	case models.SignalPattern:
		re, err := compile(s.Pattern, false)
		if err != nil {
			return models.SampleSignal{}, err
		}
		signal.Pattern = re
	case models.SignalContainsAny, models.SignalContainsAll:
		if len(s.Substrings) == 0 {
			return models.SampleSignal{}, fmt.Errorf("%s signal needs substrings: %w", kind, apperrors.ErrInvalidProfile)
		}
	case models.SignalNumericRange:
		if s.Min > s.Max {
			return models.SampleSignal{}, fmt.Errorf("numeric range min %v > max %v: %w", s.Min, s.Max, apperrors.ErrInvalidProfile)
		}
	}
	return signal, nil
}

func compileAll(exprs []string, caseInsensitive bool) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := compile(expr, caseInsensitive)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func compile(expr string, caseInsensitive bool) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty pattern: %w", apperrors.ErrInvalidProfile)
	}
	if caseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %v: %w", expr, err, apperrors.ErrInvalidProfile)
	}
	return re, nil
}
