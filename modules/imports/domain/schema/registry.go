// Package schema is the read-only registry of importable entity types: their target fields,
// dedupe keys, defaults and status vocabulary.
package schema

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"

	"github.com/iota-uz/iota-import/modules/imports/domain/coercion"
)

//go:embed schemas.yaml
var schemasYAML []byte

//go:embed statuses.yaml
var statusesYAML []byte

var ErrUnknownEntityType = errors.New("unknown entity type")

type EntityType string

type Field struct {
	Key      string        `yaml:"key"`
	Label    string        `yaml:"label"`
	Required bool          `yaml:"required"`
	Coercion coercion.Type `yaml:"type"`
	Column   string        `yaml:"column"`
	// Merge allows several source columns to feed this field.
	Merge   bool     `yaml:"merge"`
	Aliases []string `yaml:"aliases"`
	// Match selects how dedupe lookups compare values.
	Match MatchMode `yaml:"match"`
}

type MatchMode string

const (
	MatchExact MatchMode = "exact"
	MatchEmail MatchMode = "email"
	MatchPhone MatchMode = "phone"
)

// NormalizeMatch reduces value to the form dedupe lookups compare on.
func (f Field) NormalizeMatch(value string) string {
	value = strings.TrimSpace(value)
	switch f.Match {
	case MatchEmail:
		return strings.ToLower(value)
	case MatchPhone:
		var b strings.Builder
		for _, r := range value {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			}
		}
		return b.String()
	default:
		return value
	}
}

type DerivedOp string

const (
	DerivedCopy     DerivedOp = "copy"
	DerivedSubtract DerivedOp = "subtract"
)

// Derived computes Key from From when From[0] is present on the record, replacing any mapped value.
type Derived struct {
	Key  string    `yaml:"key"`
	Op   DerivedOp `yaml:"op"`
	From []string  `yaml:"from"`
}

type Schema struct {
	EntityType     EntityType        `yaml:"entity_type"`
	Label          string            `yaml:"label"`
	Table          string            `yaml:"table"`
	DedupeEligible bool              `yaml:"dedupe_eligible"`
	DedupeKeys     []string          `yaml:"dedupe_keys"`
	DefaultStatus  string            `yaml:"default_status"`
	Fields         []Field           `yaml:"fields"`
	Defaults       map[string]string `yaml:"defaults"`
	Derived        []Derived         `yaml:"derived"`

	index map[string]int
}

func (s *Schema) Field(key string) (Field, bool) {
	i, ok := s.index[key]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// Position is the field's index in schema order, or -1.
func (s *Schema) Position(key string) int {
	if i, ok := s.index[key]; ok {
		return i
	}
	return -1
}

func (s *Schema) RequiredFields() []Field {
	out := make([]Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

type Registry struct {
	order    []EntityType
	schemas  map[EntityType]*Schema
	statuses map[EntityType]map[string]string
}

type schemaFile struct {
	Schemas []*Schema `yaml:"schemas"`
}

var defaultRegistry = sync.OnceValues(func() (*Registry, error) {
	return Load(schemasYAML, statusesYAML)
})

// Default returns the registry built from the embedded definitions. It is loaded once.
func Default() *Registry {
	r, err := defaultRegistry()
	if err != nil {
		panic(fmt.Sprintf("schema: embedded definitions are invalid: %v", err))
	}
	return r
}

func Load(schemaDoc, statusDoc []byte) (*Registry, error) {
	var file schemaFile
	if err := yaml.Unmarshal(schemaDoc, &file); err != nil {
		return nil, errors.Wrap(err, "decode schemas")
	}
	statuses := map[EntityType]map[string]string{}
	if len(statusDoc) > 0 {
		if err := yaml.Unmarshal(statusDoc, &statuses); err != nil {
			return nil, errors.Wrap(err, "decode statuses")
		}
	}

	r := &Registry{
		schemas:  make(map[EntityType]*Schema, len(file.Schemas)),
		statuses: make(map[EntityType]map[string]string, len(statuses)),
	}
	for _, s := range file.Schemas {
		if err := prepare(s); err != nil {
			return nil, errors.Wrapf(err, "schema %q", s.EntityType)
		}
		if _, dup := r.schemas[s.EntityType]; dup {
			return nil, errors.Errorf("schema %q declared twice", s.EntityType)
		}
		r.schemas[s.EntityType] = s
		r.order = append(r.order, s.EntityType)
	}
	for et, table := range statuses {
		normalized := make(map[string]string, len(table))
		for raw, canonical := range table {
			normalized[strings.ToLower(strings.TrimSpace(raw))] = canonical
		}
		r.statuses[et] = normalized
	}
	return r, nil
}

var identifierRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func prepare(s *Schema) error {
	if s.EntityType == "" {
		return errors.New("entity_type is required")
	}
	if !identifierRe.MatchString(s.Table) {
		return errors.Errorf("invalid table %q", s.Table)
	}
	s.index = make(map[string]int, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Key == "" {
			return errors.Errorf("field %d has no key", i)
		}
		if _, dup := s.index[f.Key]; dup {
			return errors.Errorf("field %q declared twice", f.Key)
		}
		if f.Coercion == "" {
			f.Coercion = coercion.Text
		}
		if !f.Coercion.Valid() {
			return errors.Errorf("field %q: unknown type %q", f.Key, f.Coercion)
		}
		switch f.Match {
		case "":
			f.Match = MatchExact
		case MatchExact, MatchEmail, MatchPhone:
		default:
			return errors.Errorf("field %q: unknown match %q", f.Key, f.Match)
		}
		if f.Label == "" {
			f.Label = f.Key
		}
		if f.Column == "" {
			f.Column = snakeCase(f.Key)
		}
		if !identifierRe.MatchString(f.Column) {
			return errors.Errorf("field %q: invalid column %q", f.Key, f.Column)
		}
		s.index[f.Key] = i
	}
	for _, k := range s.DedupeKeys {
		if _, ok := s.index[k]; !ok {
			return errors.Errorf("dedupe key %q is not a field", k)
		}
	}
	if s.DedupeEligible && len(s.DedupeKeys) == 0 {
		return errors.New("dedupe_eligible requires dedupe_keys")
	}
	for k := range s.Defaults {
		if _, ok := s.index[k]; !ok {
			return errors.Errorf("default %q is not a field", k)
		}
	}
	for _, d := range s.Derived {
		if _, ok := s.index[d.Key]; !ok {
			return errors.Errorf("derived %q is not a field", d.Key)
		}
		switch d.Op {
		case DerivedCopy:
			if len(d.From) != 1 {
				return errors.Errorf("derived %q: copy takes one source", d.Key)
			}
		case DerivedSubtract:
			if len(d.From) != 2 {
				return errors.Errorf("derived %q: subtract takes two sources", d.Key)
			}
		default:
			return errors.Errorf("derived %q: unknown op %q", d.Key, d.Op)
		}
		for _, src := range d.From {
			f, ok := s.Field(src)
			if !ok {
				return errors.Errorf("derived %q: source %q is not a field", d.Key, src)
			}
			if f.Coercion != coercion.Currency {
				return errors.Errorf("derived %q: source %q must be currency", d.Key, src)
			}
		}
	}
	return nil
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (r *Registry) Get(entityType EntityType) (*Schema, error) {
	s, ok := r.schemas[entityType]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEntityType, "%q", entityType)
	}
	return s, nil
}

func (r *Registry) EntityTypes() []EntityType {
	return append([]EntityType(nil), r.order...)
}

// TranslateStatus maps a source status to the canonical vocabulary of entityType.
// Unknown values pass through lowercased; empty values yield the entity's default status.
func (r *Registry) TranslateStatus(entityType EntityType, raw string) string {
	def := ""
	if s, ok := r.schemas[entityType]; ok {
		def = s.DefaultStatus
	}
	return coercion.ToStatus(raw, r.StatusLookup(entityType), def)
}

func (r *Registry) StatusLookup(entityType EntityType) coercion.StatusLookup {
	table := r.statuses[entityType]
	return func(normalized string) (string, bool) {
		v, ok := table[normalized]
		return v, ok
	}
}

// CoercionOptions bundles the status context coercion needs for entityType.
func (r *Registry) CoercionOptions(entityType EntityType) coercion.Options {
	opts := coercion.Options{Statuses: r.StatusLookup(entityType)}
	if s, ok := r.schemas[entityType]; ok {
		opts.DefaultStatus = s.DefaultStatus
	}
	return opts
}
