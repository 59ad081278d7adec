package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iota-uz/iota-import/modules/imports/domain/aggregates/importbatch"
	"github.com/iota-uz/iota-import/modules/imports/domain/coercion"
	"github.com/iota-uz/iota-import/modules/imports/domain/entities/record"
	"github.com/iota-uz/iota-import/modules/imports/domain/importerrs"
	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
)

// RowSource is one parsed source row addressed by column header.
type RowSource interface {
	Get(column string) string
}

// ParseMappingPairs reads "Source Column=targetField" pairs. The last "=" separates the two so
// source headers may contain one.
func ParseMappingPairs(pairs []string) ([]importbatch.ColumnMapping, error) {
	out := make([]importbatch.ColumnMapping, 0, len(pairs))
	for _, p := range pairs {
		i := strings.LastIndex(p, "=")
		if i <= 0 || i == len(p)-1 {
			return nil, &importerrs.ValidationError{Field: "mapping", Reason: fmt.Sprintf("%q is not a Source=field pair", p)}
		}
		out = append(out, importbatch.ColumnMapping{
			SourceColumn: strings.TrimSpace(p[:i]),
			TargetField:  strings.TrimSpace(p[i+1:]),
		})
	}
	return out, nil
}

// ValidateMapping rejects mappings that target unknown fields, feed a non-merge field twice,
// or leave a required field unmapped.
func ValidateMapping(s *schema.Schema, mapping []importbatch.ColumnMapping) error {
	if len(mapping) == 0 {
		return &importerrs.ValidationError{Field: "mapping", Reason: "at least one column must be mapped"}
	}
	seen := make(map[string]string, len(mapping))
	for _, m := range mapping {
		if strings.TrimSpace(m.SourceColumn) == "" {
			return &importerrs.ValidationError{Field: "mapping", Reason: fmt.Sprintf("target %q has no source column", m.TargetField)}
		}
		f, ok := s.Field(m.TargetField)
		if !ok {
			return &importerrs.ValidationError{
				Field:  "mapping",
				Reason: fmt.Sprintf("%q is not a field of %s", m.TargetField, s.EntityType),
			}
		}
		if prev, dup := seen[f.Key]; dup && !f.Merge {
			return &importerrs.ValidationError{
				Field:  "mapping",
				Reason: fmt.Sprintf("field %q is mapped from both %q and %q", f.Key, prev, m.SourceColumn),
			}
		}
		seen[f.Key] = m.SourceColumn
	}
	for _, f := range s.RequiredFields() {
		if _, ok := seen[f.Key]; !ok {
			return &importerrs.ValidationError{Field: "mapping", Reason: fmt.Sprintf("required field %q is not mapped", f.Key)}
		}
	}
	return nil
}

// ApplyMapping turns one source row into coerced record values. It returns a MappingError
// for the first required field, in schema order, that has no value.
func ApplyMapping(row RowSource, mapping []importbatch.ColumnMapping, s *schema.Schema, opts coercion.Options) (record.Values, error) {
	raw := make(map[string]string, len(mapping))
	for _, m := range mapping {
		f, ok := s.Field(m.TargetField)
		if !ok {
			continue
		}
		v := strings.TrimSpace(row.Get(m.SourceColumn))
		if v == "" {
			continue
		}
		prev, exists := raw[f.Key]
		switch {
		case !exists:
			raw[f.Key] = v
		case f.Merge:
			raw[f.Key] = prev + " " + v
		}
	}

	for _, f := range s.RequiredFields() {
		if raw[f.Key] == "" {
			return nil, &importerrs.MappingError{Field: f.Key, Label: f.Label}
		}
	}

	values := make(record.Values, len(raw)+len(s.Defaults)+len(s.Derived))
	for _, f := range s.Fields {
		v, ok := raw[f.Key]
		if !ok {
			continue
		}
		if coerced := coerce(f.Coercion, v, opts); coerced != nil {
			values[f.Key] = coerced
		}
	}

	for _, f := range s.Fields {
		def, ok := s.Defaults[f.Key]
		if !ok {
			continue
		}
		if _, present := values[f.Key]; present {
			continue
		}
		if coerced := coerce(f.Coercion, def, opts); coerced != nil {
			values[f.Key] = coerced
		}
	}

	applyDerived(values, s.Derived)
	return values, nil
}

// coerce drops values that carry no information, such as unparseable dates or empty lists.
func coerce(t coercion.Type, raw string, opts coercion.Options) any {
	v := coercion.Coerce(t, raw, opts)
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if val == "" {
			return nil
		}
	case []string:
		if len(val) == 0 {
			return nil
		}
	case *time.Time:
		if val == nil {
			return nil
		}
	}
	return v
}

// applyDerived computes derived money fields from their sources. A derived value replaces
// whatever the file mapped to the same field.
func applyDerived(values record.Values, rules []schema.Derived) {
	for _, d := range rules {
		first, ok := values[d.From[0]].(decimal.Decimal)
		if !ok {
			continue
		}
		switch d.Op {
		case schema.DerivedCopy:
			values[d.Key] = first
		case schema.DerivedSubtract:
			second, _ := values[d.From[1]].(decimal.Decimal)
			values[d.Key] = first.Sub(second)
		}
	}
}
