package services

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/iota-import/modules/imports/domain/entities/record"
	"github.com/iota-uz/iota-import/modules/imports/domain/importerrs"
	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
)

// DuplicateMatch names the key that matched. RecordID is set for stored records, Row for an
// earlier row of the same run.
type DuplicateMatch struct {
	Key      string
	Value    string
	RecordID uuid.UUID
	Row      int
}

func (m *DuplicateMatch) asError(s *schema.Schema) *importerrs.DuplicateError {
	return &importerrs.DuplicateError{
		EntityType:     string(s.EntityType),
		Key:            m.Key,
		Value:          m.Value,
		Keys:           append([]string(nil), s.DedupeKeys...),
		DuplicateOfRow: m.Row,
	}
}

// DuplicateResolver checks natural keys against live records and against rows already accepted
// in the current run. It is not safe for concurrent use; one resolver serves one run.
type DuplicateResolver struct {
	records record.Repository
	seen    map[string]int
}

func NewDuplicateResolver(records record.Repository) *DuplicateResolver {
	return &DuplicateResolver{records: records, seen: map[string]int{}}
}

func seenKey(key, normalized string) string {
	return key + "\x00" + normalized
}

func candidate(values record.Values, f schema.Field) (string, string) {
	raw, _ := values[f.Key].(string)
	return raw, f.NormalizeMatch(raw)
}

// FindDuplicate walks the schema's dedupe keys in order and returns the first match, or nil.
func (d *DuplicateResolver) FindDuplicate(ctx context.Context, values record.Values, s *schema.Schema) (*DuplicateMatch, error) {
	if !s.DedupeEligible {
		return nil, nil
	}
	for _, key := range s.DedupeKeys {
		f, _ := s.Field(key)
		raw, normalized := candidate(values, f)
		if normalized == "" {
			continue
		}
		if row, ok := d.seen[seenKey(key, normalized)]; ok {
			return &DuplicateMatch{Key: key, Value: raw, Row: row}, nil
		}
		id, found, err := d.records.FindExisting(ctx, s, key, raw)
		if err != nil {
			return nil, errors.Wrapf(err, "lookup %s", key)
		}
		if found {
			return &DuplicateMatch{Key: key, Value: raw, RecordID: id}, nil
		}
	}
	return nil, nil
}

// Remember reserves the row's keys so later rows of the run collide with it.
func (d *DuplicateResolver) Remember(values record.Values, s *schema.Schema, row int) {
	d.each(values, s, func(k string) {
		if _, ok := d.seen[k]; !ok {
			d.seen[k] = row
		}
	})
}

// Forget releases keys reserved by row after its insert failed.
func (d *DuplicateResolver) Forget(values record.Values, s *schema.Schema, row int) {
	d.each(values, s, func(k string) {
		if d.seen[k] == row {
			delete(d.seen, k)
		}
	})
}

func (d *DuplicateResolver) each(values record.Values, s *schema.Schema, fn func(string)) {
	if !s.DedupeEligible {
		return
	}
	for _, key := range s.DedupeKeys {
		f, _ := s.Field(key)
		if _, normalized := candidate(values, f); normalized != "" {
			fn(seenKey(key, normalized))
		}
	}
}
