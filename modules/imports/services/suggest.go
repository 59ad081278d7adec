package services

import (
	"sort"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/iota-uz/iota-import/modules/imports/domain/aggregates/importbatch"
	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
	"github.com/iota-uz/iota-import/modules/imports/infrastructure/parsers"
)

type suggestCandidate struct {
	word  string
	field schema.Field
}

// normalizeHeader lowercases s, drops punctuation and collapses whitespace and underscores.
func normalizeHeader(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		case (unicode.IsSpace(r) || r == '_') && !space && b.Len() > 0:
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

func suggestCandidates(s *schema.Schema) []suggestCandidate {
	var out []suggestCandidate
	for _, f := range s.Fields {
		words := append([]string{f.Key, f.Label, f.Column}, f.Aliases...)
		seen := map[string]bool{}
		for _, w := range words {
			n := normalizeHeader(w)
			if n == "" || seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, suggestCandidate{word: n, field: f})
		}
	}
	return out
}

// SuggestMapping proposes a target field for each source header: exact matches on a field's key,
// label or alias first, then the closest fuzzy match. Headers without a plausible target are left out.
func (s *ImportService) SuggestMapping(entityType string, headers []string) ([]importbatch.ColumnMapping, error) {
	sch, err := s.registry.Get(schema.EntityType(entityType))
	if err != nil {
		return nil, err
	}
	return SuggestMapping(sch, headers), nil
}

func SuggestMapping(sch *schema.Schema, headers []string) []importbatch.ColumnMapping {
	candidates := suggestCandidates(sch)
	words := make([]string, len(candidates))
	for i, c := range candidates {
		words[i] = c.word
	}

	assigned := make([]string, len(headers))
	used := map[string]bool{}
	take := func(i int, f schema.Field) bool {
		if used[f.Key] && !f.Merge {
			return false
		}
		used[f.Key] = true
		assigned[i] = f.Key
		return true
	}

	for i, h := range headers {
		n := normalizeHeader(h)
		for _, c := range candidates {
			if c.word == n && take(i, c.field) {
				break
			}
		}
	}

	for i, h := range headers {
		n := normalizeHeader(h)
		if assigned[i] != "" || len(n) < 3 {
			continue
		}
		ranks := fuzzy.RankFindNormalizedFold(n, words)
		sort.Sort(ranks)
		for _, rank := range ranks {
			if rank.Distance > len(rank.Target)/2 {
				break
			}
			if take(i, candidates[rank.OriginalIndex].field) {
				break
			}
		}
	}

	out := make([]importbatch.ColumnMapping, 0, len(headers))
	for i, h := range headers {
		if assigned[i] != "" {
			out = append(out, importbatch.ColumnMapping{SourceColumn: h, TargetField: assigned[i]})
		}
	}
	return out
}

// SuggestMappingForFile reads the header row of data and suggests a mapping for it.
func (s *ImportService) SuggestMappingForFile(entityType, format string, data []byte) ([]importbatch.ColumnMapping, error) {
	table, err := parsers.Parse(data, importbatch.Format(format))
	if err != nil {
		return nil, err
	}
	return s.SuggestMapping(entityType, table.Headers)
}
