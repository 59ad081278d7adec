// Package coercion converts raw cell text into typed field values. Every function is total:
// any input has a defined output and nothing here returns an error.
package coercion

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	Currency Type = "currency"
	Date     Type = "date"
	Status   Type = "status"
	List     Type = "list"
	Text     Type = "text"
)

func (t Type) Valid() bool {
	switch t {
	case Currency, Date, Status, List, Text:
		return true
	}
	return false
}

// StatusLookup resolves a trimmed, lowercased source status into a canonical one.
type StatusLookup func(normalized string) (string, bool)

type Options struct {
	Statuses      StatusLookup
	DefaultStatus string
}

// Coerce dispatches on t. Values are decimal.Decimal, *time.Time, string or []string.
func Coerce(t Type, raw string, opts Options) any {
	switch t {
	case Currency:
		return ToCurrency(raw)
	case Date:
		return ToDate(raw)
	case Status:
		return ToStatus(raw, opts.Statuses, opts.DefaultStatus)
	case List:
		return ToList(raw)
	default:
		return ToText(raw)
	}
}

var currencyStripper = strings.NewReplacer("$", "", ",", "", " ", "")

// ToCurrency strips "$" and "," and parses the rest; unparsable or empty input is zero.
// Accounting negatives written as "(12.50)" are honoured.
func ToCurrency(raw string) decimal.Decimal {
	s := currencyStripper.Replace(strings.TrimSpace(raw))
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		return d.Neg()
	}
	return d
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04",
	"1/2/2006 3:04 PM",
	"01/02/06",
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
	"02-Jan-2006",
	"2 Jan 2006",
}

// ToDate returns nil when raw is not a recognizable calendar date or timestamp.
func ToDate(raw string) *time.Time {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func ToStatus(raw string, lookup StatusLookup, defaultStatus string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return defaultStatus
	}
	if lookup != nil {
		if canonical, ok := lookup(v); ok {
			return canonical
		}
	}
	return v
}

// ToList splits on "," or ";". Order and repeats are kept.
func ToList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func ToText(raw string) string {
	return strings.TrimSpace(raw)
}
