// Package parsers turns raw upload bytes into a header row plus ordered, string-keyed rows.
package parsers

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/iota-uz/iota-import/modules/imports/domain/aggregates/importbatch"
	"github.com/iota-uz/iota-import/modules/imports/domain/entities/importerror"
	"github.com/iota-uz/iota-import/modules/imports/domain/importerrs"
)

// Parser is one strategy for a source format.
type Parser interface {
	Parse(data []byte) (*Table, error)
}

type Table struct {
	Headers []string
	Rows    []Row

	index map[string]int
}

// Row is one data line. Cells is aligned with Table.Headers and Number is 1-based.
type Row struct {
	Number int
	Cells  []string

	table *Table
}

func newTable(headers []string) *Table {
	t := &Table{Headers: headers, index: make(map[string]int, len(headers)*2)}
	for i, h := range headers {
		if _, ok := t.index[h]; !ok {
			t.index[h] = i
		}
	}
	for i, h := range headers {
		key := foldHeader(h)
		if _, ok := t.index[key]; !ok {
			t.index[key] = i
		}
	}
	return t
}

func foldHeader(h string) string {
	return "\x00" + norm.NFC.String(strings.ToLower(strings.TrimSpace(h)))
}

// appendRow pads or truncates cells to the header width.
func (t *Table) appendRow(cells []string) {
	aligned := make([]string, len(t.Headers))
	copy(aligned, cells)
	t.Rows = append(t.Rows, Row{Number: len(t.Rows) + 1, Cells: aligned, table: t})
}

// Column resolves a source column name, exactly first and then case-insensitively.
func (t *Table) Column(name string) (int, bool) {
	if i, ok := t.index[name]; ok {
		return i, true
	}
	i, ok := t.index[foldHeader(name)]
	return i, ok
}

func (r Row) Get(column string) string {
	if r.table == nil {
		return ""
	}
	i, ok := r.table.Column(column)
	if !ok || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i]
}

func (r Row) Map() map[string]string {
	out := make(map[string]string, len(r.Cells))
	if r.table == nil {
		return out
	}
	for i, h := range r.table.Headers {
		if _, seen := out[h]; !seen {
			out[h] = r.Cells[i]
		}
	}
	return out
}

// Snapshot keeps the raw row verbatim, in header order, for error reporting.
func (r Row) Snapshot() importerror.RowData {
	if r.table == nil {
		return nil
	}
	out := make(importerror.RowData, 0, len(r.Cells))
	for i, h := range r.table.Headers {
		out = append(out, importerror.Cell{Column: h, Value: r.Cells[i]})
	}
	return out
}

func For(format importbatch.Format) (Parser, error) {
	switch format {
	case importbatch.FormatCSV:
		return CSVParser{}, nil
	case importbatch.FormatLedger:
		return LedgerParser{}, nil
	default:
		return nil, &importerrs.ParseError{Format: string(format), Reason: "unsupported format"}
	}
}

// Parse selects the strategy for format and runs it.
func Parse(data []byte, format importbatch.Format) (*Table, error) {
	p, err := For(format)
	if err != nil {
		return nil, err
	}
	return p.Parse(data)
}
