package parsers

import (
	"fmt"
	"strings"

	"github.com/iota-uz/iota-import/modules/imports/domain/importerrs"
)

// CSVParser reads comma-separated files with RFC 4180 quoting.
type CSVParser struct{}

func (CSVParser) Parse(data []byte) (*Table, error) {
	text, err := decodeText(data, "csv")
	if err != nil {
		return nil, err
	}
	return parseCSVText(text)
}

func parseCSVText(text string) (*Table, error) {
	records, err := splitCSV(text)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &Table{Headers: []string{}, Rows: []Row{}}, nil
	}
	table := newTable(records[0])
	for _, rec := range records[1:] {
		table.appendRow(rec)
	}
	return table, nil
}

// csvSplitter walks the text once. Commas inside a double-quoted span are data, "" there is a
// literal quote and line breaks there belong to the field. Whitespace around a quoted span is
// dropped and every field is trimmed. Lines holding nothing but whitespace are skipped; a line
// of empty fields such as ",," is a record.
type csvSplitter struct {
	records [][]string
	fields  []string
	field   strings.Builder

	quoted    bool
	wasQuoted bool
	content   bool
	line      int
	openedAt  int
}

func splitCSV(text string) ([][]string, error) {
	sp := &csvSplitter{line: 1}
	for i := 0; i < len(text); i++ {
		c := text[i]
		next := byte(0)
		if i+1 < len(text) {
			next = text[i+1]
		}
		if sp.quoted {
			switch {
			case c == '"' && next == '"':
				sp.field.WriteByte('"')
				i++
			case c == '"':
				sp.quoted = false
			case c == '\r' && next == '\n':
			default:
				if c == '\n' {
					sp.line++
				}
				sp.field.WriteByte(c)
			}
			continue
		}
		switch c {
		case '"':
			sp.content = true
			if !sp.wasQuoted && strings.TrimSpace(sp.field.String()) == "" {
				sp.field.Reset()
				sp.quoted, sp.wasQuoted = true, true
				sp.openedAt = sp.line
				continue
			}
			sp.field.WriteByte(c)
		case ',':
			sp.content = true
			sp.endField()
		case '\r':
			if next == '\n' {
				continue
			}
			sp.endRecord()
		case '\n':
			sp.endRecord()
		default:
			if !isSpaceByte(c) {
				sp.content = true
			}
			sp.field.WriteByte(c)
		}
	}
	if sp.quoted {
		return nil, &importerrs.ParseError{
			Format: "csv",
			Reason: fmt.Sprintf("quoted field opened on line %d is never closed", sp.openedAt),
		}
	}
	sp.endRecord()
	return sp.records, nil
}

func (sp *csvSplitter) endField() {
	sp.fields = append(sp.fields, strings.TrimSpace(sp.field.String()))
	sp.field.Reset()
	sp.wasQuoted = false
}

func (sp *csvSplitter) endRecord() {
	sp.endField()
	if sp.content {
		sp.records = append(sp.records, sp.fields)
	}
	sp.fields = nil
	sp.content = false
	sp.line++
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\v' || c == '\f'
}
