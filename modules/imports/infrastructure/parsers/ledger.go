package parsers

import (
	"strings"
)

const ledgerHeaderMarker = "!"

// Transaction lines of a ledger export describe postings rather than list records.
var ledgerTransactionTypes = map[string]struct{}{
	"TRNS":    {},
	"SPL":     {},
	"ENDTRNS": {},
}

// LedgerParser reads tab-delimited interchange files whose header line starts with "!".
// Files without such a line are treated as CSV.
type LedgerParser struct{}

func (LedgerParser) Parse(data []byte) (*Table, error) {
	text, err := decodeText(data, "ledger")
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	headerAt := -1
	for i, line := range lines {
		if strings.HasPrefix(line, ledgerHeaderMarker) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return parseCSVText(text)
	}

	headers := splitLedgerLine(strings.TrimPrefix(lines[headerAt], ledgerHeaderMarker))
	table := newTable(headers)
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if blankLedgerLine(line) || strings.HasPrefix(line, ledgerHeaderMarker) {
			continue
		}
		cells := splitLedgerLine(line)
		if isTransactionLine(cells) {
			continue
		}
		table.appendRow(cells)
	}
	return table, nil
}

// blankLedgerLine is true for lines with no text and no delimiters. A line of empty tab
// separated cells is still a row.
func blankLedgerLine(line string) bool {
	return strings.TrimSpace(line) == "" && !strings.Contains(line, "\t")
}

func isTransactionLine(cells []string) bool {
	if len(cells) == 0 {
		return false
	}
	_, ok := ledgerTransactionTypes[strings.ToUpper(cells[0])]
	return ok
}

func splitLedgerLine(line string) []string {
	cells := strings.Split(line, "\t")
	for i, c := range cells {
		c = strings.TrimSpace(c)
		if len(c) >= 2 && strings.HasPrefix(c, `"`) && strings.HasSuffix(c, `"`) {
			c = strings.ReplaceAll(c[1:len(c)-1], `""`, `"`)
		}
		cells[i] = c
	}
	return cells
}
