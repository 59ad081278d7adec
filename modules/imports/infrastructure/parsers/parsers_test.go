package parsers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/iota-import/modules/imports/domain/aggregates/importbatch"
	"github.com/iota-uz/iota-import/modules/imports/domain/importerrs"
)

func TestCSV_QuotedCommaRoundTrip(t *testing.T) {
	values := [][]string{
		{"Name", "Address", "Notes"},
		{"Acme, Inc.", "12 Main St, Suite 4", `She said "hi"`},
		{"Bob", "", "plain"},
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	require.NoError(t, w.WriteAll(values))

	table, err := Parse(buf.Bytes(), importbatch.FormatCSV)
	require.NoError(t, err)
	require.Equal(t, values[0], table.Headers)
	require.Len(t, table.Rows, 2)
	require.Equal(t, "Acme, Inc.", table.Rows[0].Get("Name"))
	require.Equal(t, "12 Main St, Suite 4", table.Rows[0].Get("Address"))
	require.Equal(t, `She said "hi"`, table.Rows[0].Get("Notes"))
	require.Equal(t, 1, table.Rows[0].Number)
	require.Equal(t, 2, table.Rows[1].Number)
}

func TestCSV_TrimsAndPadsShortRows(t *testing.T) {
	data := "\uFEFFName , Email,Phone\n  Ann ,ann@example.com\n\n   \nBob,bob@example.com, 555-1234 ,extra\n"
	table, err := CSVParser{}.Parse([]byte(data))
	require.NoError(t, err)
	require.Equal(t, []string{"Name", "Email", "Phone"}, table.Headers)
	require.Len(t, table.Rows, 2)

	require.Equal(t, []string{"Ann", "ann@example.com", ""}, table.Rows[0].Cells)
	require.Equal(t, "555-1234", table.Rows[1].Get("Phone"))
	require.Equal(t, "555-1234", table.Rows[1].Get("phone"), "column lookup falls back to case-insensitive")
	require.Equal(t, map[string]string{"Name": "Bob", "Email": "bob@example.com", "Phone": "555-1234"}, table.Rows[1].Map())
	require.Equal(t, 2, table.Rows[1].Number)
}

func TestCSV_EmptyInputIsNotAnError(t *testing.T) {
	for _, data := range []string{"", "\n\n", "  \r\n \n"} {
		table, err := CSVParser{}.Parse([]byte(data))
		require.NoError(t, err)
		require.Empty(t, table.Headers)
		require.Empty(t, table.Rows)
	}
}

func TestCSV_HeaderOnly(t *testing.T) {
	table, err := CSVParser{}.Parse([]byte("Name,Email\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"Name", "Email"}, table.Headers)
	require.Empty(t, table.Rows)
}

func TestCSV_Windows1252Fallback(t *testing.T) {
	data := []byte("Name,City\nJos\xe9,Montr\xe9al\n")
	table, err := CSVParser{}.Parse(data)
	require.NoError(t, err)
	require.Equal(t, "José", table.Rows[0].Get("Name"))
	require.Equal(t, "Montréal", table.Rows[0].Get("City"))
}

func TestParse_BinaryGarbageIsParseError(t *testing.T) {
	garbage := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 'I', 'H', 'D', 'R'}
	for _, format := range []importbatch.Format{importbatch.FormatCSV, importbatch.FormatLedger} {
		_, err := Parse(garbage, format)
		var parseErr *importerrs.ParseError
		require.Truef(t, errors.As(err, &parseErr), "format %s: got %v", format, err)
	}
}

func TestParse_UnknownFormat(t *testing.T) {
	_, err := Parse([]byte("a,b\n1,2\n"), importbatch.Format("xlsx"))
	var parseErr *importerrs.ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestLedger_HeaderMarkerAndTransactionFilter(t *testing.T) {
	data := "!TRNS\tTRNSTYPE\tDATE\tAMOUNT\n" +
		"TRNS\tINVOICE\t01/02/2024\t100.00\n" +
		"SPL\tINVOICE\t01/02/2024\t-100.00\n" +
		"ENDTRNS\n" +
		"\n" +
		"CUST\tInvoice\t01/05/2024\t250.00\n" +
		"CUST\tShort\n"

	table, err := LedgerParser{}.Parse([]byte(data))
	require.NoError(t, err)
	require.Equal(t, []string{"TRNS", "TRNSTYPE", "DATE", "AMOUNT"}, table.Headers)
	require.Len(t, table.Rows, 2)
	require.Equal(t, "250.00", table.Rows[0].Get("AMOUNT"))
	require.Equal(t, 1, table.Rows[0].Number)
	require.Equal(t, "Short", table.Rows[1].Get("TRNSTYPE"))
	require.Equal(t, "", table.Rows[1].Get("AMOUNT"), "short lines pad missing trailing columns")
}

func TestLedger_CustomerList(t *testing.T) {
	data := "!HDR\tPROD\tVER\n" +
		"!CUST\tNAME\tEMAIL\tPHONE1\n" +
		"CUST\t\"Lee, Ann\"\tann@example.com\t555-0100\r\n" +
		"CUST\tBob Ray\t\t555-0101\r\n"
	table, err := LedgerParser{}.Parse([]byte(data))
	require.NoError(t, err)
	require.Equal(t, []string{"HDR", "PROD", "VER"}, table.Headers)
	require.Len(t, table.Rows, 2)
	require.Equal(t, "Lee, Ann", table.Rows[0].Get("PROD"))
}

func TestLedger_FallsBackToCSVWithoutMarker(t *testing.T) {
	data := "Name,Email\nAnn,ann@example.com\n"
	table, err := LedgerParser{}.Parse([]byte(data))
	require.NoError(t, err)
	require.Equal(t, []string{"Name", "Email"}, table.Headers)
	require.Equal(t, "ann@example.com", table.Rows[0].Get("Email"))
}

func TestRow_Snapshot(t *testing.T) {
	table, err := CSVParser{}.Parse([]byte("Name,Email\nAnn,ann@example.com\n"))
	require.NoError(t, err)

	snap := table.Rows[0].Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, "Name", snap[0].Column)
	require.Equal(t, "Ann", snap[0].Value)
	require.JSONEq(t, `[{"column":"Name","value":"Ann"},{"column":"Email","value":"ann@example.com"}]`, string(snap.JSON()))
}

func TestCSV_WhitespaceAroundQuotedFields(t *testing.T) {
	data := "Name,Note,City\n\"Smith, J\" ,\"a, b\" , Austin\n  \"Lee\"\t, \"said \"\"hi\"\"\" ,Boise\r\n"
	table, err := CSVParser{}.Parse([]byte(data))
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	require.Equal(t, []string{"Smith, J", "a, b", "Austin"}, table.Rows[0].Cells)
	require.Equal(t, []string{"Lee", `said "hi"`, "Boise"}, table.Rows[1].Cells)
}

func TestCSV_QuotedFieldSpansLines(t *testing.T) {
	data := "Name,Address,City\n\"Ann\",\"12 Main St\r\nSuite 4\",Austin\nBob,,Boise\n"
	table, err := CSVParser{}.Parse([]byte(data))
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	require.Equal(t, "12 Main St\nSuite 4", table.Rows[0].Get("Address"))
	require.Equal(t, "Bob", table.Rows[1].Get("Name"))
	require.Equal(t, 2, table.Rows[1].Number)
}

func TestCSV_UnclosedQuoteIsParseError(t *testing.T) {
	_, err := CSVParser{}.Parse([]byte("Name,Email\nAnn,ann@example.com\n\"Bob,bob@example.com\n"))
	var parseErr *importerrs.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Contains(t, parseErr.Error(), "line 3")
}

func TestCSV_RowOfEmptyFieldsIsKept(t *testing.T) {
	table, err := CSVParser{}.Parse([]byte("Name,Email\n,\n   \nBob,bob@example.com\n"))
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	require.Equal(t, []string{"", ""}, table.Rows[0].Cells)
	require.Equal(t, 1, table.Rows[0].Number)
	require.Equal(t, "Bob", table.Rows[1].Get("Name"))
	require.Equal(t, 2, table.Rows[1].Number)
}

func TestCSV_HeadersThatLookLikeMagicNumbers(t *testing.T) {
	for _, data := range []string{"BMI,Weight\n1,2\n", "ID3,Name\n1,Ann\n", "MZ,Name\n1,Ann\n", "PK,Name\n1,Ann\n"} {
		table, err := CSVParser{}.Parse([]byte(data))
		require.NoError(t, err, data)
		require.Len(t, table.Rows, 1, data)
	}
}

func TestParse_ControlHeavyUTF8IsParseError(t *testing.T) {
	data := []byte("a,b\n\x01\x02\x03\x04,\x05\x06\x07\x08\n")
	_, err := CSVParser{}.Parse(data)
	var parseErr *importerrs.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestLedger_RowOfEmptyCellsIsKept(t *testing.T) {
	data := "!CUST\tNAME\tEMAIL\n\t\t\nCUST\tAnn\tann@example.com\n\n"
	table, err := LedgerParser{}.Parse([]byte(data))
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	require.Equal(t, []string{"", "", ""}, table.Rows[0].Cells)
	require.Equal(t, "Ann", table.Rows[1].Get("NAME"))
}
