package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/iota-import/modules/imports/domain/entities/importerror"
)

var errorExportHeader = []string{"Row", "Field", "Error"}

func exportRow(e *importerror.ImportError) []string {
	field := ""
	if f := e.FieldName(); f != nil {
		field = *f
	}
	return []string{strconv.Itoa(e.RowNumber()), field, e.Message()}
}

// ExportErrorsCSV renders the batch's errors as Row,Field,Error with standard CSV quoting.
func (s *ImportService) ExportErrorsCSV(ctx context.Context, batchID uuid.UUID) ([]byte, error) {
	errs, err := s.GetErrors(ctx, batchID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(errorExportHeader); err != nil {
		return nil, err
	}
	for _, e := range errs {
		if err := w.Write(exportRow(e)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "write csv")
	}
	return buf.Bytes(), nil
}

const errorSheet = "Errors"

// ExportErrorsXLSX renders the same table as ExportErrorsCSV into a single-sheet workbook.
func (s *ImportService) ExportErrorsXLSX(ctx context.Context, batchID uuid.UUID) ([]byte, error) {
	errs, err := s.GetErrors(ctx, batchID)
	if err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", errorSheet); err != nil {
		return nil, errors.Wrap(err, "name sheet")
	}
	header := []any{errorExportHeader[0], errorExportHeader[1], errorExportHeader[2]}
	if err := f.SetSheetRow(errorSheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, e := range errs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := exportRow(e)
		values := []any{e.RowNumber(), row[1], row[2]}
		if err := f.SetSheetRow(errorSheet, cell, &values); err != nil {
			return nil, err
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "write xlsx")
	}
	return buf.Bytes(), nil
}
