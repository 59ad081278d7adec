package mappers

import (
	"time"

	"github.com/iota-uz/iota-import/modules/imports/domain/aggregates/importbatch"
	"github.com/iota-uz/iota-import/modules/imports/domain/entities/importerror"
	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
	"github.com/iota-uz/iota-import/modules/imports/presentation/viewmodels"
	"github.com/iota-uz/iota-import/modules/imports/services"
)

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func ColumnMappingsToViewModel(mapping []importbatch.ColumnMapping) []viewmodels.ColumnMapping {
	out := make([]viewmodels.ColumnMapping, 0, len(mapping))
	for _, m := range mapping {
		out = append(out, viewmodels.ColumnMapping{SourceColumn: m.SourceColumn, TargetField: m.TargetField})
	}
	return out
}

func ColumnMappingsFromViewModel(mapping []viewmodels.ColumnMapping) []importbatch.ColumnMapping {
	out := make([]importbatch.ColumnMapping, 0, len(mapping))
	for _, m := range mapping {
		out = append(out, importbatch.ColumnMapping{SourceColumn: m.SourceColumn, TargetField: m.TargetField})
	}
	return out
}

func ImportBatchToViewModel(b *importbatch.ImportBatch) *viewmodels.ImportBatch {
	if b == nil {
		return nil
	}
	createdAt := b.CreatedAt()
	return &viewmodels.ImportBatch{
		ID:             b.ID().String(),
		EntityType:     string(b.EntityType()),
		SourceFileName: b.SourceFileName(),
		SourceFormat:   string(b.SourceFormat()),
		ColumnMapping:  ColumnMappingsToViewModel(b.ColumnMapping()),
		TotalRows:      b.TotalRows(),
		SuccessCount:   b.SuccessCount(),
		ErrorCount:     b.ErrorCount(),
		Status:         string(b.Status()),
		StartedAt:      formatTime(b.StartedAt()),
		CompletedAt:    formatTime(b.CompletedAt()),
		UndoneAt:       formatTime(b.UndoneAt()),
		CreatedAt:      formatTime(&createdAt),
	}
}

func ImportErrorToViewModel(e *importerror.ImportError) *viewmodels.ImportError {
	if e == nil {
		return nil
	}
	cells := make([]viewmodels.Cell, 0, len(e.RowData()))
	for _, c := range e.RowData() {
		cells = append(cells, viewmodels.Cell{Column: c.Column, Value: c.Value})
	}
	return &viewmodels.ImportError{
		ID:           e.ID().String(),
		RowNumber:    e.RowNumber(),
		FieldName:    e.FieldName(),
		ErrorMessage: e.Message(),
		Kind:         string(e.Kind()),
		RowData:      cells,
	}
}

func RunResultToViewModel(r *services.RunResult) *viewmodels.RunResult {
	if r == nil {
		return nil
	}
	return &viewmodels.RunResult{
		BatchID:      r.BatchID.String(),
		TotalRows:    r.TotalRows,
		SuccessCount: r.SuccessCount,
		ErrorCount:   r.ErrorCount,
		Status:       string(r.Status),
	}
}

func SchemaToViewModel(s *schema.Schema) *viewmodels.Schema {
	fields := make([]viewmodels.Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		fields = append(fields, viewmodels.Field{
			Key:      f.Key,
			Label:    f.Label,
			Required: f.Required,
			Type:     string(f.Coercion),
			Merge:    f.Merge,
			Aliases:  f.Aliases,
		})
	}
	return &viewmodels.Schema{
		EntityType:     string(s.EntityType),
		Label:          s.Label,
		DedupeEligible: s.DedupeEligible,
		DedupeKeys:     s.DedupeKeys,
		Fields:         fields,
	}
}
