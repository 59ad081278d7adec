package importerror

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/iota-import/modules/imports/domain/importerrs"
)

// Cell is one column of the raw source row, kept in file order.
type Cell struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

type RowData []Cell

func (d RowData) JSON() []byte {
	b, _ := json.Marshal(d)
	return b
}

func ParseRowData(raw []byte) (RowData, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var d RowData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return d, nil
}

type ImportError struct {
	id        uuid.UUID
	batchID   uuid.UUID
	rowNumber int
	rowData   RowData
	message   string
	fieldName *string
	kind      importerrs.Kind
	createdAt time.Time
}

// FromRowError snapshots a failed row. The field name is nil when the failure is not tied to one field.
func FromRowError(batchID uuid.UUID, rowNumber int, rowData RowData, err importerrs.RowError) *ImportError {
	var field *string
	if name := err.FieldName(); name != "" {
		field = &name
	}
	return &ImportError{
		id:        uuid.New(),
		batchID:   batchID,
		rowNumber: rowNumber,
		rowData:   rowData,
		message:   err.Error(),
		fieldName: field,
		kind:      err.Kind(),
		createdAt: time.Now().UTC(),
	}
}

func Hydrate(
	id, batchID uuid.UUID,
	rowNumber int,
	rowData RowData,
	message string,
	fieldName *string,
	kind importerrs.Kind,
	createdAt time.Time,
) *ImportError {
	return &ImportError{
		id:        id,
		batchID:   batchID,
		rowNumber: rowNumber,
		rowData:   rowData,
		message:   message,
		fieldName: fieldName,
		kind:      kind,
		createdAt: createdAt,
	}
}

func (e *ImportError) ID() uuid.UUID         { return e.id }
func (e *ImportError) BatchID() uuid.UUID    { return e.batchID }
func (e *ImportError) RowNumber() int        { return e.rowNumber }
func (e *ImportError) RowData() RowData      { return e.rowData }
func (e *ImportError) Message() string       { return e.message }
func (e *ImportError) FieldName() *string    { return e.fieldName }
func (e *ImportError) Kind() importerrs.Kind { return e.kind }
func (e *ImportError) CreatedAt() time.Time  { return e.createdAt }

// Repository is append-only: errors are never updated or deleted.
type Repository interface {
	CreateMany(ctx context.Context, errs []*ImportError) error
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*ImportError, error)
}
