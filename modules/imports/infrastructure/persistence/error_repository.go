package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/iota-import/modules/imports/domain/entities/importerror"
	"github.com/iota-uz/iota-import/modules/imports/domain/importerrs"
)

var importErrorColumns = []string{"id", "batch_id", "row_number", "row_data", "error_message", "field_name", "kind", "created_at"}

type ErrorRepository struct{}

func NewErrorRepository() importerror.Repository {
	return &ErrorRepository{}
}

// CreateMany streams errors with COPY; callers bound the slice size.
func (r *ErrorRepository) CreateMany(ctx context.Context, errs []*importerror.ImportError) error {
	if len(errs) == 0 {
		return nil
	}
	_, tx, err := tenantAndTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"import_errors"}, importErrorColumns,
		pgx.CopyFromSlice(len(errs), func(i int) ([]any, error) {
			e := errs[i]
			return []any{
				e.ID(), e.BatchID(), e.RowNumber(), e.RowData().JSON(), e.Message(),
				e.FieldName(), string(e.Kind()), e.CreatedAt(),
			}, nil
		}),
	)
	if err != nil {
		return errors.Wrap(err, "copy import errors")
	}
	return nil
}

func (r *ErrorRepository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*importerror.ImportError, error) {
	tenantID, tx, err := tenantAndTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT e.id, e.batch_id, e.row_number, e.row_data, e.error_message, e.field_name, e.kind, e.created_at
		FROM import_errors e
		JOIN import_batches b ON b.id = e.batch_id
		WHERE e.batch_id = $1 AND b.tenant_id = $2
		ORDER BY e.row_number, e.created_at`, batchID, tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "list import errors")
	}
	defer rows.Close()

	var out []*importerror.ImportError
	for rows.Next() {
		var (
			id, bID   uuid.UUID
			rowNumber int
			rowRaw    []byte
			message   string
			field     *string
			kind      string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &bID, &rowNumber, &rowRaw, &message, &field, &kind, &createdAt); err != nil {
			return nil, err
		}
		data, err := importerror.ParseRowData(rowRaw)
		if err != nil {
			return nil, errors.Wrap(err, "decode row data")
		}
		out = append(out, importerror.Hydrate(id, bID, rowNumber, data, message, field, importerrs.Kind(kind), createdAt))
	}
	return out, rows.Err()
}
