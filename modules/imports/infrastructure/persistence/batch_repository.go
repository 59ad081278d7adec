package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/iota-import/modules/imports/domain/aggregates/importbatch"
	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
)

const batchColumns = `id, tenant_id, entity_type, source_file_name, source_format, column_mapping,
	total_rows, success_count, error_count, status, started_at, completed_at, undone_at, created_at`

type BatchRepository struct{}

func NewBatchRepository() importbatch.Repository {
	return &BatchRepository{}
}

func (r *BatchRepository) Create(ctx context.Context, b *importbatch.ImportBatch) error {
	_, tx, err := tenantAndTx(ctx)
	if err != nil {
		return err
	}
	mapping, err := json.Marshal(b.ColumnMapping())
	if err != nil {
		return errors.Wrap(err, "encode column mapping")
	}
	_, err = tx.Exec(ctx, `INSERT INTO import_batches (`+batchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		b.ID(), b.TenantID(), string(b.EntityType()), b.SourceFileName(), string(b.SourceFormat()), mapping,
		b.TotalRows(), b.SuccessCount(), b.ErrorCount(), string(b.Status()),
		b.StartedAt(), b.CompletedAt(), b.UndoneAt(), b.CreatedAt(),
	)
	if err != nil {
		return errors.Wrap(err, "insert import batch")
	}
	return nil
}

func (r *BatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*importbatch.ImportBatch, error) {
	tenantID, tx, err := tenantAndTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM import_batches WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	b, err := scanBatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, importbatch.ErrBatchNotFound
	}
	return b, err
}

func (r *BatchRepository) List(ctx context.Context, params *importbatch.FindParams) ([]*importbatch.ImportBatch, error) {
	if params == nil {
		params = &importbatch.FindParams{}
	}
	tenantID, tx, err := tenantAndTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT `+batchColumns+` FROM import_batches
		WHERE tenant_id = $1
		  AND ($2 OR status <> 'undone')
		  AND ($3 = '' OR entity_type = $3)
		ORDER BY created_at DESC, id
		LIMIT NULLIF($4::int, 0) OFFSET $5`,
		tenantID, params.IncludeUndone, params.EntityType, params.Limit, max(params.Offset, 0),
	)
	if err != nil {
		return nil, errors.Wrap(err, "list import batches")
	}
	defer rows.Close()

	var out []*importbatch.ImportBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BatchRepository) Update(ctx context.Context, b *importbatch.ImportBatch) error {
	tenantID, tx, err := tenantAndTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `UPDATE import_batches
		SET total_rows = $3, success_count = $4, error_count = $5, status = $6,
		    started_at = $7, completed_at = $8
		WHERE id = $1 AND tenant_id = $2 AND status IN ('pending', 'processing')`,
		b.ID(), tenantID, b.TotalRows(), b.SuccessCount(), b.ErrorCount(), string(b.Status()),
		b.StartedAt(), b.CompletedAt(),
	)
	if err != nil {
		return errors.Wrap(err, "update import batch")
	}
	if tag.RowsAffected() == 0 {
		return importbatch.ErrStatusConflict
	}
	return nil
}

func (r *BatchRepository) Transition(
	ctx context.Context,
	id uuid.UUID,
	from []importbatch.Status,
	to importbatch.Status,
	at time.Time,
) error {
	tenantID, tx, err := tenantAndTx(ctx)
	if err != nil {
		return err
	}
	fromValues := make([]string, 0, len(from))
	for _, s := range from {
		fromValues = append(fromValues, string(s))
	}
	tag, err := tx.Exec(ctx, `UPDATE import_batches
		SET status = $3,
		    undone_at = CASE WHEN $3 = 'undone' THEN $5 ELSE undone_at END,
		    completed_at = CASE WHEN $3 IN ('completed', 'failed') THEN $5 ELSE completed_at END,
		    started_at = CASE WHEN $3 = 'processing' THEN $5 ELSE started_at END
		WHERE id = $1 AND tenant_id = $2 AND status = ANY($4)`,
		id, tenantID, string(to), fromValues, at,
	)
	if err != nil {
		return errors.Wrap(err, "transition import batch")
	}
	if tag.RowsAffected() == 0 {
		return importbatch.ErrStatusConflict
	}
	return nil
}

func scanBatch(row pgx.Row) (*importbatch.ImportBatch, error) {
	var (
		id, tenantID                     uuid.UUID
		entityType, fileName, format     string
		mappingRaw                       []byte
		total, success, failed           int
		status                           string
		startedAt, completedAt, undoneAt *time.Time
		createdAt                        time.Time
	)
	if err := row.Scan(
		&id, &tenantID, &entityType, &fileName, &format, &mappingRaw,
		&total, &success, &failed, &status, &startedAt, &completedAt, &undoneAt, &createdAt,
	); err != nil {
		return nil, err
	}
	var mapping []importbatch.ColumnMapping
	if len(mappingRaw) > 0 {
		if err := json.Unmarshal(mappingRaw, &mapping); err != nil {
			return nil, errors.Wrap(err, "decode column mapping")
		}
	}
	return importbatch.Hydrate(
		id, tenantID, schema.EntityType(entityType), fileName, importbatch.Format(format), mapping,
		total, success, failed, importbatch.Status(status), startedAt, completedAt, undoneAt, createdAt,
	), nil
}
