package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/iota-import/modules/imports/domain/entities/record"
	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
	"github.com/iota-uz/iota-import/pkg/composables"
)

type RecordRepository struct{}

func NewRecordRepository() record.Repository {
	return &RecordRepository{}
}

// InsertMany sends every insert in one round trip inside a single transaction (a savepoint
// when ctx already carries one), so a failing row rolls the whole set back.
func (r *RecordRepository) InsertMany(ctx context.Context, s *schema.Schema, recs []*record.Record) error {
	if len(recs) == 0 {
		return nil
	}
	return composables.InTx(ctx, func(txCtx context.Context) error {
		_, tx, err := tenantAndTx(txCtx)
		if err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, rec := range recs {
			q, args := insertStatement(s, rec)
			batch.Queue(q, args...)
		}
		br := tx.SendBatch(txCtx, batch)
		for range recs {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return insertError(s, err)
			}
		}
		return br.Close()
	})
}

func (r *RecordRepository) Insert(ctx context.Context, s *schema.Schema, rec *record.Record) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		_, tx, err := tenantAndTx(txCtx)
		if err != nil {
			return err
		}
		q, args := insertStatement(s, rec)
		if _, err := tx.Exec(txCtx, q, args...); err != nil {
			return insertError(s, err)
		}
		return nil
	})
}

func insertStatement(s *schema.Schema, rec *record.Record) (string, []any) {
	columns := []string{"id", "tenant_id", "import_batch_id", "created_at"}
	args := []any{rec.ID, rec.TenantID, rec.ImportBatchID, rec.CreatedAt}
	for _, f := range s.Fields {
		v, ok := rec.Values[f.Key]
		if !ok {
			continue
		}
		columns = append(columns, pgx.Identifier{f.Column}.Sanitize())
		args = append(args, toDBValue(v))
	}
	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{s.Table}.Sanitize(), strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	return q, args
}

func matchExpr(f schema.Field) string {
	col := pgx.Identifier{f.Column}.Sanitize()
	switch f.Match {
	case schema.MatchEmail:
		return "lower(" + col + ")"
	case schema.MatchPhone:
		return "regexp_replace(" + col + `, '\D', '', 'g')`
	default:
		return col
	}
}

func (r *RecordRepository) FindExisting(ctx context.Context, s *schema.Schema, key, value string) (uuid.UUID, bool, error) {
	f, ok := s.Field(key)
	if !ok {
		return uuid.Nil, false, errors.Errorf("field %q is not part of %s", key, s.EntityType)
	}
	normalized := f.NormalizeMatch(value)
	if normalized == "" {
		return uuid.Nil, false, nil
	}
	tenantID, tx, err := tenantAndTx(ctx)
	if err != nil {
		return uuid.Nil, false, err
	}
	q := fmt.Sprintf(`SELECT id FROM %s WHERE tenant_id = $1 AND deleted_at IS NULL AND %s = $2 LIMIT 1`,
		pgx.Identifier{s.Table}.Sanitize(), matchExpr(f))
	var id uuid.UUID
	err = tx.QueryRow(ctx, q, tenantID, normalized).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, errors.Wrap(err, "find existing record")
	}
	return id, true, nil
}

func (r *RecordRepository) TombstoneByBatch(ctx context.Context, s *schema.Schema, batchID uuid.UUID, at time.Time) (int64, error) {
	tenantID, tx, err := tenantAndTx(ctx)
	if err != nil {
		return 0, err
	}
	q := fmt.Sprintf(`UPDATE %s SET deleted_at = $1
		WHERE tenant_id = $2 AND import_batch_id = $3 AND deleted_at IS NULL`, pgx.Identifier{s.Table}.Sanitize())
	tag, err := tx.Exec(ctx, q, at, tenantID, batchID)
	if err != nil {
		return 0, errors.Wrap(err, "tombstone records")
	}
	return tag.RowsAffected(), nil
}

func (r *RecordRepository) CountByBatch(ctx context.Context, s *schema.Schema, batchID uuid.UUID, includeDeleted bool) (int64, error) {
	tenantID, tx, err := tenantAndTx(ctx)
	if err != nil {
		return 0, err
	}
	q := fmt.Sprintf(`SELECT count(*) FROM %s
		WHERE tenant_id = $1 AND import_batch_id = $2 AND ($3 OR deleted_at IS NULL)`, pgx.Identifier{s.Table}.Sanitize())
	var n int64
	if err := tx.QueryRow(ctx, q, tenantID, batchID, includeDeleted).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count records")
	}
	return n, nil
}
