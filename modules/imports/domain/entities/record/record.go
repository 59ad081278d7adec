package record

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
)

// Values holds coerced field values keyed by target field key.
type Values map[string]any

type Record struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	ImportBatchID *uuid.UUID
	RowNumber     int
	Values        Values
	CreatedAt     time.Time
	DeletedAt     *time.Time
}

func New(tenantID, batchID uuid.UUID, rowNumber int, values Values) *Record {
	return &Record{
		ID:            uuid.New(),
		TenantID:      tenantID,
		ImportBatchID: &batchID,
		RowNumber:     rowNumber,
		Values:        values,
		CreatedAt:     time.Now().UTC(),
	}
}

// Repository stores imported records in the table named by the schema. Every method is
// scoped to the tenant carried by ctx.
type Repository interface {
	// InsertMany stores all records or none of them.
	InsertMany(ctx context.Context, s *schema.Schema, recs []*Record) error
	Insert(ctx context.Context, s *schema.Schema, rec *Record) error
	// FindExisting looks up a live record whose key field equals value.
	FindExisting(ctx context.Context, s *schema.Schema, key, value string) (uuid.UUID, bool, error)
	// TombstoneByBatch soft-deletes every live record created by batchID.
	TombstoneByBatch(ctx context.Context, s *schema.Schema, batchID uuid.UUID, at time.Time) (int64, error)
	CountByBatch(ctx context.Context, s *schema.Schema, batchID uuid.UUID, includeDeleted bool) (int64, error)
}
