package persistence

import (
	"context"

	"github.com/iota-uz/iota-import/modules/imports/domain/aggregates/importbatch"
	"github.com/iota-uz/iota-import/modules/imports/domain/entities/importerror"
	"github.com/iota-uz/iota-import/modules/imports/domain/entities/record"
	"github.com/iota-uz/iota-import/pkg/composables"
)

// PgStorage binds the Postgres repositories to the pool or transaction carried by ctx.
type PgStorage struct {
	batches importbatch.Repository
	errors  importerror.Repository
	records record.Repository
}

func NewPgStorage() *PgStorage {
	return &PgStorage{
		batches: NewBatchRepository(),
		errors:  NewErrorRepository(),
		records: NewRecordRepository(),
	}
}

func (s *PgStorage) Batches() importbatch.Repository { return s.batches }
func (s *PgStorage) Errors() importerror.Repository  { return s.errors }
func (s *PgStorage) Records() record.Repository      { return s.records }

func (s *PgStorage) InTx(ctx context.Context, fn func(context.Context) error) error {
	return composables.InTx(ctx, fn)
}
