package services

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/iota-import/modules/imports/domain/aggregates/importbatch"
	"github.com/iota-uz/iota-import/modules/imports/domain/entities/importerror"
	"github.com/iota-uz/iota-import/modules/imports/domain/importerrs"
	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
	"github.com/iota-uz/iota-import/modules/imports/infrastructure/progress"
)

type ListParams struct {
	IncludeUndone bool
	EntityType    string
	Limit         int
	Offset        int
}

// ListBatches returns the tenant's batches, newest first. Undone batches are hidden unless asked for.
func (s *ImportService) ListBatches(ctx context.Context, params ListParams) ([]*importbatch.ImportBatch, error) {
	return s.store.Batches().List(ctx, &importbatch.FindParams{
		IncludeUndone: params.IncludeUndone,
		EntityType:    params.EntityType,
		Limit:         params.Limit,
		Offset:        params.Offset,
	})
}

func (s *ImportService) GetBatch(ctx context.Context, id uuid.UUID) (*importbatch.ImportBatch, error) {
	b, err := s.store.Batches().GetByID(ctx, id)
	if errors.Is(err, importbatch.ErrBatchNotFound) {
		return nil, &importerrs.NotFoundError{Resource: "import batch", ID: id.String()}
	}
	return b, err
}

// GetErrors lists the batch's row errors ordered by row number.
func (s *ImportService) GetErrors(ctx context.Context, batchID uuid.UUID) ([]*importerror.ImportError, error) {
	if _, err := s.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	return s.store.Errors().ListByBatch(ctx, batchID)
}

// Progress returns the live snapshot of a running batch, or one derived from the stored
// counters once the snapshot has expired.
func (s *ImportService) Progress(ctx context.Context, batchID uuid.UUID) (progress.Snapshot, error) {
	if s.progress != nil {
		snap, err := s.progress.Get(ctx, batchID)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, progress.ErrNotFound) {
			return progress.Snapshot{}, err
		}
	}
	b, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return progress.Snapshot{}, err
	}
	return progress.Snapshot{
		BatchID:      b.ID(),
		Processed:    b.SuccessCount() + b.ErrorCount(),
		Total:        b.TotalRows(),
		SuccessCount: b.SuccessCount(),
		ErrorCount:   b.ErrorCount(),
		Status:       string(b.Status()),
		UpdatedAt:    b.CreatedAt(),
	}, nil
}

func (s *ImportService) Schemas() []*schema.Schema {
	types := s.registry.EntityTypes()
	out := make([]*schema.Schema, 0, len(types))
	for _, et := range types {
		if sch, err := s.registry.Get(et); err == nil {
			out = append(out, sch)
		}
	}
	return out
}
