package importbatch

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var (
	ErrBatchNotFound  = errors.New("import batch not found")
	ErrStatusConflict = errors.New("import batch status changed concurrently")
)

type FindParams struct {
	IncludeUndone bool
	EntityType    string
	Limit         int
	Offset        int
}

type Repository interface {
	Create(ctx context.Context, b *ImportBatch) error
	GetByID(ctx context.Context, id uuid.UUID) (*ImportBatch, error)
	List(ctx context.Context, params *FindParams) ([]*ImportBatch, error)
	// Update persists counts, status and timestamps of a batch that is not undone.
	Update(ctx context.Context, b *ImportBatch) error
	// Transition sets status to `to` only if the stored status is one of from, returning
	// ErrStatusConflict otherwise. It is the lock that serialises competing undo calls.
	Transition(ctx context.Context, id uuid.UUID, from []Status, to Status, at time.Time) error
}
