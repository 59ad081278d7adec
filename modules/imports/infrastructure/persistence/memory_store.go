package persistence

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/iota-import/modules/imports/domain/aggregates/importbatch"
	"github.com/iota-uz/iota-import/modules/imports/domain/entities/importerror"
	"github.com/iota-uz/iota-import/modules/imports/domain/entities/record"
	"github.com/iota-uz/iota-import/modules/imports/domain/importerrs"
	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
	"github.com/iota-uz/iota-import/pkg/composables"
	"github.com/iota-uz/iota-import/pkg/outbox"
)

// RejectFunc lets a MemoryStore refuse a record the way a database constraint would.
type RejectFunc func(s *schema.Schema, rec *record.Record) error

type memoryState struct {
	batches map[uuid.UUID]*importbatch.ImportBatch
	errors  map[uuid.UUID][]*importerror.ImportError
	records map[schema.EntityType][]record.Record
	outbox  []outbox.Message
}

// memoryTx collects the inverse of every write made under it so a rollback reverts only
// its own changes.
type memoryTx struct {
	undo []func(*memoryState)
}

type memoryTxKey struct{}

func txFrom(ctx context.Context) *memoryTx {
	tx, _ := ctx.Value(memoryTxKey{}).(*memoryTx)
	return tx
}

// logUndo registers how to revert a write made under ctx. Callers hold m.mu.
func logUndo(ctx context.Context, fn func(*memoryState)) {
	if tx := txFrom(ctx); tx != nil {
		tx.undo = append(tx.undo, fn)
	}
}

// MemoryStore keeps every repository in process memory. It backs dry runs and tests.
// Transactions are serialised and roll back by replaying their undo log, so writes made
// outside a transaction survive a concurrent rollback.
type MemoryStore struct {
	txMu sync.Mutex

	mu     sync.RWMutex
	state  *memoryState
	reject RejectFunc
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		batches: map[uuid.UUID]*importbatch.ImportBatch{},
		errors:  map[uuid.UUID][]*importerror.ImportError{},
		records: map[schema.EntityType][]record.Record{},
	}}
}

func (m *MemoryStore) SetReject(fn RejectFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reject = fn
}

func (m *MemoryStore) Batches() importbatch.Repository { return &memoryBatches{m} }
func (m *MemoryStore) Errors() importerror.Repository  { return &memoryErrors{m} }
func (m *MemoryStore) Records() record.Repository      { return &memoryRecords{m} }

// InTx runs fn while holding the store's transaction lock. Nested calls act as savepoints.
func (m *MemoryStore) InTx(ctx context.Context, fn func(context.Context) error) error {
	parent := txFrom(ctx)
	if parent == nil {
		m.txMu.Lock()
		defer m.txMu.Unlock()
	}
	tx := &memoryTx{}
	if err := fn(context.WithValue(ctx, memoryTxKey{}, tx)); err != nil {
		m.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i](m.state)
		}
		m.mu.Unlock()
		return err
	}
	if parent != nil {
		parent.undo = append(parent.undo, tx.undo...)
	}
	return nil
}

// Enqueue records an outbox message; it commits or rolls back with the surrounding InTx.
func (m *MemoryStore) Enqueue(ctx context.Context, msg outbox.Message) (int64, error) {
	if _, err := composables.UseTenantID(ctx); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.state.outbox {
		if existing.EventID == msg.EventID {
			return int64(i + 1), nil
		}
	}
	m.state.outbox = append(m.state.outbox, msg)
	logUndo(ctx, func(st *memoryState) {
		st.outbox = slices.DeleteFunc(st.outbox, func(o outbox.Message) bool { return o.EventID == msg.EventID })
	})
	return int64(len(m.state.outbox)), nil
}

// Outbox returns the enqueued messages in order.
func (m *MemoryStore) Outbox() []outbox.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.state.outbox)
}

// AllRecords returns copies of every stored record of entityType, tombstoned ones included.
func (m *MemoryStore) AllRecords(entityType schema.EntityType) []record.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.state.records[entityType])
}

func cloneBatch(b *importbatch.ImportBatch) *importbatch.ImportBatch {
	return importbatch.Hydrate(
		b.ID(), b.TenantID(), b.EntityType(), b.SourceFileName(), b.SourceFormat(), b.ColumnMapping(),
		b.TotalRows(), b.SuccessCount(), b.ErrorCount(), b.Status(),
		b.StartedAt(), b.CompletedAt(), b.UndoneAt(), b.CreatedAt(),
	)
}

type memoryBatches struct{ m *MemoryStore }

func (r *memoryBatches) Create(ctx context.Context, b *importbatch.ImportBatch) error {
	if _, err := composables.UseTenantID(ctx); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.state.batches[b.ID()]; ok {
		return fmt.Errorf("import batch %s already exists", b.ID())
	}
	id := b.ID()
	r.m.state.batches[id] = cloneBatch(b)
	logUndo(ctx, func(st *memoryState) { delete(st.batches, id) })
	return nil
}

func (r *memoryBatches) GetByID(ctx context.Context, id uuid.UUID) (*importbatch.ImportBatch, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	b, ok := r.m.state.batches[id]
	if !ok || b.TenantID() != tenantID {
		return nil, importbatch.ErrBatchNotFound
	}
	return cloneBatch(b), nil
}

func (r *memoryBatches) List(ctx context.Context, params *importbatch.FindParams) ([]*importbatch.ImportBatch, error) {
	if params == nil {
		params = &importbatch.FindParams{}
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	r.m.mu.RLock()
	var out []*importbatch.ImportBatch
	for _, b := range r.m.state.batches {
		if b.TenantID() != tenantID {
			continue
		}
		if !params.IncludeUndone && b.Status() == importbatch.StatusUndone {
			continue
		}
		if params.EntityType != "" && string(b.EntityType()) != params.EntityType {
			continue
		}
		out = append(out, cloneBatch(b))
	}
	r.m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].CreatedAt().After(out[j].CreatedAt())
		}
		return out[i].ID().String() < out[j].ID().String()
	})
	if params.Offset > 0 {
		if params.Offset >= len(out) {
			return nil, nil
		}
		out = out[params.Offset:]
	}
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (r *memoryBatches) Update(ctx context.Context, b *importbatch.ImportBatch) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.state.batches[b.ID()]
	if !ok || stored.TenantID() != tenantID {
		return importbatch.ErrBatchNotFound
	}
	if stored.Status() != importbatch.StatusPending && stored.Status() != importbatch.StatusProcessing {
		return importbatch.ErrStatusConflict
	}
	r.m.state.batches[b.ID()] = cloneBatch(b)
	restoreBatch(ctx, stored)
	return nil
}

func (r *memoryBatches) Transition(
	ctx context.Context,
	id uuid.UUID,
	from []importbatch.Status,
	to importbatch.Status,
	at time.Time,
) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.state.batches[id]
	if !ok || stored.TenantID() != tenantID {
		return importbatch.ErrBatchNotFound
	}
	if !slices.Contains(from, stored.Status()) {
		return importbatch.ErrStatusConflict
	}
	startedAt, completedAt, undoneAt := stored.StartedAt(), stored.CompletedAt(), stored.UndoneAt()
	switch to {
	case importbatch.StatusProcessing:
		startedAt = &at
	case importbatch.StatusCompleted, importbatch.StatusFailed:
		completedAt = &at
	case importbatch.StatusUndone:
		undoneAt = &at
	}
	r.m.state.batches[id] = importbatch.Hydrate(
		stored.ID(), stored.TenantID(), stored.EntityType(), stored.SourceFileName(), stored.SourceFormat(),
		stored.ColumnMapping(), stored.TotalRows(), stored.SuccessCount(), stored.ErrorCount(), to,
		startedAt, completedAt, undoneAt, stored.CreatedAt(),
	)
	restoreBatch(ctx, stored)
	return nil
}

// restoreBatch logs the previous version of a batch. Stored batches are never mutated in place.
func restoreBatch(ctx context.Context, prev *importbatch.ImportBatch) {
	logUndo(ctx, func(st *memoryState) { st.batches[prev.ID()] = prev })
}

type memoryErrors struct{ m *MemoryStore }

func (r *memoryErrors) CreateMany(ctx context.Context, errs []*importerror.ImportError) error {
	if _, err := composables.UseTenantID(ctx); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	written := make(map[uuid.UUID]struct{}, len(errs))
	for _, e := range errs {
		r.m.state.errors[e.BatchID()] = append(r.m.state.errors[e.BatchID()], e)
		written[e.ID()] = struct{}{}
	}
	logUndo(ctx, func(st *memoryState) {
		for batchID, list := range st.errors {
			st.errors[batchID] = slices.DeleteFunc(list, func(e *importerror.ImportError) bool {
				_, ok := written[e.ID()]
				return ok
			})
		}
	})
	return nil
}

func (r *memoryErrors) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*importerror.ImportError, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	if b, ok := r.m.state.batches[batchID]; !ok || b.TenantID() != tenantID {
		return nil, nil
	}
	out := slices.Clone(r.m.state.errors[batchID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].RowNumber() < out[j].RowNumber() })
	return out, nil
}

type memoryRecords struct{ m *MemoryStore }

func (r *memoryRecords) check(s *schema.Schema, rec *record.Record) error {
	if r.m.reject == nil {
		return nil
	}
	if err := r.m.reject(s, rec); err != nil {
		if _, ok := err.(importerrs.RowError); ok {
			return err
		}
		return &importerrs.InsertError{Err: err}
	}
	return nil
}

func (r *memoryRecords) InsertMany(ctx context.Context, s *schema.Schema, recs []*record.Record) error {
	if _, err := composables.UseTenantID(ctx); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, rec := range recs {
		if err := r.check(s, rec); err != nil {
			return err
		}
	}
	written := make(map[uuid.UUID]struct{}, len(recs))
	for _, rec := range recs {
		r.m.state.records[s.EntityType] = append(r.m.state.records[s.EntityType], *rec)
		written[rec.ID] = struct{}{}
	}
	entityType := s.EntityType
	logUndo(ctx, func(st *memoryState) {
		st.records[entityType] = slices.DeleteFunc(st.records[entityType], func(rec record.Record) bool {
			_, ok := written[rec.ID]
			return ok
		})
	})
	return nil
}

func (r *memoryRecords) Insert(ctx context.Context, s *schema.Schema, rec *record.Record) error {
	return r.InsertMany(ctx, s, []*record.Record{rec})
}

func (r *memoryRecords) FindExisting(ctx context.Context, s *schema.Schema, key, value string) (uuid.UUID, bool, error) {
	f, ok := s.Field(key)
	if !ok {
		return uuid.Nil, false, fmt.Errorf("field %q is not part of %s", key, s.EntityType)
	}
	want := f.NormalizeMatch(value)
	if want == "" {
		return uuid.Nil, false, nil
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return uuid.Nil, false, err
	}
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, rec := range r.m.state.records[s.EntityType] {
		if rec.TenantID != tenantID || rec.DeletedAt != nil {
			continue
		}
		v, ok := rec.Values[key].(string)
		if ok && f.NormalizeMatch(v) == want {
			return rec.ID, true, nil
		}
	}
	return uuid.Nil, false, nil
}

func (r *memoryRecords) TombstoneByBatch(ctx context.Context, s *schema.Schema, batchID uuid.UUID, at time.Time) (int64, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	recs := r.m.state.records[s.EntityType]
	tombstoned := make(map[uuid.UUID]struct{})
	for i := range recs {
		rec := &recs[i]
		if rec.TenantID != tenantID || rec.DeletedAt != nil || rec.ImportBatchID == nil || *rec.ImportBatchID != batchID {
			continue
		}
		deletedAt := at
		rec.DeletedAt = &deletedAt
		tombstoned[rec.ID] = struct{}{}
	}
	entityType := s.EntityType
	logUndo(ctx, func(st *memoryState) {
		for i := range st.records[entityType] {
			if _, ok := tombstoned[st.records[entityType][i].ID]; ok {
				st.records[entityType][i].DeletedAt = nil
			}
		}
	})
	return int64(len(tombstoned)), nil
}

func (r *memoryRecords) CountByBatch(ctx context.Context, s *schema.Schema, batchID uuid.UUID, includeDeleted bool) (int64, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var n int64
	for _, rec := range r.m.state.records[s.EntityType] {
		if rec.TenantID != tenantID || rec.ImportBatchID == nil || *rec.ImportBatchID != batchID {
			continue
		}
		if rec.DeletedAt != nil && !includeDeleted {
			continue
		}
		n++
	}
	return n, nil
}
