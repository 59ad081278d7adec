// Package progress keeps the latest progress snapshot of running imports so that other
// processes can poll it.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/iota-import/pkg/composables"
)

var ErrNotFound = errors.New("no progress recorded for batch")

type Snapshot struct {
	BatchID      uuid.UUID `json:"batch_id"`
	Processed    int       `json:"processed"`
	Total        int       `json:"total"`
	SuccessCount int       `json:"success_count"`
	ErrorCount   int       `json:"error_count"`
	Status       string    `json:"status"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store is scoped to the tenant carried by ctx.
type Store interface {
	Save(ctx context.Context, s Snapshot) error
	Get(ctx context.Context, batchID uuid.UUID) (Snapshot, error)
}

type memoryKey struct {
	tenantID uuid.UUID
	batchID  uuid.UUID
}

type memoryEntry struct {
	snapshot  Snapshot
	expiresAt time.Time
}

type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[memoryKey]memoryEntry
}

// NewMemoryStore keeps snapshots for ttl; zero keeps them forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: map[memoryKey]memoryEntry{}}
}

func (m *MemoryStore) Save(ctx context.Context, s Snapshot) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	entry := memoryEntry{snapshot: s}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[memoryKey{tenantID, s.BatchID}] = entry
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, batchID uuid.UUID) (Snapshot, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	m.mu.RLock()
	entry, ok := m.entries[memoryKey{tenantID, batchID}]
	m.mu.RUnlock()
	if !ok || (!entry.expiresAt.IsZero() && m.now().After(entry.expiresAt)) {
		return Snapshot{}, ErrNotFound
	}
	return entry.snapshot, nil
}
