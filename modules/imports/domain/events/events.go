// Package events defines the import lifecycle events published on the event bus and the outbox.
package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	TopicBatchFinalizedV1 = "import.batch.finalized.v1"
	TopicBatchUndoneV1    = "import.batch.undone.v1"
	EventVersionV1        = 1
)

// BatchProgressed is published in-process after every chunk.
type BatchProgressed struct {
	TenantID     uuid.UUID
	BatchID      uuid.UUID
	Processed    int
	Total        int
	SuccessCount int
	ErrorCount   int
}

type BatchFinalized struct {
	EventID      uuid.UUID `json:"event_id"`
	EventVersion int       `json:"event_version"`
	TenantID     uuid.UUID `json:"tenant_id"`
	BatchID      uuid.UUID `json:"batch_id"`
	EntityType   string    `json:"entity_type"`
	Status       string    `json:"status"`
	TotalRows    int       `json:"total_rows"`
	SuccessCount int       `json:"success_count"`
	ErrorCount   int       `json:"error_count"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type BatchUndone struct {
	EventID       uuid.UUID `json:"event_id"`
	EventVersion  int       `json:"event_version"`
	TenantID      uuid.UUID `json:"tenant_id"`
	BatchID       uuid.UUID `json:"batch_id"`
	EntityType    string    `json:"entity_type"`
	RecordsVoided int64     `json:"records_voided"`
	OccurredAt    time.Time `json:"occurred_at"`
}
