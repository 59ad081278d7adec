package importbatch

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/iota-import/modules/imports/domain/importerrs"
	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
)

var ErrCountsMismatch = errors.New("success and error counts do not add up to total rows")

// ColumnMapping pairs one source column with one target field key.
type ColumnMapping struct {
	SourceColumn string `json:"source_column"`
	TargetField  string `json:"target_field"`
}

type ImportBatch struct {
	id             uuid.UUID
	tenantID       uuid.UUID
	entityType     schema.EntityType
	sourceFileName string
	sourceFormat   Format
	columnMapping  []ColumnMapping
	totalRows      int
	successCount   int
	errorCount     int
	status         Status
	startedAt      *time.Time
	completedAt    *time.Time
	undoneAt       *time.Time
	createdAt      time.Time
}

func New(
	tenantID uuid.UUID,
	entityType schema.EntityType,
	sourceFileName string,
	sourceFormat Format,
	mapping []ColumnMapping,
) *ImportBatch {
	return &ImportBatch{
		id:             uuid.New(),
		tenantID:       tenantID,
		entityType:     entityType,
		sourceFileName: sourceFileName,
		sourceFormat:   sourceFormat,
		columnMapping:  append([]ColumnMapping(nil), mapping...),
		status:         StatusPending,
		createdAt:      time.Now().UTC(),
	}
}

func Hydrate(
	id uuid.UUID,
	tenantID uuid.UUID,
	entityType schema.EntityType,
	sourceFileName string,
	sourceFormat Format,
	mapping []ColumnMapping,
	totalRows, successCount, errorCount int,
	status Status,
	startedAt, completedAt, undoneAt *time.Time,
	createdAt time.Time,
) *ImportBatch {
	return &ImportBatch{
		id:             id,
		tenantID:       tenantID,
		entityType:     entityType,
		sourceFileName: sourceFileName,
		sourceFormat:   sourceFormat,
		columnMapping:  mapping,
		totalRows:      totalRows,
		successCount:   successCount,
		errorCount:     errorCount,
		status:         status,
		startedAt:      startedAt,
		completedAt:    completedAt,
		undoneAt:       undoneAt,
		createdAt:      createdAt,
	}
}

func (b *ImportBatch) ID() uuid.UUID                 { return b.id }
func (b *ImportBatch) TenantID() uuid.UUID           { return b.tenantID }
func (b *ImportBatch) EntityType() schema.EntityType { return b.entityType }
func (b *ImportBatch) SourceFileName() string        { return b.sourceFileName }
func (b *ImportBatch) SourceFormat() Format          { return b.sourceFormat }
func (b *ImportBatch) TotalRows() int                { return b.totalRows }
func (b *ImportBatch) SuccessCount() int             { return b.successCount }
func (b *ImportBatch) ErrorCount() int               { return b.errorCount }
func (b *ImportBatch) Status() Status                { return b.status }
func (b *ImportBatch) StartedAt() *time.Time         { return b.startedAt }
func (b *ImportBatch) CompletedAt() *time.Time       { return b.completedAt }
func (b *ImportBatch) UndoneAt() *time.Time          { return b.undoneAt }
func (b *ImportBatch) CreatedAt() time.Time          { return b.createdAt }
func (b *ImportBatch) ColumnMapping() []ColumnMapping {
	return append([]ColumnMapping(nil), b.columnMapping...)
}

func (b *ImportBatch) transition(to Status) error {
	if !CanTransition(b.status, to) {
		return &importerrs.InvalidStateError{ID: b.id.String(), From: string(b.status), To: string(to)}
	}
	b.status = to
	return nil
}

// Start moves a pending batch to processing.
func (b *ImportBatch) Start(now time.Time) error {
	if err := b.transition(StatusProcessing); err != nil {
		return err
	}
	b.startedAt = &now
	return nil
}

func (b *ImportBatch) SetTotalRows(n int) {
	b.totalRows = n
}

// RecordOutcome adds per-chunk results to the running counters.
func (b *ImportBatch) RecordOutcome(success, failed int) {
	b.successCount += success
	b.errorCount += failed
}

// Finalize closes a processing batch. It fails when nothing succeeded.
func (b *ImportBatch) Finalize(now time.Time) error {
	if b.status != StatusProcessing {
		return &importerrs.InvalidStateError{ID: b.id.String(), From: string(b.status), To: string(StatusCompleted)}
	}
	if b.successCount+b.errorCount != b.totalRows {
		return errors.Wrapf(ErrCountsMismatch, "success=%d error=%d total=%d", b.successCount, b.errorCount, b.totalRows)
	}
	to := StatusCompleted
	if b.totalRows > 0 && b.errorCount == b.totalRows {
		to = StatusFailed
	}
	if err := b.transition(to); err != nil {
		return err
	}
	b.completedAt = &now
	return nil
}

// Fail closes a processing batch that never got to read its rows.
func (b *ImportBatch) Fail(now time.Time) error {
	if b.successCount+b.errorCount != b.totalRows {
		return errors.Wrapf(ErrCountsMismatch, "success=%d error=%d total=%d", b.successCount, b.errorCount, b.totalRows)
	}
	if err := b.transition(StatusFailed); err != nil {
		return err
	}
	b.completedAt = &now
	return nil
}

func (b *ImportBatch) MarkUndone(now time.Time) error {
	if err := b.transition(StatusUndone); err != nil {
		return err
	}
	b.undoneAt = &now
	return nil
}
