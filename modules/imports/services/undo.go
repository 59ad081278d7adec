package services

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/iota-uz/iota-import/modules/imports/domain/aggregates/importbatch"
	"github.com/iota-uz/iota-import/modules/imports/domain/events"
	"github.com/iota-uz/iota-import/modules/imports/domain/importerrs"
)

// Undo soft-deletes every record the batch created and marks it undone. It is not idempotent:
// a second call, or the loser of two concurrent calls, gets an InvalidStateError.
// Import errors are left untouched.
func (s *ImportService) Undo(ctx context.Context, batchID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "imports.Undo")
	defer span.End()
	span.SetAttributes(attribute.String("import.batch_id", batchID.String()))

	err := s.undo(ctx, batchID)
	switch {
	case err == nil:
		recordUndo("success")
	case isKind(err, importerrs.KindNotFound):
		recordUndo("not_found")
	case isKind(err, importerrs.KindInvalidState):
		recordUndo("invalid_state")
	default:
		recordUndo("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "undo failed")
	}
	return err
}

func (s *ImportService) undo(ctx context.Context, batchID uuid.UUID) error {
	b, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if !importbatch.CanTransition(b.Status(), importbatch.StatusUndone) {
		return &importerrs.InvalidStateError{ID: batchID.String(), From: string(b.Status()), To: string(importbatch.StatusUndone)}
	}
	sch, err := s.registry.Get(b.EntityType())
	if err != nil {
		return err
	}

	fields := logrus.Fields{
		"component":   "imports",
		"batch_id":    batchID.String(),
		"entity_type": string(b.EntityType()),
		"tenant_id":   b.TenantID().String(),
	}
	evt := events.BatchUndone{
		EventID:      uuid.New(),
		EventVersion: events.EventVersionV1,
		TenantID:     b.TenantID(),
		BatchID:      batchID,
		EntityType:   string(b.EntityType()),
	}

	err = s.store.InTx(ctx, func(txCtx context.Context) error {
		now := s.now()
		err := s.store.Batches().Transition(txCtx, batchID, importbatch.Sources(importbatch.StatusUndone), importbatch.StatusUndone, now)
		if errors.Is(err, importbatch.ErrStatusConflict) {
			current := importbatch.StatusUndone
			if latest, getErr := s.store.Batches().GetByID(txCtx, batchID); getErr == nil {
				current = latest.Status()
			}
			return &importerrs.InvalidStateError{ID: batchID.String(), From: string(current), To: string(importbatch.StatusUndone)}
		}
		if err != nil {
			return errors.Wrap(err, "mark batch undone")
		}

		n, err := s.store.Records().TombstoneByBatch(txCtx, sch, batchID, now)
		if err != nil {
			return errors.Wrap(err, "tombstone batch records")
		}
		evt.RecordsVoided = n
		evt.OccurredAt = now
		return s.enqueue(txCtx, b.TenantID(), events.TopicBatchUndoneV1, evt.EventID, evt)
	})
	if err != nil {
		logWithFields(ctx, logrus.WarnLevel, "imports.batch.undo_rejected", withError(fields, err))
		return err
	}

	if s.bus != nil {
		s.bus.Publish(&evt)
	}
	logWithFields(ctx, logrus.InfoLevel, "imports.batch.undone", withField(fields, "records_voided", evt.RecordsVoided))
	return nil
}

func isKind(err error, kind importerrs.Kind) bool {
	var k interface{ Kind() importerrs.Kind }
	return errors.As(err, &k) && k.Kind() == kind
}
