// Package handlers consumes the integration events relayed from the import outbox.
package handlers

import (
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/iota-import/modules/imports/domain/events"
	"github.com/iota-uz/iota-import/pkg/eventbus"
	"github.com/iota-uz/iota-import/pkg/outbox"
)

// AuditHandler writes one structured log line per delivered import event. It is the sink that
// keeps relayed messages from dead-lettering when no other consumer is subscribed.
type AuditHandler struct {
	log *logrus.Entry
}

func NewAuditHandler(log *logrus.Logger) *AuditHandler {
	return &AuditHandler{log: log.WithField("component", "imports.events")}
}

func (h *AuditHandler) Handle(meta *outbox.Meta, topic string, payload json.RawMessage) error {
	fields := logrus.Fields{
		"topic":     topic,
		"event_id":  meta.EventID.String(),
		"tenant_id": meta.TenantID.String(),
		"sequence":  meta.Sequence,
		"attempts":  meta.Attempts,
	}
	switch topic {
	case events.TopicBatchFinalizedV1:
		var evt events.BatchFinalized
		if err := json.Unmarshal(payload, &evt); err != nil {
			return errors.Wrapf(err, "decode %s", topic)
		}
		fields["batch_id"] = evt.BatchID.String()
		fields["status"] = evt.Status
		fields["success_count"] = evt.SuccessCount
		fields["error_count"] = evt.ErrorCount
	case events.TopicBatchUndoneV1:
		var evt events.BatchUndone
		if err := json.Unmarshal(payload, &evt); err != nil {
			return errors.Wrapf(err, "decode %s", topic)
		}
		fields["batch_id"] = evt.BatchID.String()
		fields["records_voided"] = evt.RecordsVoided
	default:
		return nil
	}
	h.log.WithFields(fields).Info("imports.event.delivered")
	return nil
}

func RegisterOutboxHandlers(bus eventbus.EventBus, log *logrus.Logger) *AuditHandler {
	h := NewAuditHandler(log)
	bus.Subscribe(h.Handle)
	return h
}
