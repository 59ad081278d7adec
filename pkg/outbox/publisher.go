package outbox

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/iota-import/pkg/composables"
)

// Publisher writes messages into the outbox table using the transaction carried by ctx,
// so a message commits or rolls back with the business change that produced it.
type Publisher struct {
	table pgx.Identifier
	m     *metrics
}

func NewPublisher(table pgx.Identifier) *Publisher {
	return &Publisher{table: table, m: getMetrics()}
}

// Enqueue is idempotent on EventID and returns the message's sequence.
func (p *Publisher) Enqueue(ctx context.Context, msg Message) (int64, error) {
	if err := msg.validate(); err != nil {
		return 0, err
	}
	if len(p.table) == 0 {
		return 0, invalidConfig("table is required")
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	q := fmt.Sprintf(
		`INSERT INTO %s (tenant_id, topic, payload, event_id, available_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (event_id) DO UPDATE SET event_id = EXCLUDED.event_id
		 RETURNING sequence`,
		p.table.Sanitize(),
	)
	var sequence int64
	if err := tx.QueryRow(ctx, q, msg.TenantID, msg.Topic, []byte(msg.Payload), msg.EventID).Scan(&sequence); err != nil {
		return 0, errors.Wrap(err, "outbox enqueue")
	}

	p.m.enqueueTotal.WithLabelValues(TableLabel(p.table), msg.Topic).Inc()
	return sequence, nil
}
