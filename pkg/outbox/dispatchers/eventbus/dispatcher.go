// Package eventbus delivers outbox messages to in-process subscribers.
package eventbus

import (
	"context"

	"github.com/iota-uz/iota-import/pkg/eventbus"
	"github.com/iota-uz/iota-import/pkg/outbox"
)

type Dispatcher struct {
	bus eventbus.EventBusWithError
}

func New(bus eventbus.EventBusWithError) *Dispatcher {
	return &Dispatcher{bus: bus}
}

// Dispatch publishes (meta, topic, payload). Subscribers look like
// func(meta *outbox.Meta, topic string, payload json.RawMessage) error; a returned error or
// panic makes the relay retry. A message whose dispatch deadline already passed is not published.
func (d *Dispatcher) Dispatch(ctx context.Context, msg outbox.DispatchedMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.bus.PublishE(&msg.Meta, msg.Meta.Topic, msg.Payload)
}
