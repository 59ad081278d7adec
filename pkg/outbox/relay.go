package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Relay polls a Store and hands claimed messages to a Dispatcher, retrying failures with
// exponential backoff until MaxAttempts.
type Relay struct {
	store      Store
	dispatcher Dispatcher
	opts       RelayOptions

	m          *metrics
	tableLabel string
}

func NewRelay(store Store, dispatcher Dispatcher, opts RelayOptions) (*Relay, error) {
	if store == nil {
		return nil, invalidConfig("store is required")
	}
	if dispatcher == nil {
		return nil, invalidConfig("dispatcher is required")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.setDefaults()
	return &Relay{
		store:      store,
		dispatcher: dispatcher,
		opts:       opts,
		m:          getMetrics(),
		tableLabel: store.Table(),
	}, nil
}

func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	nextDepthAt := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(nextDepthAt) {
			if err := r.observeQueueDepth(ctx); err != nil {
				r.opts.Logger.WithError(err).Debug("outbox: observe queue depth failed")
			}
			nextDepthAt = time.Now().Add(r.opts.ObserveQueueDepthEvery)
		}

		if _, err := r.ProcessOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.opts.Logger.WithError(err).Warn("outbox: process tick failed")
		}
	}
}

// ProcessOnce claims one batch and dispatches it, returning how many messages were claimed.
func (r *Relay) ProcessOnce(ctx context.Context) (int, error) {
	now := time.Now()
	claimed, err := r.store.Claim(ctx, now, now.Add(-r.opts.LockTTL), r.opts.MaxAttempts, r.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	for _, c := range claimed {
		r.dispatchOne(ctx, c)
	}
	return len(claimed), nil
}

func (r *Relay) dispatchOne(ctx context.Context, c Claimed) {
	dispatchCtx, cancel := context.WithTimeout(ctx, r.opts.DispatchTimeout)
	start := time.Now()
	err := r.dispatcher.Dispatch(dispatchCtx, DispatchedMessage{
		Meta: Meta{
			Table:    r.tableLabel,
			TenantID: c.TenantID,
			Topic:    c.Topic,
			EventID:  c.EventID,
			Sequence: c.Sequence,
			Attempts: c.Attempts,
		},
		Payload: c.Payload,
	})
	cancel()
	latency := time.Since(start)
	log := r.opts.Logger.WithFields(logFields(c, r.tableLabel))

	if err == nil {
		r.recordDispatch(c.Topic, "success", latency)
		if ackErr := r.store.Ack(ctx, c.ID); ackErr != nil {
			log.WithError(ackErr).Warn("outbox: ack failed")
		}
		return
	}

	r.recordDispatch(c.Topic, "failure", latency)
	lastErr := clipError(err, r.opts.LastErrorMaxLen)

	if c.Attempts >= r.opts.MaxAttempts {
		r.m.deadTotal.WithLabelValues(r.tableLabel, c.Topic).Inc()
		log.WithError(err).Error("outbox: message exhausted its attempts")
		if deadErr := r.store.Dead(ctx, c.ID, lastErr); deadErr != nil {
			log.WithError(deadErr).Warn("outbox: dead update failed")
		}
		return
	}

	next := r.opts.nextAttemptAt(time.Now(), c.Attempts)
	if nackErr := r.store.Nack(ctx, c.ID, lastErr, next); nackErr != nil {
		log.WithError(nackErr).Warn("outbox: nack failed")
	}
}

func (r *Relay) observeQueueDepth(ctx context.Context) error {
	pending, locked, err := r.store.Depth(ctx)
	if err != nil {
		return err
	}
	r.m.pending.WithLabelValues(r.tableLabel).Set(float64(pending))
	r.m.locked.WithLabelValues(r.tableLabel).Set(float64(locked))
	return nil
}

func (r *Relay) recordDispatch(topic, result string, latency time.Duration) {
	r.m.dispatchTotal.WithLabelValues(r.tableLabel, topic, result).Inc()
	r.m.dispatchLatency.WithLabelValues(r.tableLabel, topic, result).Observe(latency.Seconds())
}

func logFields(c Claimed, table string) logrus.Fields {
	return logrus.Fields{
		"table":     table,
		"topic":     c.Topic,
		"event_id":  c.EventID.String(),
		"tenant_id": c.TenantID.String(),
		"sequence":  c.Sequence,
		"attempts":  c.Attempts,
	}
}
