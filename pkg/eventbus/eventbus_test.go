package eventbus

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/iota-import/pkg/logging"
)

type batchFinished struct {
	batchID string
	success int
}

type batchUndone struct {
	batchID string
}

func bufferedLogger(level logrus.Level) (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(buf)
	log.SetLevel(level)
	return log, buf
}

func TestPublisher_PublishWithoutMatchingSubscriberWarns(t *testing.T) {
	log, buf := bufferedLogger(logrus.WarnLevel)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *batchFinished) {
		t.Error("should not be called")
	})

	publisher.Publish(&batchUndone{batchID: "b1"})

	assert.Contains(t, buf.String(), "eventbus.Publish: no matching subscribers")
}

func TestPublisher_Subscribe(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.WarnLevel))
	var got *batchFinished
	publisher.Subscribe(func(e *batchFinished) { got = e })

	publisher.Publish(&batchFinished{batchID: "b1", success: 3})

	require.NotNil(t, got)
	assert.Equal(t, 3, got.success)
	assert.Equal(t, 1, publisher.SubscribersCount())
}

func TestPublisher_UnsubscribeAndClear(t *testing.T) {
	publisher := NewEventPublisher(nil)
	h1 := func(e *batchFinished) {}
	h2 := func(e *batchUndone) {}
	publisher.Subscribe(h1)
	publisher.Subscribe(h2)

	publisher.Unsubscribe(h1)
	assert.Equal(t, 1, publisher.SubscribersCount())

	publisher.Clear()
	assert.Zero(t, publisher.SubscribersCount())
}

func TestMatchSignature(t *testing.T) {
	assert.True(t, MatchSignature(func(e *batchFinished) {}, []any{&batchFinished{}}))
	assert.False(t, MatchSignature(func(e *batchFinished) {}, []any{&batchUndone{}}))
	assert.False(t, MatchSignature(func(e *batchFinished) {}, []any{}))
	assert.False(t, MatchSignature(func(e *batchFinished) {}, []any{&batchFinished{}, &batchFinished{}}))
	assert.True(t, MatchSignature(func(ctx context.Context) {}, []any{context.Background()}))
	assert.True(t, MatchSignature(func(e *batchFinished) {}, []any{nil}))
	assert.False(t, MatchSignature("not a func", []any{}))
}

func TestPublisher_PanicRecovery(t *testing.T) {
	t.Parallel()

	t.Run("panic is logged with args and other handlers still run", func(t *testing.T) {
		log, buf := bufferedLogger(logrus.ErrorLevel)
		publisher := NewEventPublisher(log)
		first, last := false, false
		publisher.Subscribe(func(e *batchFinished) { first = true })
		publisher.Subscribe(func(e *batchFinished) { panic("handler 2 panic") })
		publisher.Subscribe(func(e *batchFinished) { last = true })

		publisher.Publish(&batchFinished{batchID: "important-data"})

		assert.True(t, first)
		assert.True(t, last)
		assert.Contains(t, buf.String(), "panicked")
		assert.Contains(t, buf.String(), "handler 2 panic")
	})

	t.Run("all handlers panicking counts as unhandled", func(t *testing.T) {
		log, buf := bufferedLogger(logrus.WarnLevel)
		publisher := NewEventPublisher(log)
		publisher.Subscribe(func(e *batchFinished) { panic("always panics") })

		publisher.Publish(&batchFinished{})

		assert.Contains(t, buf.String(), "no matching subscribers")
	})

	t.Run("nil argument reaches pointer handler", func(t *testing.T) {
		log, buf := bufferedLogger(logrus.ErrorLevel)
		publisher := NewEventPublisher(log)
		publisher.Subscribe(func(e *batchFinished) { _ = e.batchID })

		publisher.Publish(nil)

		assert.Contains(t, buf.String(), "panicked")
	})
}

func TestPublisher_PublishE(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrNoSubscribers when none match", func(t *testing.T) {
		publisher := NewEventPublisher(logrus.New()).(EventBusWithError)
		require.ErrorIs(t, publisher.PublishE(&batchUndone{}), ErrNoSubscribers)
	})

	t.Run("joins errors from multiple handlers", func(t *testing.T) {
		publisher := NewEventPublisher(logrus.New()).(EventBusWithError)
		err1 := errors.New("err1")
		err2 := errors.New("err2")
		publisher.Subscribe(func(e *batchUndone) error { return err1 })
		publisher.Subscribe(func(e *batchUndone) error { return err2 })

		err := publisher.PublishE(&batchUndone{})
		require.ErrorIs(t, err, err1)
		require.ErrorIs(t, err, err2)
	})

	t.Run("panic is surfaced as error", func(t *testing.T) {
		publisher := NewEventPublisher(nil).(EventBusWithError)
		called := false
		publisher.Subscribe(func(e *batchUndone) error { panic("boom") })
		publisher.Subscribe(func(e *batchUndone) error { called = true; return nil })

		require.Error(t, publisher.PublishE(&batchUndone{}))
		assert.True(t, called)
	})

	t.Run("invalid handler return", func(t *testing.T) {
		publisher := NewEventPublisher(nil).(EventBusWithError)
		publisher.Subscribe(func(e *batchUndone) int { return 1 })
		require.ErrorIs(t, publisher.PublishE(&batchUndone{}), ErrInvalidHandlerReturn)
	})
}

func TestPublisher_ConcurrentPublishAndSubscribe(t *testing.T) {
	publisher := NewEventPublisher(nil)
	var calls atomic.Int64
	publisher.Subscribe(func(e *batchFinished) { calls.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			publisher.Publish(&batchFinished{})
		}()
		go func() {
			defer wg.Done()
			publisher.Subscribe(func(e *batchUndone) {})
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(20), calls.Load())
	assert.Equal(t, 21, publisher.SubscribersCount())
}
