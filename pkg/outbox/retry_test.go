package outbox

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	maxDelay := time.Minute
	for attempts, want := range map[int]time.Duration{
		-1: 0,
		0:  0,
		1:  time.Second,
		2:  2 * time.Second,
		4:  8 * time.Second,
		7:  time.Minute,
		64: time.Minute,
	} {
		require.Equal(t, want, retryDelay(attempts, maxDelay), "attempts=%d", attempts)
	}
}

func TestNextAttemptAt_StaysWithinJitter(t *testing.T) {
	t.Parallel()

	opts := RelayOptions{MaxBackoff: time.Minute, JitterMax: 200 * time.Millisecond, Rand: rand.New(rand.NewSource(1))}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	next := opts.nextAttemptAt(now, 3)
	require.False(t, next.Before(now.Add(4*time.Second)))
	require.False(t, next.After(now.Add(4*time.Second+200*time.Millisecond)))

	require.Zero(t, spread(nil, time.Second))
	require.Zero(t, spread(rand.New(rand.NewSource(1)), 0))
}

func TestClipError(t *testing.T) {
	t.Parallel()

	require.Empty(t, clipError(nil, 10))
	require.Empty(t, clipError(errors.New("abc"), 0))
	require.Equal(t, "dup", clipError(errors.New("duplicate key"), 3))
	require.Equal(t, "a", clipError(errors.New("aé"), 2))
	require.Equal(t, "short", clipError(errors.New("short"), 64))
}
