package outbox

import (
	"math/rand"
	"time"
	"unicode/utf8"
)

// retryDelay doubles from one second with every failed attempt and never exceeds maxDelay.
func retryDelay(attempts int, maxDelay time.Duration) time.Duration {
	if attempts <= 0 {
		return 0
	}
	if attempts > 31 {
		return maxDelay
	}
	d := time.Second << (attempts - 1)
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// spread returns a random duration in [0, limit]. A nil source disables it.
func spread(r *rand.Rand, limit time.Duration) time.Duration {
	if r == nil || limit <= 0 {
		return 0
	}
	return time.Duration(r.Int63n(int64(limit) + 1)) //nolint:gosec
}

func (o *RelayOptions) nextAttemptAt(now time.Time, attempts int) time.Time {
	return now.Add(retryDelay(attempts, o.MaxBackoff) + spread(o.Rand, o.JitterMax))
}

// clipError renders err for the last_error column, cut on a rune boundary.
func clipError(err error, maxBytes int) string {
	if err == nil || maxBytes <= 0 {
		return ""
	}
	s := err.Error()
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
