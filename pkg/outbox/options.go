package outbox

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

var ErrInvalidConfig = errors.New("invalid outbox configuration")

func invalidConfig(msg string, args ...any) error {
	return errors.Wrap(ErrInvalidConfig, fmt.Sprintf(msg, args...))
}

// TableLabel is the metrics and log label of an outbox table.
func TableLabel(table pgx.Identifier) string {
	return strings.Join(table, ".")
}

// RelayOptions tune the relay. Zero values fall back to the defaults in setDefaults.
type RelayOptions struct {
	PollInterval    time.Duration
	BatchSize       int
	LockTTL         time.Duration
	MaxAttempts     int
	MaxBackoff      time.Duration
	JitterMax       time.Duration
	LastErrorMaxLen int
	DispatchTimeout time.Duration

	// ObserveQueueDepthEvery controls how often the pending gauge is refreshed.
	ObserveQueueDepthEvery time.Duration

	Logger *logrus.Entry
	Rand   *rand.Rand
}

func (o *RelayOptions) validate() error {
	for name, d := range map[string]time.Duration{
		"poll interval":    o.PollInterval,
		"lock ttl":         o.LockTTL,
		"max backoff":      o.MaxBackoff,
		"jitter":           o.JitterMax,
		"dispatch timeout": o.DispatchTimeout,
	} {
		if d < 0 {
			return invalidConfig("%s must not be negative", name)
		}
	}
	if o.BatchSize < 0 || o.MaxAttempts < 0 || o.LastErrorMaxLen < 0 {
		return invalidConfig("batch size, max attempts and last error length must not be negative")
	}
	if o.DispatchTimeout > 0 && o.LockTTL > 0 && o.DispatchTimeout >= o.LockTTL {
		return invalidConfig("dispatch timeout %s must be shorter than the lock ttl %s", o.DispatchTimeout, o.LockTTL)
	}
	return nil
}

func (o *RelayOptions) setDefaults() {
	if o.PollInterval == 0 {
		o.PollInterval = time.Second
	}
	if o.BatchSize == 0 {
		o.BatchSize = 50
	}
	if o.LockTTL == 0 {
		o.LockTTL = time.Minute
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 20
	}
	if o.MaxBackoff == 0 {
		o.MaxBackoff = time.Minute
	}
	if o.JitterMax == 0 {
		o.JitterMax = 250 * time.Millisecond
	}
	if o.LastErrorMaxLen == 0 {
		o.LastErrorMaxLen = 2048
	}
	if o.DispatchTimeout == 0 {
		o.DispatchTimeout = 15 * time.Second
	}
	if o.ObserveQueueDepthEvery == 0 {
		o.ObserveQueueDepthEvery = 15 * time.Second
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	}
	if o.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		o.Logger = logrus.NewEntry(l)
	}
}
