// Package retry repeats idempotent provider calls on a fixed, increasing
// backoff schedule.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// DefaultSchedule is the wait before the 2nd, 3rd and later attempts.
var DefaultSchedule = []time.Duration{300 * time.Millisecond, 700 * time.Millisecond, 1200 * time.Millisecond}

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int
	// Schedule[i] is the wait after the (i+1)th failure. Attempts past the
	// end of the schedule reuse its last value.
	Schedule []time.Duration
	// Logger receives one line per failed attempt that will be retried.
	Logger *zap.Logger
	// Name labels log lines.
	Name string
}

// Permanent marks err as not worth retrying. Do returns the unwrapped err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, the attempt
// budget is spent, or ctx is done. The last error is returned unchanged.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	attempt := 0
	res, err := backoff.Retry(ctx,
		func() (T, error) {
			attempt++
			return op(ctx)
		},
		backoff.WithBackOff(&scheduleBackOff{schedule: p.Schedule}),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warn("attempt failed, retrying",
				zap.String("op", p.Name),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", attempts),
				zap.Duration("wait", wait),
				zap.Error(err))
		}),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	return res, err
}

// scheduleBackOff walks a fixed schedule and clamps to its last entry.
type scheduleBackOff struct {
	schedule []time.Duration
	next     int
}

func (b *scheduleBackOff) NextBackOff() time.Duration {
	if len(b.schedule) == 0 {
		return 0
	}
	i := b.next
	if i >= len(b.schedule) {
		i = len(b.schedule) - 1
	}
	b.next++
	return b.schedule[i]
}

func (b *scheduleBackOff) Reset() { b.next = 0 }
