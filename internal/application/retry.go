package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ericfisherdev/zotoksheets/internal/metrics"
)

// RetryPolicy bounds retries of an outbound call. MaxAttempts counts the
// first try. The wait before attempt n+1 is Delay * 2^(n-1).
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.Delay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = time.Hour
	exp.MaxElapsedTime = 0
	exp.Reset()

	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// run calls fn until it succeeds, returns a backoff.Permanent error, or the
// attempt budget is spent. It returns the number of attempts made and the
// last error.
func (p RetryPolicy) run(
	ctx context.Context,
	operation string,
	m *metrics.Metrics,
	logger *slog.Logger,
	fn func(attempt int) error,
) (int, error) {
	attempts := 0
	err := backoff.RetryNotify(
		func() error {
			attempts++
			return fn(attempts)
		},
		p.backOff(ctx),
		func(err error, wait time.Duration) {
			m.IncRetry(operation)
			logger.Warn("retrying after failure",
				"operation", operation,
				"attempt", attempts,
				"max_attempts", p.MaxAttempts,
				"wait", wait,
				"error", err,
			)
		},
	)
	return attempts, err
}
