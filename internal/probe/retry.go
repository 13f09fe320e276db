package probe

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds how often a transient failure is retried
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int

	// InitialInterval is the wait before the second attempt
	InitialInterval time.Duration

	// MaxInterval caps the exponential wait between attempts
	MaxInterval time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
	}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	return exp
}

// run calls op until it succeeds, fails permanently, runs out of attempts or
// ctx is done. Errors for which retryable is false are not retried.
func (p RetryPolicy) run(
	ctx context.Context,
	repository string,
	op func() (Result, error),
	retryable func(error) bool,
) (Result, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	return backoff.Retry(ctx, func() (Result, error) {
		result, err := op()
		if err != nil && !retryable(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	},
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Debug("Retrying repository probe",
				"repository", repository,
				"error", err,
				"next_attempt_in", next)
		}),
	)
}

// retryAfter attaches a server supplied wait to err
func retryAfter(err error, wait time.Duration) error {
	if wait <= 0 {
		return err
	}
	return errors.Join(err, &backoff.RetryAfterError{Duration: wait})
}

func hasRetryAfter(err error) bool {
	var ra *backoff.RetryAfterError
	return errors.As(err, &ra)
}
