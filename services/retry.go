package services

import (
	"context"
	"errors"
	"log"
	"time"

	"whoami/repository"
	"whoami/sessions"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds retries of transient store failures.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: 50 * time.Millisecond}

// backOff doubles the delay after every failure, without jitter, and stops
// once Attempts calls have been made.
func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = time.Minute
	exp.MaxElapsedTime = 0
	exp.Reset()

	retries := max(p.Attempts, 1) - 1
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

func transient(err error) bool {
	return errors.Is(err, repository.ErrPersistence) ||
		errors.Is(err, sessions.ErrConflict) ||
		errors.Is(err, sessions.ErrStore)
}

// withRetry runs fn until it succeeds, fails with a non-transient error, or
// the policy gives up.
func withRetry[T any](ctx context.Context, p RetryPolicy, op string, fn func() (T, error)) (T, error) {
	attempts := max(p.Attempts, 1)
	attempt := 0

	v, err := backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		v, err := fn()
		if err != nil && !transient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, p.backOff(ctx), func(err error, next time.Duration) {
		log.Printf("%s failed (attempt %d/%d), retrying in %s: %v", op, attempt, attempts, next, err)
	})
	if err != nil {
		if transient(err) {
			log.Printf("%s failed (attempt %d/%d): %v", op, attempt, attempts, err)
		}
		var zero T
		return zero, err
	}
	return v, nil
}
