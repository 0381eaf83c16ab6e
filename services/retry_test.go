package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"whoami/repository"
	"whoami/sessions"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_DoublesThenStops(t *testing.T) {
	b := RetryPolicy{Attempts: 4, BaseDelay: 50 * time.Millisecond}.backOff(context.Background())

	assert.Equal(t, 50*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 200*time.Millisecond, b.NextBackOff())
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  []error
		wantCalls int
		wantErr   error
	}{
		{"first try", nil, 1, nil},
		{"persistence then ok", []error{repository.ErrPersistence}, 2, nil},
		{"conflict twice then ok", []error{sessions.ErrConflict, sessions.ErrStore}, 3, nil},
		{"gives up", []error{repository.ErrPersistence, repository.ErrPersistence, repository.ErrPersistence}, 3, repository.ErrPersistence},
		{"not found is final", []error{repository.ErrNotFound}, 1, repository.ErrNotFound},
		{"validation is final", []error{ErrValidation}, 1, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			v, err := withRetry(context.Background(), fastRetry, "load", func() (string, error) {
				calls++
				if calls <= len(tt.failures) {
					return "partial", tt.failures[calls-1]
				}
				return "ok", nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, v)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", v)
		})
	}
}

func TestWithRetry_StopsWhenContextIsDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := withRetry(ctx, RetryPolicy{Attempts: 5, BaseDelay: time.Hour}, "load", func() (int, error) {
		calls++
		cancel()
		return 0, repository.ErrPersistence
	})

	assert.True(t, errors.Is(err, context.Canceled) || errors.Is(err, repository.ErrPersistence), "got %v", err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_SingleAttempt(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), RetryPolicy{}, "load", func() (int, error) {
		calls++
		return 0, sessions.ErrStore
	})

	assert.ErrorIs(t, err, sessions.ErrStore)
	assert.Equal(t, 1, calls)
}
