package resilience_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finova-oss/rewardengine/internal/errs"
	"github.com/finova-oss/rewardengine/internal/resilience"
)

func TestBreakerWrapsFailureAsTransient(t *testing.T) {
	b := resilience.NewBreaker(resilience.DefaultBreakerConfig("test"))
	_, err := b.Execute(func() (interface{}, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)
	assert.True(t, errs.IsTransient(err))
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	b := resilience.NewBreaker(resilience.DefaultBreakerConfig("test"))
	v, err := b.Execute(func() (interface{}, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestRetryTransientStopsOnNonTransientError(t *testing.T) {
	limiter := resilience.NewLimiter(1000, 10)
	calls := 0
	err := resilience.RetryTransient(context.Background(), limiter, "u1", func() error {
		calls++
		return errs.SchemaError("bad event")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryTransientSucceedsEventually(t *testing.T) {
	limiter := resilience.NewLimiter(1000, 10)
	calls := 0
	err := resilience.RetryTransient(context.Background(), limiter, "u1", func() error {
		calls++
		if calls < 3 {
			return errs.Transient("store", errors.New("down"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryTransientGivesUpAfterMaxAttempts(t *testing.T) {
	limiter := resilience.NewLimiter(1000, 10)
	calls := 0
	err := resilience.RetryTransient(context.Background(), limiter, "u1", func() error {
		calls++
		return errs.Transient("store", errors.New("down"))
	})
	require.Error(t, err)
	assert.Equal(t, errs.MaxRetryAttempts, calls)
}
