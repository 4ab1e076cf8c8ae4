package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantmind-br/releasesync/internal/domain"
)

func fastRetrier(maxRetries int) *Retrier {
	return NewRetrier(RetrierOptions{
		MaxRetries:      maxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	})
}

func TestDefaultRetrierOptions(t *testing.T) {
	opts := DefaultRetrierOptions()

	assert.Equal(t, 0, opts.MaxRetries)
	assert.Equal(t, 1*time.Second, opts.InitialInterval)
	assert.Equal(t, 30*time.Second, opts.MaxInterval)
	assert.Equal(t, 2.0, opts.Multiplier)
}

func TestNewRetrier(t *testing.T) {
	tests := []struct {
		name  string
		opts  RetrierOptions
		check func(t *testing.T, r *Retrier)
	}{
		{
			name: "with valid options",
			opts: RetrierOptions{
				MaxRetries:      5,
				InitialInterval: 2 * time.Second,
				MaxInterval:     60 * time.Second,
				Multiplier:      3.0,
			},
			check: func(t *testing.T, r *Retrier) {
				assert.Equal(t, 5, r.MaxRetries())
				assert.Equal(t, 2*time.Second, r.initialInterval)
				assert.Equal(t, 60*time.Second, r.maxInterval)
				assert.Equal(t, 3.0, r.multiplier)
			},
		},
		{
			name: "negative max retries means single attempt",
			opts: RetrierOptions{MaxRetries: -1},
			check: func(t *testing.T, r *Retrier) {
				assert.Equal(t, 0, r.MaxRetries())
			},
		},
		{
			name: "zero intervals use defaults",
			opts: RetrierOptions{},
			check: func(t *testing.T, r *Retrier) {
				assert.Equal(t, 1*time.Second, r.initialInterval)
				assert.Equal(t, 30*time.Second, r.maxInterval)
				assert.Equal(t, 2.0, r.multiplier)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, NewRetrier(tt.opts))
		})
	}
}

func TestRetrier_Retry(t *testing.T) {
	unavailable := domain.NewHTTPError("https://example.com", 503, "503 Service Unavailable")

	t.Run("zero retries is a single attempt", func(t *testing.T) {
		attempts := 0
		err := fastRetrier(0).Retry(context.Background(), func() error {
			attempts++
			return unavailable
		})

		assert.ErrorIs(t, err, unavailable)
		assert.Equal(t, 1, attempts)
	})

	t.Run("retries on retryable error", func(t *testing.T) {
		attempts := 0
		err := fastRetrier(3).Retry(context.Background(), func() error {
			attempts++
			if attempts < 2 {
				return unavailable
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 2, attempts)
	})

	t.Run("fails after max retries", func(t *testing.T) {
		attempts := 0
		err := fastRetrier(2).Retry(context.Background(), func() error {
			attempts++
			return unavailable
		})

		var httpErr *domain.HTTPError
		assert.ErrorAs(t, err, &httpErr)
		assert.Equal(t, 3, attempts)
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		notFound := domain.NewHTTPError("https://example.com", 404, "404 Not Found")
		attempts := 0
		err := fastRetrier(3).Retry(context.Background(), func() error {
			attempts++
			return notFound
		})

		assert.ErrorIs(t, err, notFound)
		assert.Equal(t, 1, attempts)
	})

	t.Run("retries rate limiting", func(t *testing.T) {
		attempts := 0
		err := fastRetrier(1).Retry(context.Background(), func() error {
			attempts++
			return domain.ErrRateLimited
		})

		assert.True(t, errors.Is(err, domain.ErrRateLimited))
		assert.Equal(t, 2, attempts)
	})
}

func TestRetryWithValue(t *testing.T) {
	attempts := 0
	result, err := RetryWithValue(context.Background(), fastRetrier(3), func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", domain.NewHTTPError("https://example.com", 502, "")
		}
		return "success", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 2, attempts)
}

func TestRetryWithValue_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RetryWithValue(ctx, fastRetrier(3), func() (int, error) {
		return 0, domain.NewHTTPError("https://example.com", 503, "")
	})

	assert.Error(t, err)
}
