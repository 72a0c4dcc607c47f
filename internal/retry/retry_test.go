package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() Policy {
	return Policy{
		MaxAttempts:     5,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func serverError(status int) error {
	return &github.ErrorResponse{
		Response: &http.Response{StatusCode: status},
	}
}

func TestTransient(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"nil", nil, false},
		{"network timeout", timeoutError{}, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"server error", serverError(502), true},
		{"rate limit", &github.RateLimitError{}, true},
		{"abuse rate limit", &github.AbuseRateLimitError{}, true},
		{"auth failure", serverError(401), false},
		{"not found", serverError(404), false},
		{"graphql server error", errors.New(`non-200 OK status code: 502 Bad Gateway body: ""`), true},
		{"graphql client error", errors.New(`non-200 OK status code: 403 Forbidden body: ""`), false},
		{"malformed response", errors.New("invalid character '<' looking for beginning of value"), false},
		{"wrapped transient", fmt.Errorf("failed to list labels: %w", serverError(503)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, Transient(tt.err))
		})
	}
}

func TestDoRetriesTransientFailures(t *testing.T) {
	attempts := 0
	err := testPolicy().Do(context.Background(), func() error {
		attempts++
		if attempts < 5 {
			return serverError(500)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 5, attempts)
}

func TestDoExhaustsAttemptBudget(t *testing.T) {
	attempts := 0
	err := testPolicy().Do(context.Background(), func() error {
		attempts++
		return serverError(500)
	})

	require.Error(t, err)
	assert.Equal(t, 5, attempts)

	var ghErr *github.ErrorResponse
	assert.True(t, errors.As(err, &ghErr), "last error should be returned on exhaustion")
}

func TestDoDoesNotRetryPermanentFailures(t *testing.T) {
	attempts := 0
	err := testPolicy().Do(context.Background(), func() error {
		attempts++
		return serverError(401)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoStopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := testPolicy().Do(ctx, func() error {
		attempts++
		cancel()
		return serverError(500)
	})

	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 2)
}
