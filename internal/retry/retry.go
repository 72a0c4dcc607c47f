// Package retry implements the bounded retry policy used for every remote
// API call. Transient failures (network errors, 5xx responses, rate limits)
// are retried with exponential backoff; anything else fails immediately.
package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v57/github"
)

// Policy bounds retries of transient failures.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialInterval and MaxInterval bound the exponential backoff delay.
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy returns the policy used for all syncs: five attempts per
// page, half a second initial delay.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
	}
}

func (p Policy) newBackOff(ctx context.Context) backoff.BackOff {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	// BackOff implementations are stateful; always build a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx)
}

// Do runs op, retrying transient failures until op succeeds or the attempt
// budget is exhausted. The last error is returned on exhaustion.
func (p Policy) Do(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !Transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.newBackOff(ctx))
}

// Transient reports whether err is worth retrying: network failures,
// server-side (5xx) errors, and rate limits. Client errors such as auth
// failures or malformed requests are permanent.
func Transient(err error) bool {
	if err == nil {
		return false
	}

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return true
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		return ghErr.Response != nil && ghErr.Response.StatusCode >= 500
	}

	// url.Error implements net.Error, so this covers transport failures
	// surfaced through net/http as well.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	// The GraphQL client reports HTTP failures as plain strings.
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"non-200 ok status code: 5",
		"connection reset",
		"broken pipe",
		"unexpected eof",
		"timeout",
		"temporarily unavailable",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}

	return false
}
