// internal/app/system/platform/retry.go
package platform

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Retry policy for transient platform failures. ErrPermissionDenied is
// never retried.
const (
	DefaultAttempts = 3
	DefaultBackoff  = 250 * time.Millisecond
)

// Retrier wraps a Client with bounded retries and exponential backoff on
// transient errors. Exhausting the budget yields ErrUnavailable (wrapping
// the last attempt's error).
type Retrier struct {
	inner    Client
	attempts int
	backoff  time.Duration
	log      *zap.Logger
}

// NewRetrier wraps client. Zero attempts/backoff select the defaults.
func NewRetrier(client Client, attempts int, backoff time.Duration, logger *zap.Logger) *Retrier {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &Retrier{inner: client, attempts: attempts, backoff: backoff, log: logger}
}

func (r *Retrier) do(ctx context.Context, op string, fn func() error) error {
	delay := r.backoff
	var last error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrPermissionDenied) {
			return err
		}
		last = err
		if attempt == r.attempts {
			break
		}
		r.log.Warn("platform call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	r.log.Error("platform call exhausted retries", zap.String("op", op), zap.Error(last))
	return errors.Join(ErrUnavailable, last)
}

func (r *Retrier) EnsureCategory(ctx context.Context, name string) (Handle, error) {
	var h Handle
	err := r.do(ctx, "ensure_category", func() error {
		var err error
		h, err = r.inner.EnsureCategory(ctx, name)
		return err
	})
	return h, err
}

func (r *Retrier) EnsureChannel(ctx context.Context, spec ChannelSpec) (Handle, error) {
	var h Handle
	err := r.do(ctx, "ensure_channel", func() error {
		var err error
		h, err = r.inner.EnsureChannel(ctx, spec)
		return err
	})
	return h, err
}

func (r *Retrier) EnsureRole(ctx context.Context, name string) (Handle, error) {
	var h Handle
	err := r.do(ctx, "ensure_role", func() error {
		var err error
		h, err = r.inner.EnsureRole(ctx, name)
		return err
	})
	return h, err
}

func (r *Retrier) GrantRole(ctx context.Context, memberID, roleID string) error {
	return r.do(ctx, "grant_role", func() error {
		return r.inner.GrantRole(ctx, memberID, roleID)
	})
}

func (r *Retrier) RevokeRole(ctx context.Context, memberID, roleID string) error {
	return r.do(ctx, "revoke_role", func() error {
		return r.inner.RevokeRole(ctx, memberID, roleID)
	})
}

func (r *Retrier) PostMessage(ctx context.Context, channelID, text string) error {
	return r.do(ctx, "post_message", func() error {
		return r.inner.PostMessage(ctx, channelID, text)
	})
}
