package platform

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

// flakyClient fails a set number of times before succeeding.
type flakyClient struct {
	Client
	failures int
	calls    int
	err      error
}

func (f *flakyClient) EnsureRole(ctx context.Context, name string) (Handle, error) {
	f.calls++
	if f.calls <= f.failures {
		return Handle{}, f.err
	}
	return Handle{ID: "role-1", Name: name}, nil
}

func TestRetrier_SucceedsAfterTransientFailures(t *testing.T) {
	inner := &flakyClient{failures: 2, err: errors.New("connection reset")}
	r := NewRetrier(inner, 3, time.Millisecond, zap.NewNop())

	h, err := r.EnsureRole(context.Background(), "VTU-Nomads")
	if err != nil {
		t.Fatalf("EnsureRole failed: %v", err)
	}
	if h.ID != "role-1" {
		t.Errorf("unexpected handle: %+v", h)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls, got %d", inner.calls)
	}
}

func TestRetrier_ExhaustedBudgetReturnsUnavailable(t *testing.T) {
	inner := &flakyClient{failures: 10, err: errors.New("connection reset")}
	r := NewRetrier(inner, 3, time.Millisecond, zap.NewNop())

	_, err := r.EnsureRole(context.Background(), "VTU-Nomads")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", inner.calls)
	}
}

func TestRetrier_PermissionDeniedNotRetried(t *testing.T) {
	inner := &flakyClient{failures: 10, err: ErrPermissionDenied}
	r := NewRetrier(inner, 3, time.Millisecond, zap.NewNop())

	_, err := r.EnsureRole(context.Background(), "VTU-Nomads")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("permission errors must not be retried, got %d calls", inner.calls)
	}
}

func TestRetrier_ContextCancelled(t *testing.T) {
	inner := &flakyClient{failures: 10, err: errors.New("connection reset")}
	r := NewRetrier(inner, 3, 50*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.EnsureRole(ctx, "VTU-Nomads")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
