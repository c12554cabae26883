// Package context holds small helpers around the standard context package.
package context

import (
	"context"
	"errors"
	"time"
)

// WithOptionalTimeout derives a context that times out after timeout. A
// non-positive timeout leaves the parent's deadline alone. The returned
// cancel func is never nil.
func WithOptionalTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

// IsCanceled returns true if the context has been canceled
func IsCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// IsContextError reports whether err came from a canceled or expired context.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
