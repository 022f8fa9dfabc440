// Package contextutil carries a zero-value-safe timeout wrapper used to
// bound the handshake phase of a connection without special-casing the
// "no timeout configured" path at every call site.
package contextutil

import (
	"context"
	"time"
)

// WithTimeout is context.WithTimeout, except that a non-positive d returns
// parent unchanged (with a no-op cancel) and a nil parent is promoted to
// context.Background().
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if d <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, d)
}
