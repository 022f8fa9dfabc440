package contextutil

import (
	"context"
	"testing"
	"time"
)

func TestWithTimeoutZeroDurationPassesParentThrough(t *testing.T) {
	parent := context.Background()
	ctx, cancel := WithTimeout(parent, 0)
	defer cancel()
	if ctx != parent {
		t.Fatalf("expected parent to pass through unchanged for d=0")
	}
	if _, ok := ctx.Deadline(); ok {
		t.Fatalf("expected no deadline for d=0")
	}
}

func TestWithTimeoutNilParent(t *testing.T) {
	ctx, cancel := WithTimeout(nil, 0)
	defer cancel()
	if ctx == nil {
		t.Fatalf("expected non-nil context for nil parent")
	}
	if err := ctx.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
}

func TestWithTimeoutPositiveDurationIsCancelable(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), 5*time.Second)
	if _, ok := ctx.Deadline(); !ok {
		t.Fatalf("expected a deadline for d>0")
	}
	cancel()
	if got := ctx.Err(); got != context.Canceled {
		t.Fatalf("Err() after cancel = %v, want context.Canceled", got)
	}
}
