// Package limits implements NAAb's resource-limit facilities: scoped
// timeouts, recursion and input-size caps, overflow-checked arithmetic, and
// a zero-on-drop secure string container.
package limits

import (
	"context"
	"time"

	"github.com/naab-lang/naab/core/invariant"
)

// Timeout is a scope object armed with a deadline. On acquisition it starts
// a wall-clock timer; any operation that cooperatively checks Expired after
// the deadline elapses fails with Runtime/timeout. Timeouts are not
// preemptive for arbitrary foreign code (spec §5): an embedded runtime call
// in flight when the deadline passes returns only when it completes or the
// foreign runtime itself checks an interrupt flag.
type Timeout struct {
	deadline time.Time
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewTimeout arms a Timeout against parent with the given duration. A
// non-positive duration means no deadline.
func NewTimeout(parent context.Context, d time.Duration) *Timeout {
	invariant.NotNil(parent, "parent")
	if d <= 0 {
		return &Timeout{ctx: parent, cancel: func() {}}
	}
	ctx, cancel := context.WithTimeout(parent, d)
	return &Timeout{deadline: time.Now().Add(d), ctx: ctx, cancel: cancel}
}

// Context returns the context subprocess executors and foreign-call sites
// should pass down for cooperative cancellation.
func (t *Timeout) Context() context.Context {
	return t.ctx
}

// Expired reports whether the deadline has elapsed. Cooperative checkpoints
// (foreign call sites, subprocess waits, pool-submitted tasks) poll this.
func (t *Timeout) Expired() bool {
	return t.ctx.Err() != nil
}

// Release cancels the underlying context, freeing any timer goroutine. Safe
// to call multiple times.
func (t *Timeout) Release() {
	t.cancel()
}

// Remaining returns the time left before the deadline, or 0 if there is no
// deadline or it has already passed.
func (t *Timeout) Remaining() time.Duration {
	if t.deadline.IsZero() {
		return 0
	}
	d := time.Until(t.deadline)
	if d < 0 {
		return 0
	}
	return d
}
