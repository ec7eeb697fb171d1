package ffi

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/naab-lang/naab/core/invariant"
	"github.com/naab-lang/naab/core/value"
)

// Callable is anything an AsyncCallback can run: either a NAAb function
// invoked through the interpreter, or a foreign entry point invoked through
// an executor. The interpreter supplies the concrete closure.
type Callable func(ctx context.Context) (value.Value, error)

// AsyncCallback wraps a Callable with a name (for audit/error messages) and
// a timeout, per spec.md §4.C8.
type AsyncCallback struct {
	Name    string
	Fn      Callable
	Timeout time.Duration

	cancelled atomic.Bool
}

// Cancel sets the observable cancellation flag. It does not preempt a
// callable already running — spec.md §4.C8 is explicit that the flag is
// advisory, checked cooperatively by the callable itself.
func (c *AsyncCallback) Cancel() { c.cancelled.Store(true) }

// Cancelled reports whether Cancel has been called.
func (c *AsyncCallback) Cancelled() bool { return c.cancelled.Load() }

// ExecuteBlocking runs Fn on the current goroutine under Timeout.
func (c *AsyncCallback) ExecuteBlocking(ctx context.Context) (value.Value, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if c.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	return c.Fn(runCtx)
}

// Future is the handle ExecuteAsync returns: a single-value channel plus an
// Await convenience method.
type Future struct {
	done chan asyncOutcome
}

type asyncOutcome struct {
	value value.Value
	err   error
}

// Await blocks until the future resolves or ctx is done, whichever is
// first.
func (f *Future) Await(ctx context.Context) (value.Value, error) {
	select {
	case o := <-f.done:
		return o.value, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ExecuteAsync schedules Fn to run on a dedicated goroutine and returns
// immediately with a Future.
func (c *AsyncCallback) ExecuteAsync(ctx context.Context) *Future {
	f := &Future{done: make(chan asyncOutcome, 1)}
	go func() {
		v, err := c.ExecuteBlocking(ctx)
		f.done <- asyncOutcome{value: v, err: err}
	}()
	return f
}

// Pool bounds concurrent AsyncCallback submissions, mirroring the
// semaphore-channel fan-out the decorator engine uses for @parallel
// branches.
type Pool struct {
	sem chan struct{}
}

// NewPool returns a Pool allowing at most maxConcurrency submissions to run
// at once. maxConcurrency must be positive; there is no unlimited setting.
func NewPool(maxConcurrency int) *Pool {
	invariant.Precondition(maxConcurrency > 0, "maxConcurrency must be positive")
	return &Pool{sem: make(chan struct{}, maxConcurrency)}
}

// Submit runs fn once a slot is free, blocking the caller until it does.
func (p *Pool) Submit(ctx context.Context, fn func(ctx context.Context) (value.Value, error)) (value.Value, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.sem }()
	return fn(ctx)
}

// Retry runs callback with exponential backoff, retrying up to attempts
// times (attempts includes the first try). backoff is the initial delay,
// doubled after each failed attempt.
func Retry(ctx context.Context, callback *AsyncCallback, attempts int, backoff time.Duration) (value.Value, error) {
	invariant.Precondition(attempts > 0, "attempts must be positive")

	var lastErr error
	delay := backoff
	for i := 0; i < attempts; i++ {
		v, err := callback.ExecuteBlocking(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
	}
	return nil, lastErr
}

// ParallelAll runs every callback concurrently and collects all results in
// input order, regardless of individual failures.
func ParallelAll(ctx context.Context, callbacks []*AsyncCallback) []Result {
	results := make([]Result, len(callbacks))
	var wg sync.WaitGroup
	for i, cb := range callbacks {
		wg.Add(1)
		go func(i int, cb *AsyncCallback) {
			defer wg.Done()
			v, err := cb.ExecuteBlocking(ctx)
			if err != nil {
				results[i] = Err("CallableError", err.Error())
				return
			}
			results[i] = Ok(v)
		}(i, cb)
	}
	wg.Wait()
	return results
}

// Race runs every callback concurrently and returns the first successful
// result; the remaining callbacks are cancelled via ctx but, per spec.md
// §5's cooperative-cancellation policy, only stop once they next check it.
func Race(ctx context.Context, callbacks []*AsyncCallback) (value.Value, error) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		v   value.Value
		err error
	}
	results := make(chan outcome, len(callbacks))
	for _, cb := range callbacks {
		go func(cb *AsyncCallback) {
			v, err := cb.ExecuteBlocking(raceCtx)
			results <- outcome{v: v, err: err}
		}(cb)
	}

	var lastErr error
	for i := 0; i < len(callbacks); i++ {
		o := <-results
		if o.err == nil {
			cancel()
			return o.v, nil
		}
		lastErr = o.err
	}
	return nil, lastErr
}
