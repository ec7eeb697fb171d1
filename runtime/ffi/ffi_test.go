package ffi_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naab-lang/naab/core/value"
	"github.com/naab-lang/naab/runtime/ffi"
)

func TestContainConvertsPanicToResult(t *testing.T) {
	result := ffi.Contain(func() (value.Value, error) {
		panic("boom")
	})
	assert.False(t, result.Success)
	assert.Equal(t, "PanicInForeignCode", result.ErrorTypeName)
	assert.Contains(t, result.ErrorMessage, "boom")
}

func TestContainConvertsErrorToResult(t *testing.T) {
	result := ffi.Contain(func() (value.Value, error) {
		return nil, errors.New("foreign failure")
	})
	assert.False(t, result.Success)
	assert.Equal(t, "ForeignError", result.ErrorTypeName)
}

func TestContainSuccess(t *testing.T) {
	result := ffi.Contain(func() (value.Value, error) {
		return value.Int(42), nil
	})
	assert.True(t, result.Success)
	assert.Equal(t, value.Int(42), result.Value)
}

func TestCallbackValidateArgsArity(t *testing.T) {
	cb := &ffi.Callback{Handle: &value.Function{}, ParamTypes: []string{"int", "string"}}
	err := cb.ValidateArgs([]value.Value{value.Int(1)})
	require.Error(t, err)
}

func TestCallbackValidateArgsTypeMismatch(t *testing.T) {
	cb := &ffi.Callback{Handle: &value.Function{}, ParamTypes: []string{"int"}}
	err := cb.ValidateArgs([]value.Value{value.Str("nope")})
	require.Error(t, err)
}

func TestCallbackValidateArgsAnyWildcard(t *testing.T) {
	cb := &ffi.Callback{Handle: &value.Function{}, ParamTypes: []string{"any"}}
	assert.NoError(t, cb.ValidateArgs([]value.Value{value.Str("ok")}))
}

func TestCallbackValidateNullHandle(t *testing.T) {
	cb := &ffi.Callback{ParamTypes: []string{}}
	err := cb.ValidateArgs(nil)
	require.Error(t, err)
}

func TestAsyncCallbackBlocking(t *testing.T) {
	cb := &ffi.AsyncCallback{Name: "f", Fn: func(ctx context.Context) (value.Value, error) {
		return value.Int(7), nil
	}}
	v, err := cb.ExecuteBlocking(context.Background())
	require.NoError(t, err)
	assert.Equal(t, value.Int(7), v)
}

func TestAsyncCallbackAsyncFuture(t *testing.T) {
	cb := &ffi.AsyncCallback{Fn: func(ctx context.Context) (value.Value, error) {
		time.Sleep(5 * time.Millisecond)
		return value.Int(9), nil
	}}
	fut := cb.ExecuteAsync(context.Background())
	v, err := fut.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, value.Int(9), v)
}

func TestRetryEventuallySucceeds(t *testing.T) {
	attempt := 0
	cb := &ffi.AsyncCallback{Fn: func(ctx context.Context) (value.Value, error) {
		attempt++
		if attempt < 3 {
			return nil, errors.New("not yet")
		}
		return value.Int(1), nil
	}}
	v, err := ffi.Retry(context.Background(), cb, 5, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), v)
	assert.Equal(t, 3, attempt)
}

func TestRetryExhausted(t *testing.T) {
	cb := &ffi.AsyncCallback{Fn: func(ctx context.Context) (value.Value, error) {
		return nil, errors.New("always fails")
	}}
	_, err := ffi.Retry(context.Background(), cb, 3, time.Millisecond)
	require.Error(t, err)
}

func TestParallelAllCollectsAllResults(t *testing.T) {
	cbs := []*ffi.AsyncCallback{
		{Fn: func(ctx context.Context) (value.Value, error) { return value.Int(1), nil }},
		{Fn: func(ctx context.Context) (value.Value, error) { return nil, errors.New("fail") }},
		{Fn: func(ctx context.Context) (value.Value, error) { return value.Int(3), nil }},
	}
	results := ffi.ParallelAll(context.Background(), cbs)
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.True(t, results[2].Success)
}

func TestRaceReturnsFirstSuccess(t *testing.T) {
	cbs := []*ffi.AsyncCallback{
		{Fn: func(ctx context.Context) (value.Value, error) {
			time.Sleep(20 * time.Millisecond)
			return value.Int(1), nil
		}},
		{Fn: func(ctx context.Context) (value.Value, error) {
			return value.Int(2), nil
		}},
	}
	v, err := ffi.Race(context.Background(), cbs)
	require.NoError(t, err)
	assert.Equal(t, value.Int(2), v)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := ffi.NewPool(1)
	var running int32
	var maxRunning int32
	var mu = make(chan struct{}, 1)
	mu <- struct{}{}

	run := func(ctx context.Context) (value.Value, error) {
		<-mu
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu <- struct{}{}
		time.Sleep(2 * time.Millisecond)
		<-mu
		running--
		mu <- struct{}{}
		return value.Null, nil
	}

	done := make(chan struct{})
	for i := 0; i < 3; i++ {
		go func() {
			_, _ = pool.Submit(context.Background(), run)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 3; i++ {
		<-done
	}
	assert.LessOrEqual(t, maxRunning, int32(1))
}
