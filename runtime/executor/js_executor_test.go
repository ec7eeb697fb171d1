package executor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naab-lang/naab/core/value"
	"github.com/naab-lang/naab/runtime/executor"
)

func TestJSExecutorLanguageAndInitialised(t *testing.T) {
	e := executor.NewJSExecutor()
	assert.Equal(t, "js", e.Language())
	assert.True(t, e.IsInitialised())
}

func TestJSExecutorExecuteWithReturn(t *testing.T) {
	e := executor.NewJSExecutor()

	v, err := e.ExecuteWithReturn(context.Background(), "2 + 3")
	require.NoError(t, err)
	assert.Equal(t, value.Int(5), v)
}

func TestJSExecutorExecuteForSideEffectsOnly(t *testing.T) {
	e := executor.NewJSExecutor()
	require.NoError(t, e.Execute(context.Background(), "var x = 1;"))

	v, err := e.ExecuteWithReturn(context.Background(), "x + 1")
	require.NoError(t, err)
	assert.Equal(t, value.Int(2), v)
}

func TestJSExecutorCallFunction(t *testing.T) {
	e := executor.NewJSExecutor()
	require.NoError(t, e.Execute(context.Background(), "function add(a, b) { return a + b; }"))

	v, err := e.CallFunction(context.Background(), "add", []value.Value{value.Int(4), value.Int(5)})
	require.NoError(t, err)
	assert.Equal(t, value.Int(9), v)
}

func TestJSExecutorRuntimeErrorIsWrapped(t *testing.T) {
	e := executor.NewJSExecutor()

	_, err := e.ExecuteWithReturn(context.Background(), "throw new Error('boom')")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestJSExecutorSyntaxErrorFails(t *testing.T) {
	e := executor.NewJSExecutor()

	_, err := e.ExecuteWithReturn(context.Background(), "this is not valid js (((")
	assert.Error(t, err)
}

func TestJSExecutorCallUndefinedFunctionFails(t *testing.T) {
	e := executor.NewJSExecutor()

	_, err := e.CallFunction(context.Background(), "doesNotExist", nil)
	assert.Error(t, err)
}
