//go:build cgo

package executor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naab-lang/naab/core/value"
	"github.com/naab-lang/naab/runtime/executor"
)

func TestPythonExecutorLanguageAndInitialised(t *testing.T) {
	e, err := executor.NewPythonExecutor()
	require.NoError(t, err)
	assert.Equal(t, "python", e.Language())
	assert.True(t, e.IsInitialised())
}

func TestPythonExecutorEvalModeReturnsExpressionResult(t *testing.T) {
	e, err := executor.NewPythonExecutor()
	require.NoError(t, err)

	v, err := e.ExecuteWithReturn(context.Background(), "2 + 3")
	require.NoError(t, err)
	assert.Equal(t, value.Int(5), v)
}

func TestPythonExecutorSplitsStatementsFromFinalExpression(t *testing.T) {
	e, err := executor.NewPythonExecutor()
	require.NoError(t, err)

	v, err := e.ExecuteWithReturn(context.Background(), "x = 10\ny = 32\nx + y")
	require.NoError(t, err)
	assert.Equal(t, value.Int(42), v)
}

func TestPythonExecutorFinalStatementReturnsNull(t *testing.T) {
	e, err := executor.NewPythonExecutor()
	require.NoError(t, err)

	v, err := e.ExecuteWithReturn(context.Background(), "x = 1\nx += 1")
	require.NoError(t, err)
	assert.Equal(t, value.Null, v)
}

func TestPythonExecutorExecuteForSideEffectsOnly(t *testing.T) {
	e, err := executor.NewPythonExecutor()
	require.NoError(t, err)
	require.NoError(t, e.Execute(context.Background(), "naab_side_effect = 7"))

	v, err := e.ExecuteWithReturn(context.Background(), "naab_side_effect")
	require.NoError(t, err)
	assert.Equal(t, value.Int(7), v)
}

func TestPythonExecutorRuntimeErrorCarriesExceptionType(t *testing.T) {
	e, err := executor.NewPythonExecutor()
	require.NoError(t, err)

	_, err = e.ExecuteWithReturn(context.Background(), "1 / 0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZeroDivisionError")
}

func TestPythonExecutorCallFunction(t *testing.T) {
	e, err := executor.NewPythonExecutor()
	require.NoError(t, err)
	require.NoError(t, e.Execute(context.Background(), "def add(a, b):\n    return a + b\n"))

	v, err := e.CallFunction(context.Background(), "add", []value.Value{value.Int(4), value.Int(5)})
	require.NoError(t, err)
	assert.Equal(t, value.Int(9), v)
}

func TestPythonExecutorListAndDictRoundTrip(t *testing.T) {
	e, err := executor.NewPythonExecutor()
	require.NoError(t, err)

	v, err := e.ExecuteWithReturn(context.Background(), "[1, 2, 3]")
	require.NoError(t, err)
	list, ok := v.(*value.List)
	require.True(t, ok)
	assert.Equal(t, 3, list.Len())

	v, err = e.ExecuteWithReturn(context.Background(), "{'a': 1, 'b': 2}")
	require.NoError(t, err)
	dict, ok := v.(*value.Dict)
	require.True(t, ok)
	got, ok := dict.Get("a")
	require.True(t, ok)
	assert.Equal(t, value.Int(1), got)
}

func TestPythonExecutorLargeIntFallsBackToFloat(t *testing.T) {
	e, err := executor.NewPythonExecutor()
	require.NoError(t, err)

	v, err := e.ExecuteWithReturn(context.Background(), "2 ** 100")
	require.NoError(t, err)
	_, ok := v.(value.Float)
	assert.True(t, ok)
}
