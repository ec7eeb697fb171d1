package errors_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	nerrors "github.com/naab-lang/naab/core/errors"
	"github.com/naab-lang/naab/core/value"
)

func TestSuggestUniqueMinimum(t *testing.T) {
	got := nerrors.Suggest("cont", []string{"count", "contains", "color", "totally-unrelated"})
	assert.Contains(t, got, "count")
	assert.LessOrEqual(t, len(got), 3)
}

func TestSuggestNoMatchBeyondThreshold(t *testing.T) {
	got := nerrors.Suggest("xyz", []string{"completely", "different", "names"})
	assert.Empty(t, got)
}

func TestNameErrorNeverMasksPrimaryMessage(t *testing.T) {
	e := nerrors.NameError(nerrors.Location{File: "a.naab", Line: 1, Column: 1}, "cnt", []string{"count"})
	assert.Contains(t, e.Error(), `undefined name "cnt"`)
	assert.Contains(t, e.Error(), "count")
}

func TestThrowCarriesPayload(t *testing.T) {
	e := nerrors.NewThrow(nerrors.Location{}, value.Str("boom"))
	assert.Equal(t, nerrors.Throw, e.Kind)
	assert.Equal(t, value.Str("boom"), e.Payload)
}

func TestTypeMismatchNamesBothKinds(t *testing.T) {
	e := nerrors.TypeMismatch(nerrors.Location{}, "+", value.KindInt, value.KindString)
	assert.Contains(t, e.Error(), "int")
	assert.Contains(t, e.Error(), "string")
}

func TestSanitizeRedactsSecrets(t *testing.T) {
	msg := "token sk-ant-REDACTED failed for user@example.com"
	out := nerrors.Sanitize(msg)
	assert.NotContains(t, out, "abcdefghijklmnopqrstuvwxyz")
	assert.NotContains(t, out, "user@example.com")
	assert.Contains(t, out, "[redacted]")
}

func TestWithFramePrependsInnermostFirst(t *testing.T) {
	e := nerrors.New(nerrors.Runtime, nerrors.Location{}, "boom")
	e.WithFrame(nerrors.Frame{FunctionName: "outer"})
	e.WithFrame(nerrors.Frame{FunctionName: "inner"})
	assert.Equal(t, "inner", e.Frames[0].FunctionName)
	assert.Equal(t, "outer", e.Frames[1].FunctionName)
}
