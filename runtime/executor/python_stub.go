//go:build !cgo

package executor

import (
	"context"

	"github.com/naab-lang/naab/core/errors"
	"github.com/naab-lang/naab/core/value"
)

// PythonExecutor is the embedded Python runtime (spec.md §4.C9). This
// build has no cgo, so the embedded interpreter is unavailable — every
// operation fails with a Runtime error whose message says the executor
// was built without cgo, rather than a link failure at build time. See python_cgo.go for the real CPython-backed
// implementation, compiled in whenever CGO_ENABLED=1.
type PythonExecutor struct{}

// NewPythonExecutor returns a Python executor that reports itself as
// uninitialised; constructing one never fails, since failing at
// construction would make every other language unavailable too.
func NewPythonExecutor() (*PythonExecutor, error) {
	return &PythonExecutor{}, nil
}

func (e *PythonExecutor) Language() string    { return "python" }
func (e *PythonExecutor) IsInitialised() bool { return false }

func (e *PythonExecutor) unavailable() error {
	return langError(e.Language(), "", errors.New(errors.Import, errors.Location{}, "python executor unavailable: built without cgo").WithCode("E203"))
}

func (e *PythonExecutor) Execute(ctx context.Context, code string) error {
	return e.unavailable()
}

func (e *PythonExecutor) ExecuteWithReturn(ctx context.Context, code string) (value.Value, error) {
	return nil, e.unavailable()
}

func (e *PythonExecutor) CallFunction(ctx context.Context, name string, args []value.Value) (value.Value, error) {
	return nil, e.unavailable()
}
