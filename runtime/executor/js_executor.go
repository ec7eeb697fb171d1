package executor

import (
	"context"
	"sync"

	"github.com/dop251/goja"

	"github.com/naab-lang/naab/core/errors"
	"github.com/naab-lang/naab/core/value"
	"github.com/naab-lang/naab/runtime/marshal"
)

// JSExecutor is the embedded JavaScript runtime (spec.md §4.C9): one
// engine context shared across every JS block in the process. Calls are
// serialised through mu, since a goja.Runtime is not safe for concurrent
// use — blocks of other languages, or independent JS blocks in different
// scheduler waves, may still run concurrently with each other; only two
// JS evaluations can never overlap.
type JSExecutor struct {
	mu         sync.Mutex
	vm         *goja.Runtime
	marshaller *marshal.JSMarshaller
}

// NewJSExecutor constructs and initialises the shared JS engine context.
func NewJSExecutor() *JSExecutor {
	vm := goja.New()
	return &JSExecutor{vm: vm, marshaller: marshal.NewJSMarshaller(vm)}
}

func (e *JSExecutor) Language() string    { return "js" }
func (e *JSExecutor) IsInitialised() bool { return e.vm != nil }

// Execute runs code for its side effects, discarding any result.
func (e *JSExecutor) Execute(ctx context.Context, code string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.vm.RunString(code)
	if err != nil {
		return langError(e.Language(), "", foreignError(err))
	}
	return nil
}

// ExecuteWithReturn evaluates code, marshals the result, and frees the
// engine value (goja values are GC'd normally; "freeing" here means not
// retaining a reference past this call, so the engine's heap doesn't
// accumulate results across blocks).
func (e *JSExecutor) ExecuteWithReturn(ctx context.Context, code string) (value.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	result, err := e.vm.RunString(code)
	if err != nil {
		return nil, langError(e.Language(), "", foreignError(err))
	}
	v, err := e.marshaller.FromForeign(result)
	if err != nil {
		return nil, langError(e.Language(), "", err)
	}
	return v, nil
}

// CallFunction invokes a global function by name.
func (e *JSExecutor) CallFunction(ctx context.Context, name string, args []value.Value) (value.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fnVal := e.vm.Get(name)
	if fnVal == nil || goja.IsUndefined(fnVal) {
		return nil, langError(e.Language(), "", errors.New(errors.Runtime, errors.Location{}, "function %q is not defined", name).WithCode("E102"))
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, langError(e.Language(), "", errors.New(errors.Runtime, errors.Location{}, "%q is not callable", name).WithCode("E102"))
	}

	jsArgs := make([]goja.Value, len(args))
	for i, a := range args {
		foreign, err := e.marshaller.ToForeign(a)
		if err != nil {
			return nil, langError(e.Language(), "", err)
		}
		jv, ok := foreign.(goja.Value)
		if !ok {
			jv = e.vm.ToValue(foreign)
		}
		jsArgs[i] = jv
	}

	result, err := fn(goja.Undefined(), jsArgs...)
	if err != nil {
		return nil, langError(e.Language(), "", foreignError(err))
	}
	v, err := e.marshaller.FromForeign(result)
	if err != nil {
		return nil, langError(e.Language(), "", err)
	}
	return v, nil
}

// foreignError unwraps a goja exception into a plain error carrying the
// JS error's message, so langError's wrapping stays uniform across
// executors instead of leaking goja's own exception type.
func foreignError(err error) error {
	if exc, ok := err.(*goja.Exception); ok {
		return errors.New(errors.Runtime, errors.Location{}, "%s", exc.Error()).WithCode("E103")
	}
	return err
}
