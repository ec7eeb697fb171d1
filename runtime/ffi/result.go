// Package ffi implements NAAb's FFI boundary: exception containment for
// foreign invocations, callback signature/arity/type validation, and async
// callback wrappers (blocking, async-future, retry, parallel-all, race).
package ffi

import (
	"fmt"

	"github.com/naab-lang/naab/core/value"
)

// Result is the tagged outcome of a foreign invocation: either a value on
// success, or a foreign error type name and message on failure. Exactly one
// of the two branches is populated.
type Result struct {
	Success bool
	Value   value.Value

	ErrorTypeName string
	ErrorMessage  string
}

// Ok wraps a successful foreign call.
func Ok(v value.Value) Result { return Result{Success: true, Value: v} }

// Err wraps a foreign exception, naming the foreign runtime's error type.
func Err(typeName, message string) Result {
	return Result{Success: false, ErrorTypeName: typeName, ErrorMessage: message}
}

// Contain runs fn, converting any Go panic raised while crossing the FFI
// boundary (an uncaught foreign exception the executor could not convert to
// a Result any other way) into an Err result instead of propagating the
// panic into the host interpreter. This is the "exception containment"
// behaviour of spec.md §4.C8: a foreign fault terminates only the current
// evaluation, not the host process.
func Contain(fn func() (value.Value, error)) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Err("PanicInForeignCode", panicMessage(r))
		}
	}()

	v, err := fn()
	if err != nil {
		return Err("ForeignError", err.Error())
	}
	return Ok(v)
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	if s, ok := r.(string); ok {
		return s
	}
	return fmt.Sprintf("unrecognised foreign panic value: %v", r)
}
