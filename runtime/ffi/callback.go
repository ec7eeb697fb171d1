package ffi

import (
	"fmt"
	"strings"

	"github.com/naab-lang/naab/core/value"
)

// CallbackValidationError is raised into the foreign runtime when a
// callback invocation fails one of the four checks spec.md §4.C8 names.
type CallbackValidationError struct {
	Reason string
}

func (e *CallbackValidationError) Error() string {
	return "CallbackValidation: " + e.Reason
}

// Callback is a NAAb callable exposed to foreign code, with a declared
// signature the shim validates against on every invocation.
type Callback struct {
	Handle     *value.Function
	ParamTypes []string // declared parameter type names, "" or "any" = unconstrained
	ReturnType string   // "" or "any" = unconstrained
}

// typeMatches reports whether v's Kind satisfies declared, treating ""/"any"
// as wildcard.
func typeMatches(declared string, k value.Kind) bool {
	if declared == "" || strings.EqualFold(declared, "any") {
		return true
	}
	return strings.EqualFold(declared, k.String())
}

// ValidateArgs runs the first three of the four checks spec.md §4.C8
// lists, in order: (1) the handle is non-null, (2) argument count matches
// the declared signature, (3) each argument's Kind is compatible with its
// declared parameter type. Call it before invoking the callback; the
// fourth check, on the return value, is ValidateReturn's.
func (c *Callback) ValidateArgs(args []value.Value) error {
	if c.Handle == nil {
		return &CallbackValidationError{Reason: "callback handle is null"}
	}
	if len(args) != len(c.ParamTypes) {
		return &CallbackValidationError{
			Reason: fmt.Sprintf("expected %d argument(s), got %d", len(c.ParamTypes), len(args)),
		}
	}
	for i, arg := range args {
		if !typeMatches(c.ParamTypes[i], arg.Kind()) {
			return &CallbackValidationError{
				Reason: fmt.Sprintf("argument %d: declared type %q, got %s", i, c.ParamTypes[i], arg.Kind()),
			}
		}
	}
	return nil
}

// ValidateReturn checks that the handle is non-null and then the returned
// Value's Kind against the declared return type (check 4). Call it after
// invoking the callback, passing the produced return value.
func (c *Callback) ValidateReturn(ret value.Value) error {
	if c.Handle == nil {
		return &CallbackValidationError{Reason: "callback handle is null"}
	}
	if !typeMatches(c.ReturnType, ret.Kind()) {
		return &CallbackValidationError{
			Reason: fmt.Sprintf("return: declared type %q, got %s", c.ReturnType, ret.Kind()),
		}
	}
	return nil
}
