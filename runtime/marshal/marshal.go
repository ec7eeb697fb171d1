// Package marshal implements NAAb's cross-language value marshaller
// (spec.md §4.C7): bidirectional conversion between the core Value model
// and each embedded foreign runtime's native representation, plus a
// JSON-based marshaller for subprocess executors, where "marshalling" is
// serialisation onto stdin/argv rather than in-process conversion.
package marshal

import (
	"github.com/naab-lang/naab/core/errors"
	"github.com/naab-lang/naab/core/value"
)

// Marshaller converts values across one foreign-language boundary. Each
// embedded runtime (Python, JavaScript, ...) gets its own implementation;
// subprocess-based languages share JSONMarshaller.
type Marshaller interface {
	// ToForeign converts a NAAb value into this runtime's native
	// representation. Unrepresentable variants fail with a Type error.
	ToForeign(v value.Value) (any, error)

	// FromForeign converts a value produced by this runtime back into a
	// NAAb value.
	FromForeign(raw any) (value.Value, error)
}

// unsupportedType builds the Type/unsupported error spec.md §4.C7
// requires for any value variant a given runtime can't represent.
func unsupportedType(runtime string, k value.Kind) error {
	return errors.New(errors.Type, errors.Location{}, "marshalling receives an unrepresentable value: %s has no %s representation", k, runtime).WithCode("E0701")
}
