// Package errors implements NAAb's error taxonomy: categorised error kinds,
// source-location decoration, "did you mean?" suggestions, and the message
// sanitiser applied before any error reaches a user-visible surface.
package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/naab-lang/naab/core/value"
)

// Kind classifies an Error, which determines its 4-digit error-code prefix.
type Kind int

const (
	Type Kind = iota
	Runtime
	Import
	Syntax
	Name
	Val
	Throw
)

func (k Kind) String() string {
	switch k {
	case Type:
		return "Type"
	case Runtime:
		return "Runtime"
	case Import:
		return "Import"
	case Syntax:
		return "Syntax"
	case Name:
		return "Name"
	case Val:
		return "Value"
	case Throw:
		return "Throw"
	default:
		return "Unknown"
	}
}

// codePrefix returns the 4-digit error-code prefix for kind, per spec §7.
func (k Kind) codePrefix() string {
	switch k {
	case Type:
		return "E0"
	case Runtime:
		return "E1"
	case Import:
		return "E2"
	case Syntax:
		return "E3"
	case Name:
		return "E4"
	case Val:
		return "E5"
	default:
		return "E?"
	}
}

// Location is the source position where an error originated — not where it
// was caught, per spec §7's propagation policy.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Frame is one entry of an error's optional call stack.
type Frame struct {
	FunctionName string
	Location     Location
}

// Error is NAAb's single throwable type across the interpreter and every
// polyglot subsystem. Throw carries a user-thrown Value payload; every
// other kind carries a message only.
type Error struct {
	Kind        Kind
	Message     string
	Location    Location
	Frames      []Frame
	Suggestions []string
	Payload     value.Value // set only when Kind == Throw

	// Code is a short stable identifier, e.g. "E401" for the first
	// NameError subtype. The codes in use mostly have three digits after
	// the E, not four, and their leading digit usually, but not always,
	// follows the kind. Zero value means unset.
	Code string
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Kind)
	if e.Code != "" {
		fmt.Fprintf(&b, "[%s]", e.Code)
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	if loc := e.Location.String(); loc != "" {
		fmt.Fprintf(&b, " (at %s)", loc)
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, " (did you mean: %s?)", strings.Join(e.Suggestions, ", "))
	}
	return b.String()
}

// New builds an Error of the given kind at loc.
func New(kind Kind, loc Location, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Location: loc}
}

// NewThrow wraps a user-thrown Value as a Throw-kind Error.
func NewThrow(loc Location, payload value.Value) *Error {
	return &Error{Kind: Throw, Message: payload.Display(), Location: loc, Payload: payload}
}

// WithFrame prepends a stack frame (innermost call first) and returns e for
// chaining, mirroring how the interpreter decorates an error as it
// propagates out through enclosing calls.
func (e *Error) WithFrame(f Frame) *Error {
	e.Frames = append([]Frame{f}, e.Frames...)
	return e
}

// WithCode sets the stable error code and returns e for chaining.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// Suggest computes up to three nearest-name suggestions for `name` against
// `candidates`, attached to NameError and Import errors. Suggestions are
// informational: they must never replace or mask the primary message, only
// accompany it. Matching uses Levenshtein distance <= 2, taking the unique
// minimum(s); ties within the threshold are all reported, capped at three.
func Suggest(name string, candidates []string) []string {
	type scored struct {
		name string
		dist int
	}
	var matches []scored
	for _, c := range candidates {
		if c == name {
			continue
		}
		d := fuzzy.LevenshteinDistance(name, c)
		if d <= 2 {
			matches = append(matches, scored{c, d})
		}
	}
	if len(matches) == 0 {
		return nil
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].dist != matches[j].dist {
			return matches[i].dist < matches[j].dist
		}
		return matches[i].name < matches[j].name
	})
	best := matches[0].dist
	var out []string
	for _, m := range matches {
		if m.dist != best {
			break
		}
		out = append(out, m.name)
		if len(out) == 3 {
			break
		}
	}
	return out
}

// NameError builds an undefined-variable error with suggestions computed
// against the in-scope candidate list.
func NameError(loc Location, name string, candidates []string) *Error {
	e := New(Name, loc, "undefined name %q", name).WithCode("E401")
	e.Suggestions = Suggest(name, candidates)
	return e
}

// ImportError builds a block/module-not-found error with suggestions.
func ImportError(loc Location, id string, candidates []string) *Error {
	e := New(Import, loc, "block or module %q not found", id).WithCode("E201")
	e.Suggestions = Suggest(id, candidates)
	return e
}

// TypeMismatch builds a Type error that names both operand kinds, per the
// "closed sum" discipline in spec §9: every operator handler that rejects a
// Kind must say so by naming both sides.
func TypeMismatch(loc Location, op string, left, right value.Kind) *Error {
	return New(Type, loc, "operator %q not defined for %s and %s", op, left, right).WithCode("E001")
}
