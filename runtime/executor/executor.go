// Package executor implements NAAb's polyglot executor set (spec.md
// §4.C9): a registry of per-language handles behind a common contract,
// an embedded-runtime executor for JavaScript, subprocess executors for
// C#/shell/generic languages, a dlopen/dlsym executor for Rust shared
// libraries, and a compile-and-dlopen executor for C++.
package executor

import (
	"context"
	"sync"

	"github.com/naab-lang/naab/core/errors"
	"github.com/naab-lang/naab/core/value"
)

// Executor is the contract every language implementation satisfies, per
// spec.md §4.C9's five operations.
type Executor interface {
	// Language returns the executor's identifier, e.g. "python", "js".
	Language() string

	// IsInitialised reports whether the executor is ready to accept work.
	IsInitialised() bool

	// Execute runs code for side effects only; no return value is
	// captured.
	Execute(ctx context.Context, code string) error

	// ExecuteWithReturn evaluates code expected to produce a result.
	ExecuteWithReturn(ctx context.Context, code string) (value.Value, error)

	// CallFunction invokes a named entry point in runtimes where one is
	// addressable (most embedded runtimes, and Rust shared objects).
	// Executors without addressable named entry points (plain shell,
	// inline C++) fail with Runtime/unsupported.
	CallFunction(ctx context.Context, name string, args []value.Value) (value.Value, error)
}

// Registry maps a language name to its executor handle. A handle is
// either embedded (long-lived, shared across every block of that
// language) or subprocess-style (a thin façade that spawns processes on
// demand) — the registry treats both uniformly.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register installs executor under its own Language() name, replacing
// any previous registration for that name.
func (r *Registry) Register(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[e.Language()] = e
}

// Lookup resolves language to its executor handle.
func (r *Registry) Lookup(language string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[language]
	if !ok {
		return nil, errors.New(errors.Import, errors.Location{}, "no executor registered for language %q", language).WithCode("E201")
	}
	return e, nil
}

// Languages lists every registered language name.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.executors))
	for name := range r.executors {
		out = append(out, name)
	}
	return out
}

// langError wraps err with the language and, when known, the block
// identifier, per spec.md §4.C9's failure-semantics rule that every
// executor error carries the language name and block id.
func langError(language, blockID string, err error) error {
	if err == nil {
		return nil
	}
	if blockID == "" {
		return errors.New(errors.Runtime, errors.Location{}, "[%s] %s", language, err.Error()).WithCode("E101")
	}
	return errors.New(errors.Runtime, errors.Location{}, "[%s block %s] %s", language, blockID, err.Error()).WithCode("E101")
}
