package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ebitengine/purego"

	"github.com/naab-lang/naab/core/capability"
	"github.com/naab-lang/naab/core/errors"
	"github.com/naab-lang/naab/core/value"
	"github.com/naab-lang/naab/runtime/ffi"
	"github.com/naab-lang/naab/runtime/sandbox"
)

// RustExecutor invokes functions exported from a Rust-compiled shared
// object, per spec.md §4.C9: a block reference has the form
// `rust://absolute/path/to/lib.so::function_name`. Libraries are
// dlopen'd once per process and cached by path; symbols are resolved
// once per (path, function) pair and cached likewise.
//
// Calling convention note: purego's raw invocation (purego.SyscallN)
// passes every argument as a uintptr-sized general-purpose register
// value, which is exact for Int and pointer-sized data but cannot carry
// IEEE 754 floating-point arguments or returns through the platform's
// dedicated float registers. Arguments other than Int and Bool (Float
// included) are therefore rejected with a Type error before the library
// is opened, and every return value is read from the integer return
// register as an Int; no check is made on the function's actual return
// type.
type RustExecutor struct {
	guard *sandbox.Guard

	mu      sync.Mutex
	libs    map[string]uintptr
	symbols map[string]uintptr
}

// NewRustExecutor constructs the Rust FFI executor.
func NewRustExecutor(guard *sandbox.Guard) *RustExecutor {
	return &RustExecutor{
		guard:   guard,
		libs:    make(map[string]uintptr),
		symbols: make(map[string]uintptr),
	}
}

func (e *RustExecutor) Language() string    { return "rust" }
func (e *RustExecutor) IsInitialised() bool { return true }

// rustRef is a parsed `rust://path::function` block reference.
type rustRef struct {
	path     string
	function string
}

func parseRustRef(ref string) (rustRef, error) {
	const prefix = "rust://"
	if !strings.HasPrefix(ref, prefix) {
		return rustRef{}, errors.New(errors.Runtime, errors.Location{}, "malformed rust block reference %q: missing rust:// prefix", ref).WithCode("E107")
	}
	rest := strings.TrimPrefix(ref, prefix)
	idx := strings.LastIndex(rest, "::")
	if idx < 0 {
		return rustRef{}, errors.New(errors.Runtime, errors.Location{}, "malformed rust block reference %q: missing ::function_name", ref).WithCode("E107")
	}
	return rustRef{path: rest[:idx], function: rest[idx+2:]}, nil
}

// Execute loads ref (a rust:// reference) and invokes it for effects
// only, discarding its return value.
func (e *RustExecutor) Execute(ctx context.Context, ref string) error {
	_, err := e.invoke(ref, nil)
	return err
}

// ExecuteWithReturn loads and invokes ref, returning its result.
func (e *RustExecutor) ExecuteWithReturn(ctx context.Context, ref string) (value.Value, error) {
	return e.invoke(ref, nil)
}

// CallFunction invokes name, a bare `path::function` reference (without
// the `rust://` scheme), loading the library first if it is not cached.
// A name without "::" fails with a Runtime error; it is not looked up in
// any previously loaded library.
func (e *RustExecutor) CallFunction(ctx context.Context, name string, args []value.Value) (value.Value, error) {
	if !strings.Contains(name, "::") {
		return nil, langError(e.Language(), "", errors.New(errors.Runtime, errors.Location{}, "rust CallFunction requires a path::function reference").WithCode("E107"))
	}
	return e.invoke("rust://"+name, args)
}

func (e *RustExecutor) invoke(ref string, args []value.Value) (value.Value, error) {
	if err := e.guard.Check(capability.BlockLoad, "rust.dlopen", ref); err != nil {
		return nil, err
	}

	parsed, err := parseRustRef(ref)
	if err != nil {
		return nil, langError(e.Language(), "", err)
	}

	callArgs := make([]uintptr, len(args))
	for i, a := range args {
		u, err := toRustABI(a)
		if err != nil {
			return nil, langError(e.Language(), parsed.function, err)
		}
		callArgs[i] = u
	}

	lib, err := e.loadLibrary(parsed.path)
	if err != nil {
		return nil, langError(e.Language(), parsed.function, err)
	}
	sym, err := e.resolveSymbol(lib, parsed.path, parsed.function)
	if err != nil {
		return nil, langError(e.Language(), parsed.function, err)
	}

	// The call below crosses into dlopen'd native code; a fault there (a bad
	// pointer dereference surfacing as a Go panic, since there is no foreign
	// exception type to catch on this side of the boundary) must not take
	// down the host process, per spec.md §4.C8's exception containment.
	result := ffi.Contain(func() (value.Value, error) {
		r1, _, errno := purego.SyscallN(sym, callArgs...)
		if errno != 0 {
			return nil, errors.New(errors.Runtime, errors.Location{}, "call to %s::%s failed: errno %d", parsed.path, parsed.function, errno).WithCode("E108")
		}
		return value.Int(int64(r1)), nil
	})
	if !result.Success {
		return nil, langError(e.Language(), parsed.function, errors.New(errors.Runtime, errors.Location{}, "%s: %s", result.ErrorTypeName, result.ErrorMessage).WithCode("E108"))
	}
	return result.Value, nil
}

func (e *RustExecutor) loadLibrary(path string) (uintptr, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if lib, ok := e.libs[path]; ok {
		return lib, nil
	}
	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return 0, fmt.Errorf("dlopen %s: %w", path, err)
	}
	e.libs[path] = lib
	return lib, nil
}

func (e *RustExecutor) resolveSymbol(lib uintptr, path, function string) (uintptr, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := path + "::" + function
	if sym, ok := e.symbols[key]; ok {
		return sym, nil
	}
	sym, err := purego.Dlsym(lib, function)
	if err != nil {
		return 0, fmt.Errorf("dlsym %s in %s: %w", function, path, err)
	}
	e.symbols[key] = sym
	return sym, nil
}

// toRustABI converts a Value into a uintptr-sized C-ABI word. Only
// variants with an exact uintptr representation are supported; see the
// RustExecutor doc comment for the floating-point limitation.
func toRustABI(v value.Value) (uintptr, error) {
	switch vv := v.(type) {
	case value.Int:
		return uintptr(vv), nil
	case value.Bool:
		if vv {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, errors.New(errors.Type, errors.Location{}, "marshalling receives an unrepresentable value: %s has no Rust C-ABI word representation", v.Kind()).WithCode("E0705")
	}
}
