package executor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/naab-lang/naab/core/capability"
	"github.com/naab-lang/naab/core/errors"
	"github.com/naab-lang/naab/core/session"
	"github.com/naab-lang/naab/core/value"
	"github.com/naab-lang/naab/runtime/ffi"
	"github.com/naab-lang/naab/runtime/sandbox"
)

// CppExecutor treats a block body as an expression-oriented inline C++
// program, per spec.md §4.C9: the body is wrapped with scaffolding that
// exposes a single `naab_entry` C-ABI entry point, compiled to a shared
// object, dlopened, and called. The compiled artifact is cached keyed by
// a content hash of the (wrapped) source, so repeated calls with
// identical source skip recompilation entirely.
type CppExecutor struct {
	session session.Session
	guard   *sandbox.Guard
	compiler []string // e.g. []string{"c++", "-std=c++17", "-shared", "-fPIC"}

	mu      sync.Mutex
	byHash  map[string]uintptr // content hash -> dlopen'd handle
	symbols map[string]uintptr // content hash -> resolved naab_entry symbol
}

// NewCppExecutor builds the C++ executor. compiler is the invocation
// prefix (without -o/output or source-file arguments, which the executor
// appends for each compilation); a typical value is
// []string{"c++", "-std=c++17", "-shared", "-fPIC"}.
func NewCppExecutor(sess session.Session, guard *sandbox.Guard, compiler []string) *CppExecutor {
	return &CppExecutor{
		session:  sess,
		guard:    guard,
		compiler: compiler,
		byHash:   make(map[string]uintptr),
		symbols:  make(map[string]uintptr),
	}
}

func (e *CppExecutor) Language() string    { return "cpp" }
func (e *CppExecutor) IsInitialised() bool { return e.session != nil }

func (e *CppExecutor) Execute(ctx context.Context, code string) error {
	_, err := e.run(ctx, code, nil)
	return err
}

func (e *CppExecutor) ExecuteWithReturn(ctx context.Context, code string) (value.Value, error) {
	return e.run(ctx, code, nil)
}

// CallFunction is not addressable for inline C++ blocks — each block
// compiles to its own single `naab_entry` point (there is no notion of
// calling one of several named functions within the same block body, per
// spec.md's description of the C++ executor as "expression-oriented").
func (e *CppExecutor) CallFunction(ctx context.Context, name string, args []value.Value) (value.Value, error) {
	return nil, langError(e.Language(), "", errors.New(errors.Runtime, errors.Location{}, "unsupported: inline C++ blocks have no addressable named entry point").WithCode("E104"))
}

// scaffold wraps the raw block body with a C-ABI entry point. Arguments
// arrive as a single `long long* argv, long long argc` pair (the same
// uintptr-word ABI the Rust executor uses), matching spec.md's C-ABI
// handle convention.
func scaffold(body string) string {
	return fmt.Sprintf(`extern "C" long long naab_entry(long long* argv, long long argc) {
%s
}
`, body)
}

func (e *CppExecutor) run(ctx context.Context, code string, args []value.Value) (value.Value, error) {
	wrapped := scaffold(code)
	sum := sha256.Sum256([]byte(wrapped))
	hash := hex.EncodeToString(sum[:8])

	_, sym, err := e.compileAndLoad(ctx, wrapped, hash)
	if err != nil {
		return nil, langError(e.Language(), "", err)
	}

	words := make([]int64, len(args))
	for i, a := range args {
		u, err := toRustABI(a)
		if err != nil {
			return nil, langError(e.Language(), "", err)
		}
		words[i] = int64(u)
	}

	var argvPtr uintptr
	if len(words) > 0 {
		argvPtr = uintptr(unsafe.Pointer(&words[0]))
	}

	// Scaffolded block source is arbitrary user-supplied C++; a fault inside
	// naab_entry must not take down the host process, per spec.md §4.C8.
	result := ffi.Contain(func() (value.Value, error) {
		r1, _, errno := purego.SyscallN(sym, argvPtr, uintptr(len(words)))
		runtime.KeepAlive(words)
		if errno != 0 {
			return nil, errors.New(errors.Runtime, errors.Location{}, "naab_entry call failed: errno %d", errno).WithCode("E108")
		}
		return value.Int(int64(r1)), nil
	})
	if !result.Success {
		return nil, langError(e.Language(), "", errors.New(errors.Runtime, errors.Location{}, "%s: %s", result.ErrorTypeName, result.ErrorMessage).WithCode("E108"))
	}
	return result.Value, nil
}

func (e *CppExecutor) compileAndLoad(ctx context.Context, source, hash string) (uintptr, uintptr, error) {
	e.mu.Lock()
	handle, cached := e.byHash[hash]
	sym := e.symbols[hash]
	e.mu.Unlock()
	if cached {
		return handle, sym, nil
	}

	if err := e.guard.Check(capability.SpawnProcess, "cpp.compile", hash); err != nil {
		return 0, 0, err
	}

	srcPath := fmt.Sprintf("%s/naab-cpp-%s.cpp", e.session.Cwd(), hash)
	soPath := fmt.Sprintf("%s/naab-cpp-%s.so", e.session.Cwd(), hash)
	if err := e.session.Put(ctx, []byte(source), srcPath, fs.FileMode(0o600)); err != nil {
		return 0, 0, err
	}

	argv := append(append([]string{}, e.compiler...), "-o", soPath, srcPath)
	result, err := e.session.Run(ctx, argv, session.RunOpts{})
	if err != nil {
		return 0, 0, err
	}
	if result.ExitCode != session.ExitSuccess {
		return 0, 0, errors.New(errors.Runtime, errors.Location{}, "compilation failed: %s", string(result.Stderr)).WithCode("E109")
	}

	if err := e.guard.Check(capability.BlockLoad, "cpp.dlopen", soPath); err != nil {
		return 0, 0, err
	}
	handle, err = purego.Dlopen(soPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return 0, 0, fmt.Errorf("dlopen %s: %w", soPath, err)
	}
	sym, err = purego.Dlsym(handle, "naab_entry")
	if err != nil {
		return 0, 0, fmt.Errorf("dlsym naab_entry in %s: %w", soPath, err)
	}

	e.mu.Lock()
	e.byHash[hash] = handle
	e.symbols[hash] = sym
	e.mu.Unlock()
	return handle, sym, nil
}
