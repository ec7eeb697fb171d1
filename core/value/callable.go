package value

import (
	"context"
	"fmt"
	"sync"
)

// Param describes one formal parameter of a user-defined function.
type Param struct {
	Name    string
	Type    string // declared type name; "" or "any" means unconstrained
	Default any    // interp-owned default-expression node, nil if none
}

// Function is a user-defined function closure. Body is an opaque,
// interp-owned compound-statement node: core/value has no dependency on
// the AST package, so the interpreter type-asserts it back on call.
type Function struct {
	Name               string
	Params             []Param
	Body               any
	DeclaredReturnType string
	SourceFile         string
	SourceLine         int
	CapturedEnv        *Environment
}

func (f *Function) Kind() Kind           { return KindFunction }
func (f *Function) Truthy() bool         { return true }
func (f *Function) Traverse(func(Value)) {}
func (f *Function) Display() string {
	if f.Name == "" {
		return "<lambda>"
	}
	return fmt.Sprintf("<function %s>", f.Name)
}
func (f *Function) Equal(other Value) bool {
	o, ok := other.(*Function)
	return ok && f == o
}

// ExecutorHandle is the contract every per-language executor (embedded or
// subprocess-backed) implements. It lives in core/value, not in the
// runtime/executor package, purely to let a Block value hold a reference
// to its executor without core depending on runtime (runtime depends on
// core for the Value model, so the dependency cannot run the other way).
type ExecutorHandle interface {
	// Language returns the executor's language identifier, e.g. "python".
	Language() string
	// IsInitialised reports whether the executor is ready to accept work.
	IsInitialised() bool
	// Execute runs source for side effects only; no return value captured.
	Execute(ctx context.Context, source string) error
	// CallFunction invokes a named entry point, where the language
	// exposes one (e.g. a Rust symbol, a Python top-level function).
	CallFunction(ctx context.Context, name string, args []Value) (Value, error)
	// ExecuteWithReturn evaluates source expected to produce a result.
	ExecuteWithReturn(ctx context.Context, source string) (Value, error)
}

// BlockMetadata identifies a foreign-code block: either a registry-managed
// external unit or an inline `<<lang ...>>` expression compiled in place.
type BlockMetadata struct {
	ID       string // empty for inline blocks
	Language string
	Version  string
	Hash     string
}

// Block is a foreign-code block bound to the executor that will run it.
// ExecutorRef is borrowed (shared across every block of that language, e.g.
// one Python interpreter) or owned (one per block, e.g. a freshly compiled
// C++ artifact) depending on the language.
type Block struct {
	Metadata    BlockMetadata
	Source      []byte
	ExecutorRef ExecutorHandle
}

func (b *Block) Kind() Kind           { return KindBlock }
func (b *Block) Truthy() bool         { return true }
func (b *Block) Traverse(func(Value)) {}
func (b *Block) Display() string {
	if b.Metadata.ID != "" {
		return fmt.Sprintf("<block %s:%s>", b.Metadata.Language, b.Metadata.ID)
	}
	return fmt.Sprintf("<block %s:inline>", b.Metadata.Language)
}
func (b *Block) Equal(other Value) bool {
	o, ok := other.(*Block)
	return ok && b == o
}

// Foreign is an opaque handle into a foreign runtime (e.g. a Python object
// reference). Its drop action re-enters the foreign runtime to release the
// reference and must be idempotent and safe to call from whatever context
// releases the last binding (GC finalizer, explicit close, or scope exit).
type Foreign struct {
	Language string
	Handle   any

	mu      sync.Mutex
	dropped bool
	drop    func()
}

// NewForeign wraps handle with language and a release action. drop may be
// nil if the foreign object needs no cleanup.
func NewForeign(language string, handle any, drop func()) *Foreign {
	return &Foreign{Language: language, Handle: handle, drop: drop}
}

func (f *Foreign) Kind() Kind           { return KindForeign }
func (f *Foreign) Truthy() bool         { return true }
func (f *Foreign) Traverse(func(Value)) {}
func (f *Foreign) Display() string      { return fmt.Sprintf("<foreign %s>", f.Language) }
func (f *Foreign) Equal(other Value) bool {
	o, ok := other.(*Foreign)
	return ok && f == o
}

// Drop invokes the release action at most once, re-entering the foreign
// runtime under its own lock (the drop closure is responsible for that
// locking; core/value only guarantees idempotence).
func (f *Foreign) Drop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dropped {
		return
	}
	f.dropped = true
	if f.drop != nil {
		f.drop()
	}
}
