// Package session provides the local execution substrate used by NAAb's
// subprocess-based executors (shell, C#, generic external-process blocks)
// and by any block operation that reads or writes the host filesystem.
// Every side-effecting method consults a capability.Guard before acting,
// per spec §4.C6.
package session

import (
	"context"
	"io"
	"io/fs"
)

// Session is an execution context for running external processes and
// touching the filesystem on behalf of a block. NAAb only ever executes
// locally — there is no remote transport — but the interface is kept
// narrow so a future sandboxed or containerised implementation can satisfy
// it without touching call sites.
type Session interface {
	// Run executes a command with arguments. Context controls cancellation
	// and timeouts (see core/limits.Timeout).
	Run(ctx context.Context, argv []string, opts RunOpts) (Result, error)

	// Put writes data to a file on the session's filesystem.
	Put(ctx context.Context, data []byte, path string, mode fs.FileMode) error

	// Get reads data from a file on the session's filesystem.
	Get(ctx context.Context, path string) ([]byte, error)

	// Env returns an immutable snapshot of environment variables.
	Env() map[string]string

	// WithEnv returns a new Session with environment delta applied
	// (copy-on-write); the delta only applies to executions from the
	// returned Session.
	WithEnv(delta map[string]string) Session

	// WithWorkdir returns a new Session with working directory set
	// (copy-on-write).
	WithWorkdir(dir string) Session

	// Cwd returns the current working directory.
	Cwd() string

	// ID returns an identifier for this session, used for session-scoped
	// audit context. LocalSession returns "local" for every instance.
	ID() string

	// Close releases any resources held by the session.
	Close() error
}

// RunOpts configures a single command execution.
type RunOpts struct {
	Stdin  io.Reader
	Stdout io.Writer // if nil, captured in Result.Stdout
	Stderr io.Writer // if nil, captured in Result.Stderr
	Dir    string    // overrides the session's working directory for this run only
}

// Result is the outcome of a command execution.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Standard exit codes, mirrored by the subprocess executor when translating
// a Result into an interpreter-visible outcome.
const (
	ExitSuccess  = 0
	ExitCanceled = -1
	ExitFailure  = 1
)
