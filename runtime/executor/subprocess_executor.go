package executor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"

	"github.com/naab-lang/naab/core/capability"
	"github.com/naab-lang/naab/core/errors"
	"github.com/naab-lang/naab/core/session"
	"github.com/naab-lang/naab/core/value"
	"github.com/naab-lang/naab/runtime/marshal"
	"github.com/naab-lang/naab/runtime/output"
	"github.com/naab-lang/naab/runtime/sandbox"
)

// ArgMode selects how a subprocess executor hands call arguments to the
// child process, per spec.md §4.C9 ("arguments as JSON or argv depending
// on language"). It governs arguments only — the block body itself
// always reaches the process either embedded in argv or via a materialised
// script file, per each executor's own convention (see scriptExt).
type ArgMode int

const (
	// ArgsAsArgv appends each argument's Display() string to argv.
	ArgsAsArgv ArgMode = iota
	// ArgsAsJSONStdin writes args JSON-encoded to the child's stdin.
	ArgsAsJSONStdin
)

// SubprocessExecutor is a thin façade over a language runtime that has no
// embeddable form: it spawns a fresh process per call. It covers C#,
// shell, and any generic subprocess-based language, differing only in
// how the interpreter is invoked and how arguments are handed over.
type SubprocessExecutor struct {
	language string
	session  session.Session
	guard    *sandbox.Guard

	// scriptExt, when non-empty, means code must reach the process as a
	// file rather than inline in argv (e.g. C# script hosts that require
	// a real .csx path): run writes code to a session temp file with this
	// extension before invoking buildArgv.
	scriptExt string
	// buildArgv returns the argv to run. It receives either the raw code
	// (scriptExt == "") or the path of the materialised script file.
	buildArgv func(codeOrPath string) []string
	argMode   ArgMode
	returnHint string
}

// NewSubprocessExecutor builds a subprocess-based executor that embeds
// code directly into argv (the common case: shell, and any interpreter
// invoked as `interpreter -c <code>`).
func NewSubprocessExecutor(language string, sess session.Session, guard *sandbox.Guard, buildArgv func(code string) []string, mode ArgMode, returnHint string) *SubprocessExecutor {
	return &SubprocessExecutor{
		language:   language,
		session:    sess,
		guard:      guard,
		buildArgv:  buildArgv,
		argMode:    mode,
		returnHint: returnHint,
	}
}

// NewScriptFileExecutor builds a subprocess-based executor whose
// interpreter requires a real file on disk rather than an inline code
// argument. buildArgv receives the materialised script's path.
func NewScriptFileExecutor(language string, sess session.Session, guard *sandbox.Guard, scriptExt string, buildArgv func(path string) []string, mode ArgMode, returnHint string) *SubprocessExecutor {
	return &SubprocessExecutor{
		language:   language,
		session:    sess,
		guard:      guard,
		scriptExt:  scriptExt,
		buildArgv:  buildArgv,
		argMode:    mode,
		returnHint: returnHint,
	}
}

func (e *SubprocessExecutor) Language() string    { return e.language }
func (e *SubprocessExecutor) IsInitialised() bool { return e.session != nil }

func (e *SubprocessExecutor) Execute(ctx context.Context, code string) error {
	_, err := e.run(ctx, code, nil)
	return err
}

func (e *SubprocessExecutor) ExecuteWithReturn(ctx context.Context, code string) (value.Value, error) {
	return e.run(ctx, code, nil)
}

// CallFunction has no addressable entry-point convention shared across
// every subprocess language at this layer; callers that know the target
// language's call convention build an appropriate shim and call
// ExecuteWithReturn directly. A bare CallFunction on the generic
// executor fails with Runtime/unsupported, per spec.md §4.C9.
func (e *SubprocessExecutor) CallFunction(ctx context.Context, name string, args []value.Value) (value.Value, error) {
	return nil, langError(e.language, "", errors.New(errors.Runtime, errors.Location{}, "unsupported: %s has no addressable named entry point", e.language).WithCode("E104"))
}

func (e *SubprocessExecutor) run(ctx context.Context, code string, args []value.Value) (value.Value, error) {
	if err := e.guard.Check(capability.SpawnProcess, "executor.run", e.language); err != nil {
		return nil, err
	}

	codeRef := code
	if e.scriptExt != "" {
		path, err := e.materialiseScript(ctx, code)
		if err != nil {
			return nil, langError(e.language, "", err)
		}
		codeRef = path
	}
	argv := e.buildArgv(codeRef)

	var stdin []byte
	switch {
	case e.argMode == ArgsAsJSONStdin && len(args) > 0:
		encoded, err := marshal.MarshalArgs(args)
		if err != nil {
			return nil, langError(e.language, "", err)
		}
		stdin = encoded
	case e.argMode == ArgsAsArgv:
		for _, a := range args {
			argv = append(argv, a.Display())
		}
	}

	result, err := e.session.Run(ctx, argv, session.RunOpts{Stdin: bytes.NewReader(stdin)})
	if err != nil {
		return nil, langError(e.language, "", err)
	}
	if result.ExitCode == session.ExitCanceled {
		return nil, langError(e.language, "", errors.New(errors.Runtime, errors.Location{}, "timeout").WithCode("E105"))
	}
	if result.ExitCode != session.ExitSuccess {
		return nil, langError(e.language, "", errors.New(errors.Runtime, errors.Location{}, "exited with code %d: %s", result.ExitCode, string(result.Stderr)).WithCode("E106"))
	}

	parsed := output.Parse(string(result.Stdout), e.returnHint)
	return parsed.ReturnValue, nil
}

// materialiseScript writes code to a session-local temp file keyed by its
// content hash, so repeated calls with identical source reuse the same
// path instead of growing the filesystem unboundedly.
func (e *SubprocessExecutor) materialiseScript(ctx context.Context, code string) (string, error) {
	sum := sha256.Sum256([]byte(code))
	path := fmt.Sprintf("%s/naab-block-%s%s", e.session.Cwd(), hex.EncodeToString(sum[:8]), e.scriptExt)
	if err := e.session.Put(ctx, []byte(code), path, fs.FileMode(0o600)); err != nil {
		return "", err
	}
	return path, nil
}

// NewShellExecutor builds the generic shell subprocess executor: the
// block body is run as a `/bin/sh -c` script; call arguments are
// appended to argv and become `$1`, `$2`, ... inside the script, per
// POSIX shell convention.
func NewShellExecutor(sess session.Session, guard *sandbox.Guard) *SubprocessExecutor {
	return NewSubprocessExecutor("shell", sess, guard, func(code string) []string {
		return []string{"/bin/sh", "-c", code, "sh"}
	}, ArgsAsArgv, "string")
}

// NewCSharpExecutor builds the C# subprocess executor: the block body is
// materialised to a `.csx` file (dotnet-script requires a real path —
// it has no inline-code flag) and run via `dotnet-script`; call
// arguments follow `--` and are available to the script as
// `Args[0]`, `Args[1]`, ...
func NewCSharpExecutor(sess session.Session, guard *sandbox.Guard) *SubprocessExecutor {
	return NewScriptFileExecutor("csharp", sess, guard, ".csx", func(path string) []string {
		return []string{"dotnet-script", path, "--"}
	}, ArgsAsArgv, "string")
}
