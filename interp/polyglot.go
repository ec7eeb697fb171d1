package interp

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/naab-lang/naab/core/errors"
	"github.com/naab-lang/naab/core/value"
	"github.com/naab-lang/naab/runtime/analyzer"
)

// inlineExprOf returns the statement's inline-code expression and true, if
// stmt is a `let name = <<lang ...>>` or a bare `<<lang ...>>` expression
// statement — the only two shapes spec.md §4.C11/§4.C13 recognise as
// polyglot-bearing.
func inlineExprOf(stmt Stmt) (*InlineCodeExpr, bool) {
	switch s := stmt.(type) {
	case *VarDecl:
		if ic, ok := s.Value.(*InlineCodeExpr); ok {
			return ic, true
		}
	case *ExprStmt:
		if ic, ok := s.Expr.(*InlineCodeExpr); ok {
			return ic, true
		}
	}
	return nil, false
}

// gapTolerantInlineRun reports the maximal run of inline-code-bearing
// statements at the front of stmts, the analyzer.Block list describing
// them, and the indices (within stmts) of the ordinary statements standing
// between them that must run before execParallelRun does.
//
// Unlike a strictly-adjacent scan, this tolerates intervening statements —
// the same tolerance runtime/analyzer.Analyze already implements via its
// own gap-based batch splitting (analyzer.go's Analyze: a gap of one
// statement keeps two blocks in the same batch and so eligible for the
// same concurrent group; a gap of two or more forces a new batch, which
// Analyze still orders after the previous one). Without this scan reaching
// past the first non-bearing statement, Analyze's batch logic is built but
// never actually invoked with more than one batch. An intervening
// statement only extends the run when it is "ordinary" — isSkippableOrdinary
// — and when a later inline statement actually follows it; anything else
// (a branch, a loop, a return) ends the run there, since its behaviour
// cannot be summarised as "run it, then keep scanning".
func (in *Interpreter) gapTolerantInlineRun(stmts []Stmt) (consumed int, ordinaryIdx []int, blocks []analyzer.Block) {
	i := 0
	for i < len(stmts) {
		if ic, ok := inlineExprOf(stmts[i]); ok {
			blocks = append(blocks, analyzer.Block{
				StatementIndex: i,
				Assigned:       ic.Assigned,
				Reads:          ic.Interpolated,
				Writes:         writesOf(ic),
				Statement:      stmts[i],
			})
			i++
			continue
		}
		if !isSkippableOrdinary(stmts[i]) || !hasLaterInlineStatement(stmts[i+1:]) {
			break
		}
		ordinaryIdx = append(ordinaryIdx, i)
		i++
	}
	return i, ordinaryIdx, blocks
}

// isSkippableOrdinary reports whether stmt is guaranteed to run exactly
// once with no effect on control flow, so a gap-tolerant scan can fold it
// into the current run instead of ending the scan there.
func isSkippableOrdinary(stmt Stmt) bool {
	switch stmt.(type) {
	case *VarDecl, *Assign, *ExprStmt:
		return true
	default:
		return false
	}
}

// hasLaterInlineStatement reports whether an inline-code statement appears
// in stmts before anything that isSkippableOrdinary rejects — i.e. whether
// continuing a gap-tolerant scan past the statements immediately before
// stmts would actually reach another polyglot block worth batching with.
func hasLaterInlineStatement(stmts []Stmt) bool {
	for _, s := range stmts {
		if _, ok := inlineExprOf(s); ok {
			return true
		}
		if !isSkippableOrdinary(s) {
			return false
		}
	}
	return false
}

func writesOf(ic *InlineCodeExpr) []string {
	if ic.Assigned == "" {
		return nil
	}
	return []string{ic.Assigned}
}

// execParallelRun runs one gap-tolerant run of inline-code statements (as
// found by gapTolerantInlineRun) through the analyzer and scheduler, per
// spec.md §4.C13.
func (in *Interpreter) execParallelRun(ctx context.Context, blocks []analyzer.Block, env *value.Environment) error {
	groups := analyzer.Analyze(blocks)
	err := in.Scheduler.Run(ctx, groups, env, in.evalSchedulerBlock)
	in.recordPairings(groups)
	return err
}

// recordPairings reports every pair of blocks that shared a scheduler
// group as co-executed, per SPEC_FULL.md §18's restored pairing
// telemetry. Bare `<<lang ...>>` literals (the only inline-code shape
// this evaluator parallelises today) carry no BlockLoader-assigned id —
// that only exists for blocks obtained via `use` — so there is nothing
// to pair yet; this stays a documented no-op until inline expressions can
// reference a `use`-bound block by id.
func (in *Interpreter) recordPairings(groups []analyzer.Group) {}

// evalSchedulerBlock is the scheduler.BlockEvaluator the scheduler calls
// for each block in a parallel wave.
func (in *Interpreter) evalSchedulerBlock(ctx context.Context, block analyzer.Block, env *value.Environment) (value.Value, error) {
	stmt, _ := block.Statement.(Stmt)
	ic, ok := inlineExprOf(stmt)
	if !ok {
		return nil, errors.New(errors.Runtime, errors.Location{}, "scheduler block carries no inline-code statement").WithCode("E119")
	}
	return in.evalInlineCode(ctx, ic, env)
}

// evalInlineCode runs one `<<lang ...>>` block in isolation — the
// single-block case of §4.C13 that spec.md §4.C14 calls out directly,
// used both when an inline-code expression appears alone (no adjacent
// polyglot sibling to parallelise with) and as the per-block evaluator
// the scheduler invokes for a parallel wave.
func (in *Interpreter) evalInlineCode(ctx context.Context, ic *InlineCodeExpr, env *value.Environment) (value.Value, error) {
	exec, err := in.Executors.Lookup(ic.Language)
	if err != nil {
		return nil, errors.New(errors.Import, ic.Loc(), "no executor registered for language %q", ic.Language).WithCode("E211")
	}

	source := ic.Source
	if len(ic.Interpolated) > 0 {
		prelude, err := bindingPrelude(ic.Loc(), ic.Language, ic.Interpolated, env)
		if err != nil {
			return nil, err
		}
		source = prelude + source
	}

	v, err := exec.ExecuteWithReturn(ctx, source)
	if err != nil {
		return nil, langWrap(ic.Loc(), ic.Language, err)
	}
	return v, nil
}

// bindingPrelude renders one assignment statement per name in names,
// binding that name's current environment value as a literal in the
// target language, ahead of the block's own source. This is how a block
// receives "the current environment providing read bindings" (spec.md
// §4.C13 step 1) for the embedded executors, which take raw source text
// rather than a marshalled argument list.
func bindingPrelude(loc errors.Location, language string, names []string, env *value.Environment) (string, error) {
	var b strings.Builder
	for _, name := range names {
		v, ok := env.Get(name)
		if !ok {
			return "", errors.NameError(loc, name, env.AllNames())
		}
		lit, err := literalFor(loc, language, v)
		if err != nil {
			return "", err
		}
		switch language {
		case "js":
			fmt.Fprintf(&b, "var %s = %s;\n", name, lit)
		default: // python and any other eval-string-based embedded executor
			fmt.Fprintf(&b, "%s = %s\n", name, lit)
		}
	}
	return b.String(), nil
}

// literalFor renders v as source-text in language, recursively for List
// and Dict. Function, Block, and Foreign values have no literal form in
// a spliced prelude — passing one into an inline block this way fails
// with a Type error; call the block through a CallExpr's argument list
// instead, which marshals these kinds properly through each executor's
// own CallFunction implementation.
func literalFor(loc errors.Location, language string, v value.Value) (string, error) {
	if v.Kind() == value.KindNull {
		return nullLiteral(language), nil
	}
	switch t := v.(type) {
	case value.Int:
		return strconv.FormatInt(int64(t), 10), nil
	case value.Float:
		return strconv.FormatFloat(float64(t), 'g', -1, 64), nil
	case value.Bool:
		return boolLiteral(language, bool(t)), nil
	case value.Str:
		return strconv.Quote(string(t)), nil
	case *value.List:
		parts := make([]string, t.Len())
		for i := 0; i < t.Len(); i++ {
			elem, _ := t.Get(i)
			lit, err := literalFor(loc, language, elem)
			if err != nil {
				return "", err
			}
			parts[i] = lit
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case *value.Dict:
		parts := make([]string, 0, t.Len())
		for _, k := range t.Keys() {
			val, _ := t.Get(k)
			lit, err := literalFor(loc, language, val)
			if err != nil {
				return "", err
			}
			parts = append(parts, fmt.Sprintf("%s: %s", strconv.Quote(k), lit))
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	default:
		return "", errors.New(errors.Type, loc, "cannot pass %s into an inline %s block", v.Kind(), language).WithCode("E017")
	}
}

func nullLiteral(language string) string {
	if language == "python" {
		return "None"
	}
	return "null"
}

func boolLiteral(language string, b bool) string {
	if language == "python" {
		if b {
			return "True"
		}
		return "False"
	}
	if b {
		return "true"
	}
	return "false"
}
