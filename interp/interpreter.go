package interp

import (
	"context"

	"github.com/naab-lang/naab/core/errors"
	"github.com/naab-lang/naab/core/value"
	"github.com/naab-lang/naab/runtime/executor"
	"github.com/naab-lang/naab/runtime/pool"
	"github.com/naab-lang/naab/runtime/sandbox"
	"github.com/naab-lang/naab/runtime/scheduler"
)

// signalKind classifies a controlSignal. The zero value has no constant and
// is never used: "no signal" is a nil *controlSignal from execStmt/execBody.
type signalKind int

const (
	sigReturn signalKind = iota + 1
	sigBreak
	sigContinue
)

// controlSignal is the closed sum type threading return/break/continue
// through the evaluator. Per spec.md §9 and SPEC_FULL.md §17 this is a
// deliberate, explicit choice over panic/recover: every exec call returns
// one, and every caller that can catch a given kind must say so.
type controlSignal struct {
	kind  signalKind
	value value.Value // populated only for sigReturn
}

// Interpreter walks a Program's AST, evaluating expressions and executing
// statements against a chain of *value.Environment scopes.
type Interpreter struct {
	Executors *executor.Registry
	Resolver  *BlockResolver
	Guard     *sandbox.Guard
	Scheduler *scheduler.Scheduler
	Pool      *pool.Pool

	// ShouldBreak is the optional debugger hook described in spec.md
	// §4.C14: invoked before each statement when non-nil. A true return
	// value is where a future driver would yield to an attached debugger;
	// this evaluator treats it purely as an inspection point and always
	// proceeds, since stepping/resume control lives in the driver, not here.
	ShouldBreak func(Node) bool

	structDefs map[string]*value.StructDef
}

// New builds an Interpreter. executors and guard must be non-nil; resolver
// may be nil for programs with no `use` statements; sched/p may be nil for
// programs with no inline-code blocks (a nil Scheduler on first genuine use
// is a bug in the caller, not handled gracefully, since every embedder of
// this package wires one).
func New(executors *executor.Registry, resolver *BlockResolver, guard *sandbox.Guard, sched *scheduler.Scheduler, p *pool.Pool) *Interpreter {
	return &Interpreter{
		Executors:  executors,
		Resolver:   resolver,
		Guard:      guard,
		Scheduler:  sched,
		Pool:       p,
		structDefs: make(map[string]*value.StructDef),
	}
}

// Run executes program's Uses, registers its Funcs and Structs, then
// executes Main, all against root.
func (in *Interpreter) Run(ctx context.Context, program *Program, root *value.Environment) error {
	for _, u := range program.Uses {
		if err := in.execUse(ctx, u, root); err != nil {
			return err
		}
	}
	for _, s := range program.Structs {
		in.defineStruct(s)
	}
	for _, f := range program.Funcs {
		root.Define(f.Name, in.makeFunction(f, root))
	}
	sig, err := in.execBody(ctx, program.Main, root)
	if err != nil {
		return err
	}
	if sig != nil && sig.kind == sigReturn {
		// A bare `return` at top level simply ends the program early.
		return nil
	}
	return nil
}

func (in *Interpreter) execUse(ctx context.Context, u *UseStmt, env *value.Environment) error {
	if in.Resolver == nil {
		return errors.New(errors.Import, u.Loc(), "no block loader configured, cannot resolve %q", u.Path).WithCode("E210")
	}
	block, err := in.Resolver.Resolve(u.Loc(), u.Path, u.VersionReq)
	if err != nil {
		return err
	}
	env.Define(u.Alias, block)
	return nil
}

func (in *Interpreter) defineStruct(decl *StructDecl) {
	names := make([]string, len(decl.Fields))
	types := make([]string, len(decl.Fields))
	for i, f := range decl.Fields {
		names[i] = f.Name
		types[i] = f.Type
	}
	in.structDefs[decl.Name] = value.NewStructDef(decl.Name, names, types)
}

func (in *Interpreter) makeFunction(decl *FuncDecl, captured *value.Environment) *value.Function {
	params := make([]value.Param, len(decl.Params))
	for i, p := range decl.Params {
		params[i] = value.Param{Name: p.Name, Type: p.Type, Default: p.Default}
	}
	return &value.Function{
		Name:               decl.Name,
		Params:             params,
		Body:               decl.Body,
		DeclaredReturnType: decl.ReturnType,
		SourceLine:         decl.Loc().Line,
		SourceFile:         decl.Loc().File,
		CapturedEnv:        captured,
	}
}

// ---- statement execution ----

// execBody executes a compound body's statements in order, parallelising
// runs of ≥2 inline-code-bearing statements per spec.md §4.C14's
// sliding-window rule, tolerating ordinary statements (let/assign/bare
// expression) interleaved between them — see gapTolerantInlineRun for the
// exact window policy this evaluator applies. A control-flow statement
// (if/while/for/return/break/continue/throw/try/use/a nested block) always
// ends a run where it stands; it runs through the normal execStmt dispatch
// below like any other statement outside a run.
func (in *Interpreter) execBody(ctx context.Context, stmts []Stmt, env *value.Environment) (*controlSignal, error) {
	i := 0
	for i < len(stmts) {
		if n, ordinaryIdx, blocks := in.gapTolerantInlineRun(stmts[i:]); len(blocks) >= 2 {
			if err := in.execSkippedOrdinary(ctx, stmts[i:], ordinaryIdx, env); err != nil {
				return nil, err
			}
			if in.ShouldBreak != nil {
				for _, b := range blocks {
					in.ShouldBreak(stmts[i+b.StatementIndex])
				}
			}
			if err := in.execParallelRun(ctx, blocks, env); err != nil {
				return nil, err
			}
			i += n
			continue
		}

		if in.ShouldBreak != nil {
			in.ShouldBreak(stmts[i])
		}
		sig, err := in.execStmt(ctx, stmts[i], env)
		if err != nil {
			return nil, err
		}
		if sig != nil {
			return sig, nil
		}
		i++
	}
	return nil, nil
}

// execSkippedOrdinary runs the statements gapTolerantInlineRun identified as
// interleaved ordinary statements, in order, ahead of the parallel run that
// follows them. These statements carry no inline code of their own (that is
// exactly what makes them skippable), so there is nothing for them to
// parallelise with — they just need to happen before the blocks that were
// scanned past them assume their side effects are visible.
func (in *Interpreter) execSkippedOrdinary(ctx context.Context, stmts []Stmt, ordinaryIdx []int, env *value.Environment) error {
	for _, idx := range ordinaryIdx {
		if in.ShouldBreak != nil {
			in.ShouldBreak(stmts[idx])
		}
		if _, err := in.execStmt(ctx, stmts[idx], env); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) execStmt(ctx context.Context, stmt Stmt, env *value.Environment) (*controlSignal, error) {
	switch s := stmt.(type) {
	case *VarDecl:
		v, err := in.eval(ctx, s.Value, env)
		if err != nil {
			return nil, err
		}
		env.Define(s.Name, v)
		return nil, nil

	case *Assign:
		v, err := in.eval(ctx, s.Value, env)
		if err != nil {
			return nil, err
		}
		return nil, in.assign(s.Target, v, env)

	case *ExprStmt:
		_, err := in.eval(ctx, s.Expr, env)
		return nil, err

	case *IfStmt:
		cond, err := in.eval(ctx, s.Cond, env)
		if err != nil {
			return nil, err
		}
		if cond.Truthy() {
			return in.execBody(ctx, s.Then.Stmts, env.NewChild())
		}
		switch {
		case s.Else == nil:
			return nil, nil
		case isBlockStmt(s.Else):
			return in.execBody(ctx, s.Else.(*BlockStmt).Stmts, env.NewChild())
		default:
			return in.execStmt(ctx, s.Else, env)
		}

	case *WhileStmt:
		for {
			cond, err := in.eval(ctx, s.Cond, env)
			if err != nil {
				return nil, err
			}
			if !cond.Truthy() {
				return nil, nil
			}
			sig, err := in.execBody(ctx, s.Body.Stmts, env.NewChild())
			if err != nil {
				return nil, err
			}
			if sig != nil {
				switch sig.kind {
				case sigBreak:
					return nil, nil
				case sigContinue:
					continue
				default:
					return sig, nil
				}
			}
		}

	case *ForInStmt:
		return in.execForIn(ctx, s, env)

	case *BreakStmt:
		return &controlSignal{kind: sigBreak}, nil

	case *ContinueStmt:
		return &controlSignal{kind: sigContinue}, nil

	case *ReturnStmt:
		var v value.Value = value.Null
		if s.Value != nil {
			var err error
			v, err = in.eval(ctx, s.Value, env)
			if err != nil {
				return nil, err
			}
		}
		return &controlSignal{kind: sigReturn, value: v}, nil

	case *ThrowStmt:
		v, err := in.eval(ctx, s.Value, env)
		if err != nil {
			return nil, err
		}
		return nil, errors.NewThrow(s.Loc(), v)

	case *TryStmt:
		return in.execTry(ctx, s, env)

	case *BlockStmt:
		return in.execBody(ctx, s.Stmts, env.NewChild())

	default:
		return nil, errors.New(errors.Runtime, stmt.Loc(), "unhandled statement type %T", stmt).WithCode("E100")
	}
}

func isBlockStmt(s Stmt) bool {
	_, ok := s.(*BlockStmt)
	return ok
}

func (in *Interpreter) execForIn(ctx context.Context, s *ForInStmt, env *value.Environment) (*controlSignal, error) {
	iterable, err := in.eval(ctx, s.Iterable, env)
	if err != nil {
		return nil, err
	}

	iterate := func(key value.Value, val value.Value) (*controlSignal, error) {
		child := env.NewChild()
		if s.KeyName != "" {
			child.Define(s.KeyName, key)
		}
		child.Define(s.ValueName, val)
		sig, err := in.execBody(ctx, s.Body.Stmts, child)
		return sig, err
	}

	switch it := iterable.(type) {
	case *value.List:
		for i := 0; i < it.Len(); i++ {
			elem, _ := it.Get(i)
			sig, err := iterate(value.Int(i), elem)
			if err != nil {
				return nil, err
			}
			if sig != nil {
				switch sig.kind {
				case sigBreak:
					return nil, nil
				case sigContinue:
					continue
				default:
					return sig, nil
				}
			}
		}
		return nil, nil

	case *value.Dict:
		for _, k := range it.Keys() {
			v, _ := it.Get(k)
			sig, err := iterate(value.Str(k), v)
			if err != nil {
				return nil, err
			}
			if sig != nil {
				switch sig.kind {
				case sigBreak:
					return nil, nil
				case sigContinue:
					continue
				default:
					return sig, nil
				}
			}
		}
		return nil, nil

	default:
		return nil, errors.New(errors.Type, s.Loc(), "cannot iterate over %s", iterable.Kind()).WithCode("E002")
	}
}

// execTry implements save/restore finally semantics: the Body/Catch error
// (if any, after catch handling) is captured, Finally always runs exactly
// once, and an error raised by Finally itself supersedes whatever was
// pending, per spec.md §4.C14's error-propagation rule.
func (in *Interpreter) execTry(ctx context.Context, s *TryStmt, env *value.Environment) (*controlSignal, error) {
	sig, bodyErr := in.execBody(ctx, s.Body.Stmts, env.NewChild())
	pendingSig, pendingErr := sig, bodyErr

	if pendingErr != nil && s.Catch != nil {
		naabErr, ok := pendingErr.(*errors.Error)
		if ok {
			catchEnv := env.NewChild()
			if s.CatchName != "" {
				catchEnv.Define(s.CatchName, catchPayload(naabErr))
			}
			pendingSig, pendingErr = in.execBody(ctx, s.Catch.Stmts, catchEnv)
		}
	}

	if s.Finally != nil {
		finallySig, finallyErr := in.execBody(ctx, s.Finally.Stmts, env.NewChild())
		if finallyErr != nil {
			return nil, finallyErr
		}
		if finallySig != nil {
			return finallySig, nil
		}
	}

	return pendingSig, pendingErr
}

// catchPayload recovers the Value bound to a catch clause: a user `throw`
// carries its payload directly; every other error kind is surfaced as a
// string describing it, since there is no richer Value to hand back.
func catchPayload(e *errors.Error) value.Value {
	if e.Kind == errors.Throw && e.Payload != nil {
		return e.Payload
	}
	return value.Str(e.Error())
}

func (in *Interpreter) assign(target Expr, v value.Value, env *value.Environment) error {
	switch t := target.(type) {
	case *Ident:
		if !env.Set(t.Name, v) {
			return errors.NameError(t.Loc(), t.Name, env.AllNames())
		}
		return nil

	case *MemberExpr:
		obj, err := in.eval(context.Background(), t.Object, env)
		if err != nil {
			return err
		}
		switch o := obj.(type) {
		case *value.Struct:
			if !o.SetFieldByName(t.Field, v) {
				return errors.New(errors.Runtime, t.Loc(), "struct %s has no field %q", o.Def.TypeName, t.Field).WithCode("E110")
			}
			return nil
		case *value.Dict:
			o.Set(t.Field, v)
			return nil
		default:
			return errors.New(errors.Type, t.Loc(), "cannot assign member %q on %s", t.Field, obj.Kind()).WithCode("E003")
		}

	case *IndexExpr:
		obj, err := in.eval(context.Background(), t.Object, env)
		if err != nil {
			return err
		}
		idx, err := in.eval(context.Background(), t.Index, env)
		if err != nil {
			return err
		}
		switch o := obj.(type) {
		case *value.List:
			i, ok := idx.(value.Int)
			if !ok {
				return errors.New(errors.Type, t.Loc(), "list index must be int, got %s", idx.Kind()).WithCode("E004")
			}
			if !o.Set(int(i), v) {
				return errors.New(errors.Runtime, t.Loc(), "list index %d out of bounds (len %d)", i, o.Len()).WithCode("E111")
			}
			return nil
		case *value.Dict:
			key, ok := idx.(value.Str)
			if !ok {
				return errors.New(errors.Type, t.Loc(), "dict key must be string, got %s", idx.Kind()).WithCode("E005")
			}
			o.Set(string(key), v)
			return nil
		default:
			return errors.New(errors.Type, t.Loc(), "cannot index-assign on %s", obj.Kind()).WithCode("E006")
		}

	default:
		return errors.New(errors.Runtime, target.Loc(), "invalid assignment target %T", target).WithCode("E101")
	}
}

// ---- expression evaluation ----

func (in *Interpreter) eval(ctx context.Context, expr Expr, env *value.Environment) (value.Value, error) {
	switch e := expr.(type) {
	case *IntLit:
		return value.Int(e.Value), nil
	case *FloatLit:
		return value.Float(e.Value), nil
	case *StringLit:
		return value.Str(e.Value), nil
	case *BoolLit:
		return value.Bool(e.Value), nil
	case *NullLit:
		return value.Null, nil

	case *Ident:
		v, ok := env.Get(e.Name)
		if !ok {
			return nil, errors.NameError(e.Loc(), e.Name, env.AllNames())
		}
		return v, nil

	case *UnaryExpr:
		return in.evalUnary(ctx, e, env)

	case *BinaryExpr:
		return in.evalBinary(ctx, e, env)

	case *CallExpr:
		return in.evalCall(ctx, e, env)

	case *MemberExpr:
		obj, err := in.eval(ctx, e.Object, env)
		if err != nil {
			return nil, err
		}
		return in.memberGet(e, obj)

	case *IndexExpr:
		return in.evalIndex(ctx, e, env)

	case *RangeExpr:
		return in.evalRange(ctx, e, env)

	case *ListLit:
		elems := make([]value.Value, len(e.Elems))
		for i, el := range e.Elems {
			v, err := in.eval(ctx, el, env)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return value.NewList(elems...), nil

	case *DictLit:
		d := value.NewDict()
		for _, entry := range e.Entries {
			k, err := in.eval(ctx, entry.Key, env)
			if err != nil {
				return nil, err
			}
			key, ok := k.(value.Str)
			if !ok {
				return nil, errors.New(errors.Type, e.Loc(), "dict key must be string, got %s", k.Kind()).WithCode("E007")
			}
			v, err := in.eval(ctx, entry.Value, env)
			if err != nil {
				return nil, err
			}
			d.Set(string(key), v)
		}
		return d, nil

	case *StructLit:
		def, ok := in.structDefs[e.TypeName]
		if !ok {
			return nil, errors.New(errors.Name, e.Loc(), "undefined struct type %q", e.TypeName).WithCode("E402")
		}
		fields := make([]value.Value, len(def.FieldNames))
		for i := range fields {
			fields[i] = value.Null
		}
		for _, fi := range e.Fields {
			idx := def.IndexOf(fi.Name)
			if idx < 0 {
				return nil, errors.New(errors.Runtime, e.Loc(), "struct %s has no field %q", e.TypeName, fi.Name).WithCode("E112")
			}
			v, err := in.eval(ctx, fi.Value, env)
			if err != nil {
				return nil, err
			}
			fields[idx] = v
		}
		return value.NewStruct(def, fields), nil

	case *InlineCodeExpr:
		return in.evalInlineCode(ctx, e, env)

	case *IfExpr:
		cond, err := in.eval(ctx, e.Cond, env)
		if err != nil {
			return nil, err
		}
		if cond.Truthy() {
			return in.eval(ctx, e.Then, env)
		}
		return in.eval(ctx, e.Else, env)

	case *LambdaExpr:
		params := make([]value.Param, len(e.Params))
		for i, p := range e.Params {
			params[i] = value.Param{Name: p.Name, Type: p.Type, Default: p.Default}
		}
		return &value.Function{Params: params, Body: e.Body, CapturedEnv: env, SourceLine: e.Loc().Line, SourceFile: e.Loc().File}, nil

	case *MatchExpr:
		return in.evalMatch(ctx, e, env)

	default:
		return nil, errors.New(errors.Runtime, expr.Loc(), "unhandled expression type %T", expr).WithCode("E102")
	}
}

func (in *Interpreter) evalUnary(ctx context.Context, e *UnaryExpr, env *value.Environment) (value.Value, error) {
	v, err := in.eval(ctx, e.Operand, env)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "-":
		switch n := v.(type) {
		case value.Int:
			return -n, nil
		case value.Float:
			return -n, nil
		default:
			return nil, errors.New(errors.Type, e.Loc(), "operator \"-\" not defined for %s", v.Kind()).WithCode("E008")
		}
	case "!":
		return value.Bool(!v.Truthy()), nil
	default:
		return nil, errors.New(errors.Runtime, e.Loc(), "unknown unary operator %q", e.Op).WithCode("E103")
	}
}

func (in *Interpreter) evalBinary(ctx context.Context, e *BinaryExpr, env *value.Environment) (value.Value, error) {
	// Logical operators short-circuit: the right side must not be
	// evaluated when the left side already decides the result.
	if e.Op == "&&" {
		left, err := in.eval(ctx, e.Left, env)
		if err != nil {
			return nil, err
		}
		if !left.Truthy() {
			return value.Bool(false), nil
		}
		right, err := in.eval(ctx, e.Right, env)
		if err != nil {
			return nil, err
		}
		return value.Bool(right.Truthy()), nil
	}
	if e.Op == "||" {
		left, err := in.eval(ctx, e.Left, env)
		if err != nil {
			return nil, err
		}
		if left.Truthy() {
			return value.Bool(true), nil
		}
		right, err := in.eval(ctx, e.Right, env)
		if err != nil {
			return nil, err
		}
		return value.Bool(right.Truthy()), nil
	}

	left, err := in.eval(ctx, e.Left, env)
	if err != nil {
		return nil, err
	}
	right, err := in.eval(ctx, e.Right, env)
	if err != nil {
		return nil, err
	}
	return applyBinary(e.Loc(), e.Op, left, right)
}

func applyBinary(loc errors.Location, op string, left, right value.Value) (value.Value, error) {
	switch op {
	case "+":
		if ls, ok := left.(value.Str); ok {
			if rs, ok := right.(value.Str); ok {
				return ls + rs, nil
			}
			return nil, errors.TypeMismatch(loc, op, left.Kind(), right.Kind())
		}
		return arithmetic(loc, op, left, right)
	case "-", "*", "/", "%":
		return arithmetic(loc, op, left, right)
	case "==":
		return value.Bool(left.Equal(right)), nil
	case "!=":
		return value.Bool(!left.Equal(right)), nil
	case "<", "<=", ">", ">=":
		return compare(loc, op, left, right)
	default:
		return nil, errors.New(errors.Runtime, loc, "unknown binary operator %q", op).WithCode("E104")
	}
}

// asFloat coerces Int or Float to float64, the uniform coercion spec.md
// §4.C14 describes for arithmetic between numeric kinds.
func asFloat(v value.Value) (float64, bool) {
	switch n := v.(type) {
	case value.Int:
		return float64(n), true
	case value.Float:
		return float64(n), true
	default:
		return 0, false
	}
}

func arithmetic(loc errors.Location, op string, left, right value.Value) (value.Value, error) {
	li, lIsInt := left.(value.Int)
	ri, rIsInt := right.(value.Int)
	if lIsInt && rIsInt {
		switch op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		case "/":
			if ri == 0 {
				return nil, errors.New(errors.Runtime, loc, "division by zero").WithCode("E106")
			}
			return li / ri, nil
		case "%":
			if ri == 0 {
				return nil, errors.New(errors.Runtime, loc, "division by zero").WithCode("E106")
			}
			return li % ri, nil
		}
	}

	lf, lOK := asFloat(left)
	rf, rOK := asFloat(right)
	if !lOK || !rOK {
		return nil, errors.TypeMismatch(loc, op, left.Kind(), right.Kind())
	}
	switch op {
	case "+":
		return value.Float(lf + rf), nil
	case "-":
		return value.Float(lf - rf), nil
	case "*":
		return value.Float(lf * rf), nil
	case "/":
		if rf == 0 {
			return nil, errors.New(errors.Runtime, loc, "division by zero").WithCode("E106")
		}
		return value.Float(lf / rf), nil
	case "%":
		return nil, errors.TypeMismatch(loc, op, left.Kind(), right.Kind())
	}
	return nil, errors.New(errors.Runtime, loc, "unknown arithmetic operator %q", op).WithCode("E107")
}

// compare forbids cross-type comparison except between Int and Float, per
// spec.md §4.C14.
func compare(loc errors.Location, op string, left, right value.Value) (value.Value, error) {
	lf, lOK := asFloat(left)
	rf, rOK := asFloat(right)
	if !lOK || !rOK {
		return nil, errors.TypeMismatch(loc, op, left.Kind(), right.Kind())
	}
	switch op {
	case "<":
		return value.Bool(lf < rf), nil
	case "<=":
		return value.Bool(lf <= rf), nil
	case ">":
		return value.Bool(lf > rf), nil
	case ">=":
		return value.Bool(lf >= rf), nil
	}
	return nil, errors.New(errors.Runtime, loc, "unknown comparison operator %q", op).WithCode("E108")
}

func (in *Interpreter) evalIndex(ctx context.Context, e *IndexExpr, env *value.Environment) (value.Value, error) {
	obj, err := in.eval(ctx, e.Object, env)
	if err != nil {
		return nil, err
	}
	idx, err := in.eval(ctx, e.Index, env)
	if err != nil {
		return nil, err
	}
	switch o := obj.(type) {
	case *value.List:
		i, ok := idx.(value.Int)
		if !ok {
			return nil, errors.New(errors.Type, e.Loc(), "list index must be int, got %s", idx.Kind()).WithCode("E009")
		}
		v, ok := o.Get(int(i))
		if !ok {
			return nil, errors.New(errors.Val, e.Loc(), "list index %d out of bounds (len %d)", i, o.Len()).WithCode("E501")
		}
		return v, nil
	case *value.Dict:
		k, ok := idx.(value.Str)
		if !ok {
			return nil, errors.New(errors.Type, e.Loc(), "dict key must be string, got %s", idx.Kind()).WithCode("E010")
		}
		v, ok := o.Get(string(k))
		if !ok {
			return nil, errors.New(errors.Val, e.Loc(), "dict has no key %q", k).WithCode("E502")
		}
		return v, nil
	default:
		return nil, errors.New(errors.Type, e.Loc(), "cannot index %s", obj.Kind()).WithCode("E011")
	}
}

func (in *Interpreter) memberGet(e *MemberExpr, obj value.Value) (value.Value, error) {
	switch o := obj.(type) {
	case *value.Struct:
		v, ok := o.FieldByName(e.Field)
		if !ok {
			return nil, errors.New(errors.Runtime, e.Loc(), "struct %s has no field %q", o.Def.TypeName, e.Field).WithCode("E113")
		}
		return v, nil
	case *value.Dict:
		v, ok := o.Get(e.Field)
		if !ok {
			return nil, errors.New(errors.Val, e.Loc(), "dict has no key %q", e.Field).WithCode("E503")
		}
		return v, nil
	default:
		return nil, errors.New(errors.Type, e.Loc(), "cannot access member %q on %s", e.Field, obj.Kind()).WithCode("E012")
	}
}

func (in *Interpreter) evalRange(ctx context.Context, e *RangeExpr, env *value.Environment) (value.Value, error) {
	lowV, err := in.eval(ctx, e.Low, env)
	if err != nil {
		return nil, err
	}
	highV, err := in.eval(ctx, e.High, env)
	if err != nil {
		return nil, err
	}
	low, ok := lowV.(value.Int)
	if !ok {
		return nil, errors.New(errors.Type, e.Loc(), "range bound must be int, got %s", lowV.Kind()).WithCode("E013")
	}
	high, ok := highV.(value.Int)
	if !ok {
		return nil, errors.New(errors.Type, e.Loc(), "range bound must be int, got %s", highV.Kind()).WithCode("E014")
	}
	if e.Inclusive {
		high++
	}
	var elems []value.Value
	for i := low; i < high; i++ {
		elems = append(elems, i)
	}
	return value.NewList(elems...), nil
}

func (in *Interpreter) evalMatch(ctx context.Context, e *MatchExpr, env *value.Environment) (value.Value, error) {
	subject, err := in.eval(ctx, e.Subject, env)
	if err != nil {
		return nil, err
	}
	for _, arm := range e.Arms {
		if arm.Pattern == nil {
			return in.eval(ctx, arm.Body, env)
		}
		pv, err := in.eval(ctx, arm.Pattern, env)
		if err != nil {
			return nil, err
		}
		if subject.Equal(pv) {
			return in.eval(ctx, arm.Body, env)
		}
	}
	return nil, errors.New(errors.Runtime, e.Loc(), "match has no arm for %s", subject.Display()).WithCode("E114")
}

// evalCall desugars a pipeline `x |> f(args)` the same way an ordinary
// call is evaluated: the parser is expected to have already rewritten
// pipeline syntax into a CallExpr with the piped value prepended to Args,
// so this is the single call-dispatch path for both forms.
func (in *Interpreter) evalCall(ctx context.Context, e *CallExpr, env *value.Environment) (value.Value, error) {
	callee, err := in.eval(ctx, e.Callee, env)
	if err != nil {
		return nil, err
	}
	args := make([]value.Value, len(e.Args))
	for i, a := range e.Args {
		v, err := in.eval(ctx, a, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch c := callee.(type) {
	case *value.Function:
		return in.callFunction(ctx, e.Loc(), c, args)
	case *value.Block:
		return in.callBlock(ctx, e.Loc(), c, args)
	default:
		return nil, errors.New(errors.Type, e.Loc(), "%s is not callable", callee.Kind()).WithCode("E015")
	}
}

func (in *Interpreter) callFunction(ctx context.Context, loc errors.Location, fn *value.Function, args []value.Value) (value.Value, error) {
	if len(args) > len(fn.Params) {
		return nil, errors.New(errors.Runtime, loc, "%s: too many arguments (got %d, want at most %d)", fn.Display(), len(args), len(fn.Params)).WithCode("E115")
	}
	child := fn.CapturedEnv.NewChild()
	for i, p := range fn.Params {
		var v value.Value
		switch {
		case i < len(args):
			v = args[i]
		case p.Default != nil:
			defExpr, ok := p.Default.(Expr)
			if !ok {
				return nil, errors.New(errors.Runtime, loc, "%s: malformed default for parameter %q", fn.Display(), p.Name).WithCode("E116")
			}
			var err error
			v, err = in.eval(ctx, defExpr, child)
			if err != nil {
				return nil, err
			}
		default:
			return nil, errors.New(errors.Runtime, loc, "%s: missing required argument %q", fn.Display(), p.Name).WithCode("E117")
		}
		if p.Type != "" && p.Type != "any" && !typeMatches(p.Type, v) {
			return nil, errors.New(errors.Type, loc, "%s: argument %q expects %s, got %s", fn.Display(), p.Name, p.Type, v.Kind()).WithCode("E016")
		}
		child.Define(p.Name, v)
	}

	body, ok := fn.Body.(*BlockStmt)
	if !ok {
		return nil, errors.New(errors.Runtime, loc, "%s: malformed function body", fn.Display()).WithCode("E118")
	}
	sig, err := in.execBody(ctx, body.Stmts, child)
	if err != nil {
		if naabErr, ok := err.(*errors.Error); ok {
			return nil, naabErr.WithFrame(errors.Frame{FunctionName: fn.Name, Location: loc})
		}
		return nil, err
	}
	if sig != nil && sig.kind == sigReturn {
		return sig.value, nil
	}
	return value.Null, nil
}

// typeMatches reports whether v's kind is compatible with the declared
// type name. NAAb's declared parameter types name a value.Kind string
// ("int", "float", "string", "bool", "list", "dict", "struct", "function",
// "block", "foreign", or "any"/"" which always matches).
func typeMatches(declared string, v value.Value) bool {
	return declared == v.Kind().String()
}

// callBlock invokes b's executor. With no arguments, the block's source is
// evaluated directly (the common case for both an inline `<<lang ...>>`
// expression and a whole-module block obtained via `use`). With arguments,
// the block's source is treated as the addressable entry-point reference
// (e.g. a `rust://...::function` URI, where the reference itself doubles
// as the CallFunction name per spec.md §6's executor URI format) and
// dispatched through CallFunction.
func (in *Interpreter) callBlock(ctx context.Context, loc errors.Location, b *value.Block, args []value.Value) (value.Value, error) {
	if b.Metadata.ID != "" {
		if err := in.Guard.CheckBlockCall(b.Metadata.ID); err != nil {
			return nil, err
		}
	}

	var v value.Value
	var err error
	if len(args) == 0 {
		v, err = b.ExecutorRef.ExecuteWithReturn(ctx, string(b.Source))
	} else {
		v, err = b.ExecutorRef.CallFunction(ctx, string(b.Source), args)
	}
	if err != nil {
		return nil, langWrap(loc, b.Metadata.Language, err)
	}
	if b.Metadata.ID != "" {
		_ = in.Guard.LogBlockExecute(b.Metadata.ID, b.Metadata.Language, args)
	}
	return v, nil
}

func langWrap(loc errors.Location, language string, err error) error {
	if e, ok := err.(*errors.Error); ok {
		e.Location = loc
		return e
	}
	return errors.New(errors.Runtime, loc, "%s: %s", language, err).WithCode("E109")
}
