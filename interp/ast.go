// Package interp implements NAAb's tree-walking evaluator: the AST it
// consumes, the block loader contract, and the statement/expression state
// machine described in spec §4.C14.
package interp

import "github.com/naab-lang/naab/core/errors"

// Node is implemented by every AST node. Loc identifies where the node
// originated in source, used to decorate errors at the point of failure
// rather than the point where they're caught.
type Node interface {
	Loc() errors.Location
}

type pos struct {
	Location errors.Location
}

func (p pos) Loc() errors.Location { return p.Location }

// ---- Program and top-level items ----

// Program is the parser's top-level unit: a set of module imports,
// function and struct declarations, and a main body executed in order.
type Program struct {
	pos
	Uses    []*UseStmt
	Funcs   []*FuncDecl
	Structs []*StructDecl
	Main    []Stmt
}

// UseStmt binds the BlockValue obtained from the BlockLoader for Path to
// Alias in the enclosing environment. VersionReq is "" when the statement
// names no version constraint.
type UseStmt struct {
	pos
	Path       string
	Alias      string
	VersionReq string
}

// FuncDecl declares a named function; Body is executed with a child of the
// declaring environment captured at the time the FuncDecl statement runs.
type FuncDecl struct {
	pos
	Name       string
	Params     []ParamDecl
	ReturnType string // "" or "any" means unconstrained
	Body       *BlockStmt
}

// ParamDecl is one formal parameter in a function declaration or lambda.
type ParamDecl struct {
	Name    string
	Type    string
	Default Expr // nil if the parameter has no default
}

// StructDecl declares a named record type.
type StructDecl struct {
	pos
	Name   string
	Fields []FieldDecl
}

// FieldDecl is one field of a struct declaration.
type FieldDecl struct {
	Name string
	Type string
}

// ---- Statements ----

// Stmt is implemented by every statement node.
type Stmt interface {
	Node
	stmtNode()
}

// VarDecl introduces a new binding in the current scope (`let`/`var name =
// expr`). It always shadows; it never looks at an ancestor scope.
type VarDecl struct {
	pos
	Name  string
	Value Expr
}

func (*VarDecl) stmtNode() {}

// Assign writes Value to Target's innermost defining scope. Target is an
// Ident, MemberExpr, or IndexExpr — anything with an assignable location.
type Assign struct {
	pos
	Target Expr
	Value  Expr
}

func (*Assign) stmtNode() {}

// ExprStmt evaluates Expr and discards the result.
type ExprStmt struct {
	pos
	Expr Expr
}

func (*ExprStmt) stmtNode() {}

// IfStmt is the statement form of conditional execution; Else may be nil,
// a single ElseIf-chained *IfStmt, or a *BlockStmt for a trailing else.
type IfStmt struct {
	pos
	Cond Expr
	Then *BlockStmt
	Else Stmt // *IfStmt, *BlockStmt, or nil
}

func (*IfStmt) stmtNode() {}

// ForInStmt iterates Iterable, binding each element (and, for dicts, an
// optional Key name) to fresh bindings in a fresh per-iteration child scope.
type ForInStmt struct {
	pos
	KeyName   string // "" when the loop has no separate key binding
	ValueName string
	Iterable  Expr
	Body      *BlockStmt
}

func (*ForInStmt) stmtNode() {}

// WhileStmt repeats Body while Cond is truthy.
type WhileStmt struct {
	pos
	Cond Expr
	Body *BlockStmt
}

func (*WhileStmt) stmtNode() {}

// BreakStmt raises the internal break control signal, caught by the
// nearest enclosing loop.
type BreakStmt struct{ pos }

func (*BreakStmt) stmtNode() {}

// ContinueStmt raises the internal continue control signal.
type ContinueStmt struct{ pos }

func (*ContinueStmt) stmtNode() {}

// ReturnStmt raises the internal return control signal, caught by the
// enclosing function call. Value is nil for a bare `return`.
type ReturnStmt struct {
	pos
	Value Expr
}

func (*ReturnStmt) stmtNode() {}

// ThrowStmt raises a user error carrying Value's evaluated result as its
// payload.
type ThrowStmt struct {
	pos
	Value Expr
}

func (*ThrowStmt) stmtNode() {}

// TryStmt runs Body; on a caught error, binds it to CatchName and runs
// Catch (Catch may be nil, meaning errors propagate uncaught but Finally
// still runs); Finally always runs exactly once, and an error raised by
// Finally itself supersedes anything pending.
type TryStmt struct {
	pos
	Body      *BlockStmt
	CatchName string // "" if there is no catch clause
	Catch     *BlockStmt
	Finally   *BlockStmt // nil if there is no finally clause
}

func (*TryStmt) stmtNode() {}

// BlockStmt is a compound statement: a new child scope wrapping Stmts in
// source order.
type BlockStmt struct {
	pos
	Stmts []Stmt
}

func (*BlockStmt) stmtNode() {}

// ---- Expressions ----

// Expr is implemented by every expression node.
type Expr interface {
	Node
	exprNode()
}

// Literal kinds.

type IntLit struct {
	pos
	Value int64
}

func (*IntLit) exprNode() {}

type FloatLit struct {
	pos
	Value float64
}

func (*FloatLit) exprNode() {}

type StringLit struct {
	pos
	Value string
}

func (*StringLit) exprNode() {}

type BoolLit struct {
	pos
	Value bool
}

func (*BoolLit) exprNode() {}

type NullLit struct{ pos }

func (*NullLit) exprNode() {}

// Ident is a name lookup against the current environment.
type Ident struct {
	pos
	Name string
}

func (*Ident) exprNode() {}

// BinaryExpr applies Op to Left and Right (arithmetic, comparison,
// logical, string concatenation — the interpreter resolves which rule
// applies from the evaluated operand kinds).
type BinaryExpr struct {
	pos
	Op    string
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// UnaryExpr applies Op (`-`, `!`) to Operand.
type UnaryExpr struct {
	pos
	Op      string
	Operand Expr
}

func (*UnaryExpr) exprNode() {}

// CallExpr invokes Callee with Args. Callee evaluates to either a
// *value.Function or a *value.Block.
type CallExpr struct {
	pos
	Callee Expr
	Args   []Expr
}

func (*CallExpr) exprNode() {}

// MemberExpr reads Field off Object — a struct field or a dict entry.
type MemberExpr struct {
	pos
	Object Expr
	Field  string
}

func (*MemberExpr) exprNode() {}

// IndexExpr reads Object[Index] — a list element or a dict entry keyed by
// a string Value.
type IndexExpr struct {
	pos
	Object Expr
	Index  Expr
}

func (*IndexExpr) exprNode() {}

// RangeExpr produces an iterable sequence of integers [Low, High), or
// [Low, High] when Inclusive.
type RangeExpr struct {
	pos
	Low       Expr
	High      Expr
	Inclusive bool
}

func (*RangeExpr) exprNode() {}

// ListLit constructs a *value.List from Elems in order.
type ListLit struct {
	pos
	Elems []Expr
}

func (*ListLit) exprNode() {}

// DictEntry is one key/value pair of a DictLit.
type DictEntry struct {
	Key   Expr
	Value Expr
}

// DictLit constructs a *value.Dict, keyed by each entry's Key evaluated
// to a string.
type DictLit struct {
	pos
	Entries []DictEntry
}

func (*DictLit) exprNode() {}

// StructFieldInit is one field assignment of a StructLit.
type StructFieldInit struct {
	Name  string
	Value Expr
}

// StructLit constructs a *value.Struct of the named type.
type StructLit struct {
	pos
	TypeName string
	Fields   []StructFieldInit
}

func (*StructLit) exprNode() {}

// InlineCodeExpr is a `<<lang ... >>` block embedded directly in an
// expression position. Interpolated lists the NAAb names referenced
// inside Source that must be bound as read inputs when the block runs.
type InlineCodeExpr struct {
	pos
	Language      string
	Source        string
	Interpolated  []string
	Assigned      string // "" unless this inline block is the RHS of `let name = <<lang ...>>`
	DeclaredType  string
}

func (*InlineCodeExpr) exprNode() {}

// IfExpr is the expression form of a conditional: both branches must
// produce a Value.
type IfExpr struct {
	pos
	Cond Expr
	Then Expr
	Else Expr
}

func (*IfExpr) exprNode() {}

// LambdaExpr is an anonymous function literal; it captures the
// environment active at the point it's evaluated.
type LambdaExpr struct {
	pos
	Params []ParamDecl
	Body   *BlockStmt
}

func (*LambdaExpr) exprNode() {}

// MatchArm is one arm of a MatchExpr. Pattern nil means the wildcard arm
// (`_ => ...`), matching anything not already matched.
type MatchArm struct {
	Pattern Expr
	Body    Expr
}

// MatchExpr evaluates Subject once, then returns the first arm whose
// Pattern is Equal to it (wildcard arm matches unconditionally).
type MatchExpr struct {
	pos
	Subject Expr
	Arms    []MatchArm
}

func (*MatchExpr) exprNode() {}
