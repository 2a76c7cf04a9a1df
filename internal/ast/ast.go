package ast

import "cuelang.org/go/cue/token"

// Pos locates a node in the original script source.
type Pos = token.Position

// Stmt is a sealed interface over statement nodes.
type Stmt interface {
	stmtNode()
	Position() Pos
}

// Expr is a sealed interface over expression nodes.
type Expr interface {
	exprNode()
	Position() Pos
}

// Script is the root of one parsed script file.
type Script struct {
	Pos   Pos
	Stmts []Stmt
}

// BlockStmt is a braced statement list introducing a scope.
type BlockStmt struct {
	Pos   Pos
	Stmts []Stmt
}

// ExprStmt evaluates an expression for its effect.
type ExprStmt struct {
	Pos Pos
	X   Expr
}

// AssignTarget is one left-hand side of an assignment, optionally
// with left indexing (`x[rows, cols] = v`).
type AssignTarget struct {
	Pos   Pos
	Name  string
	Index *IndexSpec
}

// AssignStmt assigns the right-hand side to one or more targets. With
// multiple targets the RHS must produce exactly one value per target.
type AssignStmt struct {
	Pos     Pos
	Targets []AssignTarget
	RHS     Expr
}

// IfStmt is a conditional with an optional else branch.
type IfStmt struct {
	Pos  Pos
	Cond Expr
	Then Stmt
	Else Stmt // nil if absent
}

// WhileStmt is a pre-tested (while) or post-tested (do-while) loop.
type WhileStmt struct {
	Pos        Pos
	Cond       Expr
	Body       Stmt
	PostTested bool
}

// ForStmt is a counted loop over an inclusive, bidirectional range.
// Step is nil when omitted.
type ForStmt struct {
	Pos      Pos
	Var      string
	From, To Expr
	Step     Expr
	Body     Stmt
}

// ParForStmt is a parallel counted loop. Its body denotes an
// independent task; bounds are ascending only.
type ParForStmt struct {
	Pos      Pos
	Var      string
	From, To Expr
	Step     Expr
	Body     Stmt
}

// TypeRef names a declared type in a function signature. Data is
// "matrix" (with Elem naming the element value type, possibly empty
// for unknown) or empty with Scalar naming a scalar value type; a
// fully empty TypeRef means unknown.
type TypeRef struct {
	Pos    Pos
	Data   string
	Elem   string
	Scalar string
}

// Param is one function parameter, optionally typed.
type Param struct {
	Pos  Pos
	Name string
	Type *TypeRef // nil means unknown
}

// FuncDecl declares a user-defined function. Declared result types
// are optional; when present they enable recursion and are checked
// against the body's trailing return.
type FuncDecl struct {
	Pos     Pos
	Name    string
	Params  []Param
	Results []TypeRef // nil when not declared
	Body    *BlockStmt
}

// ReturnStmt returns zero or more values from a function.
type ReturnStmt struct {
	Pos    Pos
	Values []Expr
}

// ImportStmt imports another script file. Path resolution and
// namespacing are the importer's responsibility.
type ImportStmt struct {
	Pos   Pos
	Path  string
	Alias string
}

// LitKind discriminates literal payloads.
type LitKind int

const (
	LitInt LitKind = iota
	LitFloat
	LitBool
	LitString
)

// Literal is a constant of one of the four literal kinds.
type Literal struct {
	Pos   Pos
	Kind  LitKind
	Int   int64
	Float float64
	Bool  bool
	Str   string
}

// Ident references a bound variable by its (possibly dotted) name.
type Ident struct {
	Pos  Pos
	Name string
}

// ArgRef references a command-line argument (`$name`); its mapped
// string is parsed as exactly one literal at the reference site.
type ArgRef struct {
	Pos  Pos
	Name string
}

// Call invokes a user-defined function or a builtin by dotted name.
type Call struct {
	Pos  Pos
	Name string
	Args []Expr
}

// Cast converts an expression to a target data and/or value type,
// e.g. `as.matrix<f64>(x)`, `as.scalar(x)`, `as.si64(x)`.
type Cast struct {
	Pos       Pos
	DataType  string // "matrix", "frame", "scalar", or empty
	ValueType string // scalar value type name, or empty
	X         Expr
}

// Unary applies "-" or "+" to an expression.
type Unary struct {
	Pos Pos
	Op  string
	X   Expr
}

// Binary applies an infix operator to two expressions.
type Binary struct {
	Pos  Pos
	Op   string
	L, R Expr
}

// RangeSpec is one axis of an indexing expression: either a single
// position (Point non-nil) or a half-open range with optionally
// defaulted bounds. A nil *RangeSpec means the axis is unspecified.
type RangeSpec struct {
	Pos   Pos
	Point Expr // single position; nil for a range
	Lo    Expr // inclusive lower bound; nil defaults to 0
	Hi    Expr // exclusive upper bound; nil defaults to the axis size
}

// IndexSpec is a two-axis (rows, cols) index specification.
type IndexSpec struct {
	Pos  Pos
	Rows *RangeSpec
	Cols *RangeSpec
}

// RightIdx extracts or slices from an object (`x[rows, cols]`), or
// filters it by per-axis selection vectors (`x[[rows, cols]]`) when
// Filter is set. Filter axes use the Point form only.
type RightIdx struct {
	Pos    Pos
	Obj    Expr
	Index  IndexSpec
	Filter bool
}

func (*BlockStmt) stmtNode()  {}
func (*ExprStmt) stmtNode()   {}
func (*AssignStmt) stmtNode() {}
func (*IfStmt) stmtNode()     {}
func (*WhileStmt) stmtNode()  {}
func (*ForStmt) stmtNode()    {}
func (*ParForStmt) stmtNode() {}
func (*FuncDecl) stmtNode()   {}
func (*ReturnStmt) stmtNode() {}
func (*ImportStmt) stmtNode() {}

func (s *BlockStmt) Position() Pos  { return s.Pos }
func (s *ExprStmt) Position() Pos   { return s.Pos }
func (s *AssignStmt) Position() Pos { return s.Pos }
func (s *IfStmt) Position() Pos     { return s.Pos }
func (s *WhileStmt) Position() Pos  { return s.Pos }
func (s *ForStmt) Position() Pos    { return s.Pos }
func (s *ParForStmt) Position() Pos { return s.Pos }
func (s *FuncDecl) Position() Pos   { return s.Pos }
func (s *ReturnStmt) Position() Pos { return s.Pos }
func (s *ImportStmt) Position() Pos { return s.Pos }

func (*Literal) exprNode()  {}
func (*Ident) exprNode()    {}
func (*ArgRef) exprNode()   {}
func (*Call) exprNode()     {}
func (*Cast) exprNode()     {}
func (*Unary) exprNode()    {}
func (*Binary) exprNode()   {}
func (*RightIdx) exprNode() {}

func (e *Literal) Position() Pos  { return e.Pos }
func (e *Ident) Position() Pos    { return e.Pos }
func (e *ArgRef) Position() Pos   { return e.Pos }
func (e *Call) Position() Pos     { return e.Pos }
func (e *Cast) Position() Pos     { return e.Pos }
func (e *Unary) Position() Pos    { return e.Pos }
func (e *Binary) Position() Pos   { return e.Pos }
func (e *RightIdx) Position() Pos { return e.Pos }

// Int builds an integer literal, a convenience for tests and for the
// CLI-argument literal parser.
func Int(pos Pos, v int64) *Literal { return &Literal{Pos: pos, Kind: LitInt, Int: v} }

// Float builds a float literal.
func Float(pos Pos, v float64) *Literal { return &Literal{Pos: pos, Kind: LitFloat, Float: v} }

// BoolLit builds a boolean literal.
func BoolLit(pos Pos, v bool) *Literal { return &Literal{Pos: pos, Kind: LitBool, Bool: v} }

// Str builds a string literal.
func Str(pos Pos, v string) *Literal { return &Literal{Pos: pos, Kind: LitString, Str: v} }
