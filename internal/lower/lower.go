package lower

import (
	"cuelang.org/go/cue/token"

	"github.com/tessel-lang/tessel/internal/ast"
	"github.com/tessel-lang/tessel/internal/builtins"
	"github.com/tessel-lang/tessel/internal/ir"
)

// Importer resolves import statements. The lowering core only
// provides the SubScript entry point; path search, aliasing, and
// namespace merging are the importer's responsibility.
type Importer interface {
	Import(lw *Lowerer, stmt *ast.ImportStmt) error
}

// Options configures one lowering session.
type Options struct {
	// Args maps command-line argument names to their raw strings.
	// A `$name` reference parses the mapped string as one literal.
	Args map[string]string

	// Builtins is the registry consulted when overload resolution
	// reports no user-defined function. Defaults to builtins.Default.
	Builtins *builtins.Registry

	// Importer handles import statements. Leaving it nil makes any
	// import a structural error.
	Importer Importer
}

// Diagnostic is a non-fatal message produced during lowering, e.g.
// for unreachable code deleted by the return rectifier.
type Diagnostic struct {
	Pos     token.Position
	Message string
}

// Lowerer drives the depth-first walk of the parse tree.
type Lowerer struct {
	mod   *ir.Module
	b     *ir.Builder
	binds *BindingStore
	funcs *FuncTable
	reg   *builtins.Registry
	args  map[string]string
	imp   Importer

	// Diags collects warnings; errors abort instead.
	Diags []Diagnostic

	nextFuncID int
}

// Script lowers one script into a fresh module. The script's
// top-level statements become the body of a function named "main";
// user-defined functions become sibling function ops.
func Script(script *ast.Script, opts Options) (*ir.Module, *Lowerer, error) {
	mod := ir.NewModule()
	reg := opts.Builtins
	if reg == nil {
		reg = builtins.Default()
	}
	lw := &Lowerer{
		mod:   mod,
		b:     ir.NewBuilder(mod),
		binds: NewBindingStore(),
		funcs: NewFuncTable(),
		reg:   reg,
		args:  opts.Args,
		imp:   opts.Importer,
	}
	mainOp := lw.b.Build(script.Pos, ir.OpFunc, nil, nil)
	mainOp.Attrs = map[string]any{ir.AttrSymName: "main"}
	region := mod.NewRegion(mainOp)
	body := mod.NewBlock()
	mod.AttachBlock(region, body)
	lw.b.SetInsertionEnd(body)

	for _, s := range script.Stmts {
		if err := lw.stmt(s); err != nil {
			return nil, nil, err
		}
	}
	if t := mod.Terminator(body); t == nil || !t.IsTerminator() {
		lw.b.Build(script.Pos, ir.OpReturn, nil, nil)
	}
	return mod, lw, nil
}

// Module returns the module being lowered into.
func (lw *Lowerer) Module() *ir.Module { return lw.mod }

// Funcs returns the user-defined function table.
func (lw *Lowerer) Funcs() *FuncTable { return lw.funcs }

// Bindings returns the binding store.
func (lw *Lowerer) Bindings() *BindingStore { return lw.binds }

func (lw *Lowerer) stmt(s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.BlockStmt:
		lw.binds.Push()
		for _, inner := range s.Stmts {
			if err := lw.stmt(inner); err != nil {
				return err
			}
		}
		lw.binds.PutAll(lw.binds.Pop())
		return nil
	case *ast.ExprStmt:
		_, err := lw.expr(s.X)
		return err
	case *ast.AssignStmt:
		return lw.assign(s)
	case *ast.IfStmt:
		return lw.ifStmt(s)
	case *ast.WhileStmt:
		return lw.whileStmt(s)
	case *ast.ForStmt:
		return lw.forStmt(s)
	case *ast.ParForStmt:
		return lw.parForStmt(s)
	case *ast.FuncDecl:
		return lw.funcDecl(s)
	case *ast.ReturnStmt:
		return lw.returnStmt(s)
	case *ast.ImportStmt:
		if lw.binds.Depth() != 1 {
			return errf(ErrCodeStructural, "lower", s.Pos, "imports can only be done in the main scope")
		}
		if lw.imp == nil {
			return errf(ErrCodeStructural, "lower", s.Pos, "import of %q: no importer configured", s.Path)
		}
		return lw.imp.Import(lw, s)
	default:
		return errf(ErrCodeStructural, "lower", s.Position(), "unsupported statement node %T", s)
	}
}

func (lw *Lowerer) returnStmt(s *ast.ReturnStmt) error {
	vals := make([]ir.ValueID, 0, len(s.Values))
	for _, e := range s.Values {
		v, err := lw.exprValue(e)
		if err != nil {
			return err
		}
		vals = append(vals, v)
	}
	lw.b.Build(s.Pos, ir.OpReturn, vals, nil)
	return nil
}

func (lw *Lowerer) assign(s *ast.AssignStmt) error {
	res, err := lw.expr(s.RHS)
	if err != nil {
		return err
	}
	if len(s.Targets) == 1 {
		t := s.Targets[0]
		switch r := res.(type) {
		case ValueResult:
			return lw.assignPart(t.Pos, t.Name, t.Index, r.V)
		case ValuesResult:
			return errf(ErrCodeStructural, "lower", s.Pos,
				"trying to assign multiple results to a single variable")
		default:
			return errf(ErrCodeStructural, "lower", s.Pos,
				"right-hand side of assignment does not produce a value")
		}
	}
	vs, ok := res.(ValuesResult)
	if !ok || len(vs.Vs) != len(s.Targets) {
		return errf(ErrCodeStructural, "lower", s.Pos,
			"right-hand side expression of assignment to multiple variables must "+
				"return multiple values, one for each variable on the left-hand side")
	}
	for i, t := range s.Targets {
		if err := lw.assignPart(t.Pos, t.Name, t.Index, vs.Vs[i]); err != nil {
			return err
		}
	}
	return nil
}

// assignPart binds one assignment target, routing left indexing
// through the indexing engine.
func (lw *Lowerer) assignPart(pos token.Position, name string, idx *ast.IndexSpec, val ir.ValueID) error {
	if b, ok := lw.binds.Get(name); ok && b.ReadOnly {
		return errf(ErrCodeReadOnlyViolation, "bindings", pos,
			"trying to assign read-only variable %s", name)
	}
	if idx == nil {
		lw.binds.Put(name, Binding{Value: lw.renameIf(pos, val)})
		return nil
	}
	bnd, ok := lw.binds.Get(name)
	if !ok {
		return errf(ErrCodeUnboundVariable, "bindings", pos,
			"cannot use left indexing on variable %s before a value has been assigned to it", name)
	}
	obj, err := lw.writeIndexed(pos, bnd.Value, val, idx)
	if err != nil {
		return err
	}
	lw.binds.Put(name, Binding{Value: obj})
	return nil
}

// renameIf keeps SSA names apart from script names: when a value is
// already bound to some variable, rebinding it to another name goes
// through a rename op so the two names stay distinguishable.
func (lw *Lowerer) renameIf(pos token.Position, v ir.ValueID) ir.ValueID {
	if !lw.binds.HasValue(v) {
		return v
	}
	o := lw.b.Build(pos, ir.OpRename, []ir.ValueID{v}, []ir.Type{lw.mod.TypeOf(v)})
	return o.Result(0)
}

func (lw *Lowerer) expr(e ast.Expr) (Result, error) {
	switch e := e.(type) {
	case *ast.Literal:
		return ValueResult{V: lw.literal(e)}, nil
	case *ast.Ident:
		b, ok := lw.binds.Get(e.Name)
		if !ok {
			return nil, errf(ErrCodeUnboundVariable, "bindings", e.Pos,
				"variable `%s` referenced before assignment", e.Name)
		}
		return ValueResult{V: b.Value}, nil
	case *ast.ArgRef:
		v, err := lw.argLiteral(e)
		if err != nil {
			return nil, err
		}
		return ValueResult{V: v}, nil
	case *ast.Call:
		return lw.call(e)
	case *ast.Cast:
		v, err := lw.cast(e)
		if err != nil {
			return nil, err
		}
		return ValueResult{V: v}, nil
	case *ast.Unary:
		return lw.unary(e)
	case *ast.Binary:
		return lw.binary(e)
	case *ast.RightIdx:
		v, err := lw.readIndexed(e)
		if err != nil {
			return nil, err
		}
		return ValueResult{V: v}, nil
	default:
		return nil, errf(ErrCodeStructural, "lower", e.Position(), "unsupported expression node %T", e)
	}
}

// exprValue lowers an expression that must produce exactly one value.
func (lw *Lowerer) exprValue(e ast.Expr) (ir.ValueID, error) {
	res, err := lw.expr(e)
	if err != nil {
		return 0, err
	}
	v, ok := res.(ValueResult)
	if !ok {
		return 0, errf(ErrCodeStructural, "lower", e.Position(),
			"expression does not produce exactly one value")
	}
	return v.V, nil
}

func (lw *Lowerer) literal(e *ast.Literal) ir.ValueID {
	switch e.Kind {
	case ast.LitInt:
		return lw.b.ConstInt(e.Pos, e.Int)
	case ast.LitFloat:
		return lw.b.ConstFloat(e.Pos, e.Float)
	case ast.LitBool:
		return lw.b.ConstBool(e.Pos, e.Bool)
	default:
		return lw.b.ConstString(e.Pos, e.Str)
	}
}

func (lw *Lowerer) unary(e *ast.Unary) (Result, error) {
	v, err := lw.exprValue(e.X)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "+":
		return ValueResult{V: v}, nil
	case "-":
		o := lw.b.Build(e.Pos, ir.OpEwMinus, []ir.ValueID{v}, []ir.Type{ir.Unknown()})
		return ValueResult{V: o.Result(0)}, nil
	}
	return nil, errf(ErrCodeStructural, "lower", e.Pos, "unexpected unary op symbol %q", e.Op)
}

var binaryOps = map[string]string{
	"+":  ir.OpEwAdd,
	"-":  ir.OpEwSub,
	"*":  ir.OpEwMul,
	"/":  ir.OpEwDiv,
	"^":  ir.OpEwPow,
	"%":  ir.OpEwMod,
	"==": ir.OpEwEq,
	"!=": ir.OpEwNeq,
	"<":  ir.OpEwLt,
	"<=": ir.OpEwLe,
	">":  ir.OpEwGt,
	">=": ir.OpEwGe,
	"&&": ir.OpEwAnd,
	"||": ir.OpEwOr,
}

func (lw *Lowerer) binary(e *ast.Binary) (Result, error) {
	l, err := lw.exprValue(e.L)
	if err != nil {
		return nil, err
	}
	r, err := lw.exprValue(e.R)
	if err != nil {
		return nil, err
	}
	if e.Op == "@" {
		// Matrix multiplication keeps the left operand's type.
		f := lw.b.ConstBool(e.Pos, false)
		o := lw.b.Build(e.Pos, ir.OpMatMul, []ir.ValueID{l, r, f, f}, []ir.Type{lw.mod.TypeOf(l)})
		return ValueResult{V: o.Result(0)}, nil
	}
	name, ok := binaryOps[e.Op]
	if !ok {
		return nil, errf(ErrCodeStructural, "lower", e.Pos, "unexpected op symbol %q", e.Op)
	}
	o := lw.b.Build(e.Pos, name, []ir.ValueID{l, r}, []ir.Type{ir.Unknown()})
	return ValueResult{V: o.Result(0)}, nil
}

func (lw *Lowerer) call(e *ast.Call) (Result, error) {
	if e.Name == "map" {
		return lw.mapCall(e)
	}
	args := make([]ir.ValueID, 0, len(e.Args))
	argTypes := make([]ir.Type, 0, len(e.Args))
	for _, a := range e.Args {
		v, err := lw.exprValue(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		argTypes = append(argTypes, lw.mod.TypeOf(v))
	}
	fi, err := lw.funcs.FindMatching(e.Pos, e.Name, argTypes)
	if err != nil {
		return nil, err
	}
	if fi != nil {
		o := lw.b.Build(e.Pos, ir.OpGenericCall, args, fi.Results)
		o.Attrs = map[string]any{ir.AttrCallee: fi.Symbol}
		switch len(o.Results) {
		case 0:
			return NoResult{}, nil
		case 1:
			return ValueResult{V: o.Result(0)}, nil
		default:
			return ValuesResult{Vs: o.Results}, nil
		}
	}
	results, err := lw.reg.Build(lw.b, e.Pos, e.Name, args)
	if err != nil {
		return nil, errf(ErrCodeOverloadResolution, "builtins", e.Pos, "%v", err)
	}
	switch len(results) {
	case 0:
		return NoResult{}, nil
	case 1:
		return ValueResult{V: results[0]}, nil
	default:
		return ValuesResult{Vs: results}, nil
	}
}

// mapCall handles the higher-order builtin `map(m, f)`: the second
// argument is a function name resolved through the restricted
// single-parameter overload search and passed on as a symbol constant.
func (lw *Lowerer) mapCall(e *ast.Call) (Result, error) {
	if len(e.Args) != 2 {
		return nil, errf(ErrCodeOverloadResolution, "builtins", e.Pos,
			"builtin function `map` expects exactly 2 argument(s), but got %d", len(e.Args))
	}
	arg, err := lw.exprValue(e.Args[0])
	if err != nil {
		return nil, err
	}
	argTy := lw.mod.TypeOf(arg)
	if argTy.Kind != ir.KindMatrix {
		return nil, errf(ErrCodeUnsupportedFeature, "lower", e.Pos,
			"builtin function `map` expects an argument of type matrix as its first parameter")
	}
	fn, ok := e.Args[1].(*ast.Ident)
	if !ok {
		return nil, errf(ErrCodeStructural, "lower", e.Pos,
			"second argument of `map` must be a function name")
	}
	fi, err := lw.funcs.FindMatchingUnary(e.Pos, fn.Name, argTy.ElemType())
	if err != nil {
		return nil, err
	}
	if fi == nil {
		return nil, errf(ErrCodeOverloadResolution, "overloads", e.Pos,
			"no function definition of `%s` found", fn.Name)
	}
	sym := lw.b.ConstString(e.Pos, fi.Symbol)
	results, err := lw.reg.Build(lw.b, e.Pos, "map", []ir.ValueID{arg, sym})
	if err != nil {
		return nil, errf(ErrCodeOverloadResolution, "builtins", e.Pos, "%v", err)
	}
	return ValueResult{V: results[0]}, nil
}

// scalarTypeByName maps a value-type name from a cast or signature to
// its type.
func scalarTypeByName(pos token.Position, name string) (ir.Type, error) {
	switch name {
	case "si64":
		return ir.ScalarOf(ir.SI64), nil
	case "ui64":
		return ir.ScalarOf(ir.UI64), nil
	case "f64":
		return ir.ScalarOf(ir.F64), nil
	case "f32":
		return ir.ScalarOf(ir.F32), nil
	case "bool":
		return ir.ScalarOf(ir.Bool), nil
	case "str":
		return ir.StringType(), nil
	}
	return ir.Type{}, errf(ErrCodeUnsupportedFeature, "lower", pos, "unknown value type `%s`", name)
}

// scalarOfArg derives a scalar type from an argument type: a matrix
// contributes its element type, a frame its first column type.
func scalarOfArg(t ir.Type) ir.Type {
	switch t.Kind {
	case ir.KindMatrix:
		return t.ElemType()
	case ir.KindFrame:
		if len(t.Cols) > 0 {
			return t.Cols[0]
		}
		return ir.Unknown()
	}
	return t
}

func (lw *Lowerer) cast(e *ast.Cast) (ir.ValueID, error) {
	arg, err := lw.exprValue(e.X)
	if err != nil {
		return 0, err
	}
	argTy := lw.mod.TypeOf(arg)

	var resTy ir.Type
	switch {
	case e.DataType == "matrix":
		vt := ir.Unknown()
		if e.ValueType != "" {
			if vt, err = scalarTypeByName(e.Pos, e.ValueType); err != nil {
				return 0, err
			}
		} else {
			vt = scalarOfArg(argTy)
		}
		resTy = ir.MatrixOf(vt)
	case e.DataType == "frame":
		if e.ValueType != "" {
			return 0, errf(ErrCodeUnsupportedFeature, "lower", e.Pos,
				"casting to a frame with particular column types is not supported yet")
		}
		resTy = ir.FrameOf(scalarOfArg(argTy))
	case e.DataType == "scalar":
		if e.ValueType != "" {
			if resTy, err = scalarTypeByName(e.Pos, e.ValueType); err != nil {
				return 0, err
			}
		} else {
			resTy = scalarOfArg(argTy)
		}
	case e.DataType != "":
		return 0, errf(ErrCodeUnsupportedFeature, "lower", e.Pos,
			"unsupported data type in cast expression: %s", e.DataType)
	case e.ValueType != "":
		vt, err := scalarTypeByName(e.Pos, e.ValueType)
		if err != nil {
			return 0, err
		}
		switch argTy.Kind {
		case ir.KindMatrix:
			resTy = ir.MatrixOf(vt)
		case ir.KindFrame:
			return 0, errf(ErrCodeUnsupportedFeature, "lower", e.Pos,
				"casting to a frame with particular column types is not supported yet")
		case ir.KindUnknown:
			resTy = ir.Unknown()
		default:
			resTy = vt
		}
	default:
		return 0, errf(ErrCodeUnsupportedFeature, "lower", e.Pos,
			"casting requires the specification of the target data and/or value type")
	}
	o := lw.b.Build(e.Pos, ir.OpCast, []ir.ValueID{arg}, []ir.Type{resTy})
	return o.Result(0), nil
}

// castBoolIf inserts a cast to bool unless the value already is one.
func (lw *Lowerer) castBoolIf(pos token.Position, v ir.ValueID) ir.ValueID {
	if lw.mod.TypeOf(v).Equal(ir.BoolType()) {
		return v
	}
	o := lw.b.Build(pos, ir.OpCast, []ir.ValueID{v}, []ir.Type{ir.BoolType()})
	return o.Result(0)
}

// castSI64If inserts a cast to si64 unless the value already is one.
func (lw *Lowerer) castSI64If(pos token.Position, v ir.ValueID) ir.ValueID {
	if lw.mod.TypeOf(v).Equal(ir.SI64Type()) {
		return v
	}
	o := lw.b.Build(pos, ir.OpCast, []ir.ValueID{v}, []ir.Type{ir.SI64Type()})
	return o.Result(0)
}
