package lower_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessel-lang/tessel/internal/ast"
	"github.com/tessel-lang/tessel/internal/ir"
	"github.com/tessel-lang/tessel/internal/lower"
	"github.com/tessel-lang/tessel/internal/testutil"
)

// funcBlock returns the body block of the function op carrying the
// given symbol.
func funcBlock(t *testing.T, m *ir.Module, sym string) ir.BlockID {
	t.Helper()
	for _, id := range m.BlockOf(m.Body).Ops {
		o := m.Op(id)
		if o.Name == ir.OpFunc && o.Attrs[ir.AttrSymName] == sym {
			require.NotEmpty(t, o.Regions, "function %q has no body region", sym)
			return m.RegionOf(o.Regions[0]).Blocks[0]
		}
	}
	t.Fatalf("no function %q in module", sym)
	return 0
}

func opNames(m *ir.Module, blk ir.BlockID) []string {
	var names []string
	for _, id := range m.BlockOf(blk).Ops {
		if o := m.Op(id); !o.Erased() {
			names = append(names, o.Name)
		}
	}
	return names
}

func binding(t *testing.T, lw *lower.Lowerer, name string) ir.ValueID {
	t.Helper()
	b, ok := lw.Bindings().Get(name)
	require.True(t, ok, "variable %q is not bound", name)
	return b.Value
}

func TestLiteralTypes(t *testing.T) {
	mod, lw := testutil.MustLower(t, testutil.Script(
		testutil.Assign(1, "a", ast.Int(testutil.Pos(1), 1)),
		testutil.Assign(2, "b", ast.Float(testutil.Pos(2), 1.5)),
		testutil.Assign(3, "c", ast.BoolLit(testutil.Pos(3), true)),
		testutil.Assign(4, "d", ast.Str(testutil.Pos(4), "x")),
	))

	assert.True(t, mod.TypeOf(binding(t, lw, "a")).Equal(ir.SI64Type()))
	assert.True(t, mod.TypeOf(binding(t, lw, "b")).Equal(ir.F64Type()))
	assert.True(t, mod.TypeOf(binding(t, lw, "c")).Equal(ir.BoolType()))
	assert.True(t, mod.TypeOf(binding(t, lw, "d")).Equal(ir.StringType()))
}

func TestUnboundVariable(t *testing.T) {
	err := testutil.LowerErr(t, testutil.Script(
		testutil.Assign(1, "b", &ast.Ident{Pos: testutil.Pos(1), Name: "a"}),
	))
	assert.True(t, lower.IsUnboundVariable(err))
	assert.Contains(t, err.Error(), "variable `a` referenced before assignment")
}

func TestRebindingGoesThroughRename(t *testing.T) {
	mod, lw := testutil.MustLower(t, testutil.Script(
		testutil.Assign(1, "a", ast.Int(testutil.Pos(1), 1)),
		testutil.Assign(2, "b", &ast.Ident{Pos: testutil.Pos(2), Name: "a"}),
	))

	a, b := binding(t, lw, "a"), binding(t, lw, "b")
	assert.NotEqual(t, a, b)
	assert.Equal(t, ir.OpConstant, mod.DefOp(a).Name)
	require.Equal(t, ir.OpRename, mod.DefOp(b).Name)
	assert.Equal(t, a, mod.DefOp(b).Operands[0])
}

func TestBinaryLowersToElementwiseOp(t *testing.T) {
	mod, lw := testutil.MustLower(t, testutil.Script(
		testutil.Assign(1, "c", &ast.Binary{
			Pos: testutil.Pos(1), Op: "+",
			L: ast.Int(testutil.Pos(1), 1),
			R: ast.Int(testutil.Pos(1), 2),
		}),
	))

	c := binding(t, lw, "c")
	assert.Equal(t, ir.OpEwAdd, mod.DefOp(c).Name)
	assert.True(t, mod.TypeOf(c).IsUnknown())
}

func TestMatMulKeepsLeftOperandType(t *testing.T) {
	rand := &ast.Call{Pos: testutil.Pos(1), Name: "rand", Args: []ast.Expr{
		ast.Int(testutil.Pos(1), 2), ast.Int(testutil.Pos(1), 2),
	}}
	mod, lw := testutil.MustLower(t, testutil.Script(
		testutil.Assign(1, "m", rand),
		testutil.Assign(2, "p", &ast.Binary{
			Pos: testutil.Pos(2), Op: "@",
			L: &ast.Ident{Pos: testutil.Pos(2), Name: "m"},
			R: &ast.Ident{Pos: testutil.Pos(2), Name: "m"},
		}),
	))

	p := binding(t, lw, "p")
	def := mod.DefOp(p)
	require.Equal(t, ir.OpMatMul, def.Name)
	require.Len(t, def.Operands, 4)
	assert.True(t, mod.TypeOf(p).Equal(ir.MatrixOf(ir.Unknown())))
}

func TestMultiAssignNeedsMultipleValues(t *testing.T) {
	err := testutil.LowerErr(t, testutil.Script(&ast.AssignStmt{
		Pos: testutil.Pos(1),
		Targets: []ast.AssignTarget{
			{Pos: testutil.Pos(1), Name: "a"},
			{Pos: testutil.Pos(1), Name: "b"},
		},
		RHS: ast.Int(testutil.Pos(1), 1),
	}))
	assert.True(t, lower.IsStructural(err))
	assert.Contains(t, err.Error(), "must return multiple values, one for each variable")
}

func TestSingleAssignRejectsMultipleResults(t *testing.T) {
	twoResults := &ast.FuncDecl{
		Pos: testutil.Pos(1), Name: "f",
		Body: testutil.Block(1, &ast.ReturnStmt{Pos: testutil.Pos(1), Values: []ast.Expr{
			ast.Int(testutil.Pos(1), 1), ast.Int(testutil.Pos(1), 2),
		}}),
	}
	err := testutil.LowerErr(t, testutil.Script(
		twoResults,
		testutil.Assign(2, "a", &ast.Call{Pos: testutil.Pos(2), Name: "f"}),
	))
	assert.True(t, lower.IsStructural(err))
	assert.Contains(t, err.Error(), "trying to assign multiple results to a single variable")
}

func TestMultiAssignFromCall(t *testing.T) {
	twoResults := &ast.FuncDecl{
		Pos: testutil.Pos(1), Name: "f",
		Body: testutil.Block(1, &ast.ReturnStmt{Pos: testutil.Pos(1), Values: []ast.Expr{
			ast.Int(testutil.Pos(1), 1), ast.Float(testutil.Pos(1), 2.5),
		}}),
	}
	mod, lw := testutil.MustLower(t, testutil.Script(
		twoResults,
		&ast.AssignStmt{
			Pos: testutil.Pos(2),
			Targets: []ast.AssignTarget{
				{Pos: testutil.Pos(2), Name: "a"},
				{Pos: testutil.Pos(2), Name: "b"},
			},
			RHS: &ast.Call{Pos: testutil.Pos(2), Name: "f"},
		},
	))

	assert.True(t, mod.TypeOf(binding(t, lw, "a")).Equal(ir.SI64Type()))
	assert.True(t, mod.TypeOf(binding(t, lw, "b")).Equal(ir.F64Type()))
}

func TestEmptyScriptGetsTrailingReturn(t *testing.T) {
	mod, _ := testutil.MustLower(t, testutil.Script())
	blk := funcBlock(t, mod, "main")
	term := mod.Terminator(blk)
	require.NotNil(t, term)
	assert.Equal(t, ir.OpReturn, term.Name)
	assert.Empty(t, term.Operands)
}

func TestBlockScopePropagatesRebindings(t *testing.T) {
	mod, lw := testutil.MustLower(t, testutil.Script(
		testutil.Assign(1, "a", ast.Int(testutil.Pos(1), 1)),
		testutil.Block(2,
			testutil.Assign(3, "a", ast.Int(testutil.Pos(3), 2)),
			testutil.Assign(4, "local", ast.Int(testutil.Pos(4), 3)),
		),
	))

	a := binding(t, lw, "a")
	def := mod.DefOp(a)
	require.Equal(t, ir.OpConstant, def.Name)
	assert.Equal(t, int64(2), def.Attrs[ir.AttrValue])
	// Block-local names survive the merge too; braces do not delimit
	// lifetimes, only if/while/for bodies do.
	assert.True(t, lw.Bindings().Has("local"))
}

func TestCastToTypedMatrix(t *testing.T) {
	mod, lw := testutil.MustLower(t, testutil.Script(
		testutil.Assign(1, "m", &ast.Cast{
			Pos: testutil.Pos(1), DataType: "matrix", ValueType: "f64",
			X: ast.Int(testutil.Pos(1), 1),
		}),
	))
	m := binding(t, lw, "m")
	assert.Equal(t, ir.OpCast, mod.DefOp(m).Name)
	assert.True(t, mod.TypeOf(m).Equal(ir.MatrixOf(ir.F64Type())))
}

func TestCastValueOnlyOnScalar(t *testing.T) {
	mod, lw := testutil.MustLower(t, testutil.Script(
		testutil.Assign(1, "x", &ast.Cast{
			Pos: testutil.Pos(1), ValueType: "f64",
			X: ast.Int(testutil.Pos(1), 1),
		}),
	))
	assert.True(t, mod.TypeOf(binding(t, lw, "x")).Equal(ir.F64Type()))
}

func TestCastFrameWithColumnTypesUnsupported(t *testing.T) {
	err := testutil.LowerErr(t, testutil.Script(
		testutil.Assign(1, "f", &ast.Cast{
			Pos: testutil.Pos(1), DataType: "frame", ValueType: "f64",
			X: ast.Int(testutil.Pos(1), 1),
		}),
	))
	assert.True(t, lower.IsUnsupportedFeature(err))
	assert.Contains(t, err.Error(), "casting to a frame with particular column types is not supported yet")
}

func TestCastWithoutTargetTypes(t *testing.T) {
	err := testutil.LowerErr(t, testutil.Script(
		testutil.Assign(1, "x", &ast.Cast{Pos: testutil.Pos(1), X: ast.Int(testutil.Pos(1), 1)}),
	))
	assert.True(t, lower.IsUnsupportedFeature(err))
	assert.Contains(t, err.Error(), "casting requires the specification of the target data and/or value type")
}

func TestUnaryMinus(t *testing.T) {
	mod, lw := testutil.MustLower(t, testutil.Script(
		testutil.Assign(1, "x", &ast.Unary{Pos: testutil.Pos(1), Op: "-", X: ast.Int(testutil.Pos(1), 5)}),
		testutil.Assign(2, "y", &ast.Unary{Pos: testutil.Pos(2), Op: "+", X: ast.Int(testutil.Pos(2), 5)}),
	))
	assert.Equal(t, ir.OpEwMinus, mod.DefOp(binding(t, lw, "x")).Name)
	// Unary plus is the identity.
	assert.Equal(t, ir.OpConstant, mod.DefOp(binding(t, lw, "y")).Name)
}
