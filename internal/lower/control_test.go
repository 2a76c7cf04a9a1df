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

func TestIfMergeRetainsPreConstructValue(t *testing.T) {
	// a = 1; if (true) { a = 2; }
	// The else side of the merge must yield the pre-construct value.
	mod, lw := testutil.MustLower(t, testutil.Script(
		testutil.Assign(1, "a", ast.Int(testutil.Pos(1), 1)),
		&ast.IfStmt{
			Pos:  testutil.Pos(2),
			Cond: ast.BoolLit(testutil.Pos(2), true),
			Then: testutil.Block(2, testutil.Assign(3, "a", ast.Int(testutil.Pos(3), 2))),
		},
	))

	a := binding(t, lw, "a")
	ifOp := mod.DefOp(a)
	require.Equal(t, ir.OpIf, ifOp.Name)
	assert.True(t, mod.TypeOf(a).Equal(ir.SI64Type()))
	require.Len(t, ifOp.Regions, 2, "a merge without a source else still needs an else region")

	thenBlk := mod.RegionOf(ifOp.Regions[0]).Blocks[0]
	thenYield := mod.Terminator(thenBlk)
	require.Equal(t, ir.OpYield, thenYield.Name)
	require.Len(t, thenYield.Operands, 1)
	assert.Equal(t, int64(2), mod.DefOp(thenYield.Operands[0]).Attrs[ir.AttrValue])

	elseBlk := mod.RegionOf(ifOp.Regions[1]).Blocks[0]
	elseYield := mod.Terminator(elseBlk)
	require.Equal(t, ir.OpYield, elseYield.Name)
	require.Len(t, elseYield.Operands, 1)
	assert.Equal(t, int64(1), mod.DefOp(elseYield.Operands[0]).Attrs[ir.AttrValue])
}

func TestIfWithoutRebindingsHasNoElseRegion(t *testing.T) {
	mod, _ := testutil.MustLower(t, testutil.Script(
		&ast.IfStmt{
			Pos:  testutil.Pos(1),
			Cond: ast.BoolLit(testutil.Pos(1), true),
			Then: testutil.Block(1, &ast.ExprStmt{Pos: testutil.Pos(2), X: &ast.Call{
				Pos: testutil.Pos(2), Name: "print", Args: []ast.Expr{ast.Int(testutil.Pos(2), 1)},
			}}),
		},
	))

	var ifOp *ir.Op
	mod.Walk(mod.Body, func(o *ir.Op) {
		if o.Name == ir.OpIf {
			ifOp = o
		}
	})
	require.NotNil(t, ifOp)
	assert.Empty(t, ifOp.Results)
	assert.Len(t, ifOp.Regions, 1)
}

func TestIfMergeTypeAmbiguity(t *testing.T) {
	err := testutil.LowerErr(t, testutil.Script(
		testutil.Assign(1, "a", ast.Int(testutil.Pos(1), 1)),
		&ast.IfStmt{
			Pos:  testutil.Pos(2),
			Cond: ast.BoolLit(testutil.Pos(2), true),
			Then: testutil.Block(2, testutil.Assign(3, "a", ast.Int(testutil.Pos(3), 2))),
			Else: testutil.Block(4, testutil.Assign(5, "a", ast.Str(testutil.Pos(5), "x"))),
		},
	))

	assert.True(t, lower.IsTypeAmbiguity(err))
	assert.Contains(t, err.Error(),
		"type of variable `a` after if-statement is ambiguous, could be either si64 (then-branch) or str (else-branch)")
}

func TestIfMergeUnknownResolvesToConcrete(t *testing.T) {
	// The then-branch binds a to an unknown-typed computation, the
	// else-branch to si64; the merge takes the concrete side.
	mod, lw := testutil.MustLower(t, testutil.Script(
		testutil.Assign(1, "a", ast.Int(testutil.Pos(1), 1)),
		&ast.IfStmt{
			Pos:  testutil.Pos(2),
			Cond: ast.BoolLit(testutil.Pos(2), true),
			Then: testutil.Block(2, testutil.Assign(3, "a", &ast.Binary{
				Pos: testutil.Pos(3), Op: "+",
				L: ast.Int(testutil.Pos(3), 1), R: ast.Int(testutil.Pos(3), 2),
			})),
			Else: testutil.Block(4, testutil.Assign(5, "a", ast.Int(testutil.Pos(5), 3))),
		},
	))

	assert.True(t, mod.TypeOf(binding(t, lw, "a")).Equal(ir.SI64Type()))
}

func TestWhileLoopCarriesRebindings(t *testing.T) {
	// i = 0; while (i < 10) { i = i + 1; }
	mod, lw := testutil.MustLower(t, testutil.Script(
		testutil.Assign(1, "i", ast.Int(testutil.Pos(1), 0)),
		&ast.WhileStmt{
			Pos: testutil.Pos(2),
			Cond: &ast.Binary{Pos: testutil.Pos(2), Op: "<",
				L: &ast.Ident{Pos: testutil.Pos(2), Name: "i"},
				R: ast.Int(testutil.Pos(2), 10)},
			Body: testutil.Block(2, testutil.Assign(3, "i", &ast.Binary{
				Pos: testutil.Pos(3), Op: "+",
				L: &ast.Ident{Pos: testutil.Pos(3), Name: "i"},
				R: ast.Int(testutil.Pos(3), 1)})),
		},
	))

	i := binding(t, lw, "i")
	whileOp := mod.DefOp(i)
	require.Equal(t, ir.OpWhile, whileOp.Name)
	assert.True(t, mod.TypeOf(i).Equal(ir.SI64Type()))
	require.Len(t, whileOp.Operands, 1)
	assert.Equal(t, int64(0), mod.DefOp(whileOp.Operands[0]).Attrs[ir.AttrValue])
	require.Len(t, whileOp.Regions, 2)

	before := mod.BlockOf(mod.RegionOf(whileOp.Regions[0]).Blocks[0])
	require.Len(t, before.Params, 1)
	term := mod.Terminator(before.ID())
	require.Equal(t, ir.OpCondition, term.Name)
	require.Len(t, term.Operands, 2)
	assert.Equal(t, before.Params[0], term.Operands[1])

	// The condition's comparison reads the region parameter, not the
	// pre-loop value.
	var lt *ir.Op
	for _, id := range before.Ops {
		if o := mod.Op(id); o.Name == ir.OpEwLt {
			lt = o
		}
	}
	require.NotNil(t, lt)
	assert.Equal(t, before.Params[0], lt.Operands[0])

	after := mod.BlockOf(mod.RegionOf(whileOp.Regions[1]).Blocks[0])
	require.Len(t, after.Params, 1)
	yield := mod.Terminator(after.ID())
	require.Equal(t, ir.OpYield, yield.Name)
	require.Len(t, yield.Operands, 1)
	add := mod.DefOp(yield.Operands[0])
	require.Equal(t, ir.OpEwAdd, add.Name)
	assert.Equal(t, after.Params[0], add.Operands[0])
}

func TestDoWhileTestsAfterBody(t *testing.T) {
	mod, lw := testutil.MustLower(t, testutil.Script(
		testutil.Assign(1, "i", ast.Int(testutil.Pos(1), 0)),
		&ast.WhileStmt{
			Pos:        testutil.Pos(2),
			PostTested: true,
			Cond: &ast.Binary{Pos: testutil.Pos(2), Op: "<",
				L: &ast.Ident{Pos: testutil.Pos(2), Name: "i"},
				R: ast.Int(testutil.Pos(2), 10)},
			Body: testutil.Block(2, testutil.Assign(3, "i", &ast.Binary{
				Pos: testutil.Pos(3), Op: "+",
				L: &ast.Ident{Pos: testutil.Pos(3), Name: "i"},
				R: ast.Int(testutil.Pos(3), 1)})),
		},
	))

	whileOp := mod.DefOp(binding(t, lw, "i"))
	require.Equal(t, ir.OpWhile, whileOp.Name)
	require.Len(t, whileOp.Regions, 2)

	// Post-tested: the body lowers into the before-region, whose
	// condition passes the updated value on.
	before := mod.RegionOf(whileOp.Regions[0]).Blocks[0]
	assert.Contains(t, opNames(mod, before), ir.OpEwAdd)
	term := mod.Terminator(before)
	require.Equal(t, ir.OpCondition, term.Name)
	require.Len(t, term.Operands, 2)
	assert.Equal(t, ir.OpEwAdd, mod.DefOp(term.Operands[1]).Name)

	// The after-region only forwards its parameters.
	after := mod.BlockOf(mod.RegionOf(whileOp.Regions[1]).Blocks[0])
	yield := mod.Terminator(after.ID())
	require.Equal(t, ir.OpYield, yield.Name)
	require.Len(t, yield.Operands, 1)
	assert.Equal(t, after.Params[0], yield.Operands[0])
}

func forLoop(varName string, from, to int64, body ...ast.Stmt) *ast.ForStmt {
	return &ast.ForStmt{
		Pos:  testutil.Pos(2),
		Var:  varName,
		From: ast.Int(testutil.Pos(2), from),
		To:   ast.Int(testutil.Pos(2), to),
		Body: testutil.Block(2, body...),
	}
}

func TestForLoopNormalization(t *testing.T) {
	// s = 0; for i in 1:5 { s = s + i; }
	mod, lw := testutil.MustLower(t, testutil.Script(
		testutil.Assign(1, "s", ast.Int(testutil.Pos(1), 0)),
		forLoop("i", 1, 5, testutil.Assign(3, "s", &ast.Binary{
			Pos: testutil.Pos(3), Op: "+",
			L: &ast.Ident{Pos: testutil.Pos(3), Name: "s"},
			R: &ast.Ident{Pos: testutil.Pos(3), Name: "i"}})),
	))

	s := binding(t, lw, "s")
	forOp := mod.DefOp(s)
	require.Equal(t, ir.OpFor, forOp.Name)
	require.Len(t, forOp.Operands, 4, "from, to, step plus one carried value")
	assert.True(t, mod.TypeOf(s).Equal(ir.SI64Type()))

	// The default step is computed from the bounds, and every bound is
	// normalized through the direction sign.
	main := funcBlock(t, mod, "main")
	names := opNames(mod, main)
	assert.Contains(t, names, ir.OpEwGe)
	assert.Contains(t, names, ir.OpEwSign)

	require.Len(t, forOp.Regions, 1)
	body := mod.BlockOf(mod.RegionOf(forOp.Regions[0]).Blocks[0])
	require.Len(t, body.Params, 2, "ascending counter plus one carried value")
	assert.True(t, mod.TypeOf(body.Params[0]).Equal(ir.SI64Type()))

	// The placeholder constant is gone; the script-visible induction
	// variable is counter * direction.
	bodyNames := opNames(mod, body.ID())
	assert.NotContains(t, bodyNames, ir.OpConstant)
	first := mod.Op(body.Ops[0])
	require.False(t, first.Erased())
	require.Equal(t, ir.OpEwMul, first.Name)
	assert.Equal(t, body.Params[0], first.Operands[0])

	yield := mod.Terminator(body.ID())
	require.Equal(t, ir.OpYield, yield.Name)
	require.Len(t, yield.Operands, 1)
	add := mod.DefOp(yield.Operands[0])
	require.Equal(t, ir.OpEwAdd, add.Name)
	assert.Equal(t, body.Params[1], add.Operands[0], "carried read goes through the region parameter")
	assert.Equal(t, first.Result(0), add.Operands[1], "induction reads go through the direction-adjusted counter")
}

func TestForLoopExplicitStepSkipsDefaultChain(t *testing.T) {
	loop := forLoop("i", 5, 1)
	loop.Step = ast.Int(testutil.Pos(2), -1)
	mod, _ := testutil.MustLower(t, testutil.Script(loop))

	main := funcBlock(t, mod, "main")
	assert.NotContains(t, opNames(mod, main), ir.OpEwGe)
	assert.Contains(t, opNames(mod, main), ir.OpEwSign)
}

func TestForInductionVariableIsReadOnly(t *testing.T) {
	err := testutil.LowerErr(t, testutil.Script(
		forLoop("i", 1, 5, testutil.Assign(3, "i", ast.Int(testutil.Pos(3), 3))),
	))
	assert.True(t, lower.IsReadOnlyViolation(err))
	assert.Contains(t, err.Error(), "trying to assign read-only variable i")
}

func TestForBodyLocalsDieWithTheBody(t *testing.T) {
	_, lw := testutil.MustLower(t, testutil.Script(
		forLoop("i", 1, 5, testutil.Assign(3, "tmp", ast.Int(testutil.Pos(3), 1))),
	))
	assert.False(t, lw.Bindings().Has("tmp"))
	assert.False(t, lw.Bindings().Has("i"))
}

func TestParForExplicitCaptures(t *testing.T) {
	// s = 0; parfor i in 1:5 { s = s + i; }
	mod, lw := testutil.MustLower(t, testutil.Script(
		testutil.Assign(1, "s", ast.Int(testutil.Pos(1), 0)),
		&ast.ParForStmt{
			Pos:  testutil.Pos(2),
			Var:  "i",
			From: ast.Int(testutil.Pos(2), 1),
			To:   ast.Int(testutil.Pos(2), 5),
			Body: testutil.Block(2, testutil.Assign(3, "s", &ast.Binary{
				Pos: testutil.Pos(3), Op: "+",
				L: &ast.Ident{Pos: testutil.Pos(3), Name: "s"},
				R: &ast.Ident{Pos: testutil.Pos(3), Name: "i"}})),
		},
	))

	s := binding(t, lw, "s")
	parfor := mod.DefOp(s)
	require.Equal(t, ir.OpParFor, parfor.Name)
	require.Len(t, parfor.Operands, 4, "from, to, step plus one captured value")
	assert.Equal(t, int64(1), mod.DefOp(parfor.Operands[2]).Attrs[ir.AttrValue], "default step is 1")

	require.Len(t, parfor.Regions, 1)
	body := mod.BlockOf(mod.RegionOf(parfor.Regions[0]).Blocks[0])
	require.Len(t, body.Params, 2, "induction variable plus one capture")

	// The body is an independent task: it ends in a return, and its
	// reads of outer values go through capture parameters.
	term := mod.Terminator(body.ID())
	require.Equal(t, ir.OpReturn, term.Name)
	require.Len(t, term.Operands, 1)
	add := mod.DefOp(term.Operands[0])
	require.Equal(t, ir.OpEwAdd, add.Name)
	assert.Equal(t, body.Params[1], add.Operands[0])
	assert.Equal(t, body.Params[0], add.Operands[1])
}

func TestParForWriteOnlyCarriedLinksPreValue(t *testing.T) {
	// s = 0; parfor i in 1:3 { s = i; }
	// The body overwrites s without reading it, so no scan would find
	// the pre-value; it still leads the capture list, aligned with the
	// loop result.
	mod, lw := testutil.MustLower(t, testutil.Script(
		testutil.Assign(1, "s", ast.Int(testutil.Pos(1), 0)),
		&ast.ParForStmt{
			Pos:  testutil.Pos(2),
			Var:  "i",
			From: ast.Int(testutil.Pos(2), 1),
			To:   ast.Int(testutil.Pos(2), 3),
			Body: testutil.Block(2, testutil.Assign(3, "s", &ast.Ident{Pos: testutil.Pos(3), Name: "i"})),
		},
	))

	parfor := mod.DefOp(binding(t, lw, "s"))
	require.Equal(t, ir.OpParFor, parfor.Name)
	require.Len(t, parfor.Operands, 4, "from, to, step plus the carried pre-value")
	pre := mod.DefOp(parfor.Operands[3])
	require.NotNil(t, pre)
	assert.Equal(t, int64(0), pre.Attrs[ir.AttrValue])

	body := mod.BlockOf(mod.RegionOf(parfor.Regions[0]).Blocks[0])
	require.Len(t, body.Params, 2, "induction variable plus the pre-value mirror")
	term := mod.Terminator(body.ID())
	require.Equal(t, ir.OpReturn, term.Name)
	require.Len(t, term.Operands, 1)
	assert.Equal(t, body.Params[0], term.Operands[0], "the updated value is the induction variable")
}
