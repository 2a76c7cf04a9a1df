package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, doc string) *Script {
	t.Helper()
	s, err := DecodeScript("test.yaml", []byte(doc))
	require.NoError(t, err)
	return s
}

func TestDecodeAssignAndLiterals(t *testing.T) {
	s := decode(t, `
kind: script
stmts:
  - kind: assign
    line: 3
    targets:
      - {name: a}
    rhs: {kind: lit, value: 42}
  - kind: assign
    targets:
      - {name: b}
    rhs: {kind: lit, value: 1.5}
  - kind: assign
    targets:
      - {name: c}
    rhs: {kind: lit, value: true}
  - kind: assign
    targets:
      - {name: d}
    rhs: {kind: lit, value: "x"}
`)
	require.Len(t, s.Stmts, 4)

	a := s.Stmts[0].(*AssignStmt)
	require.Len(t, a.Targets, 1)
	assert.Equal(t, "a", a.Targets[0].Name)
	assert.Equal(t, 3, a.Pos.Line, "explicit line field wins over the YAML position")
	lit := a.RHS.(*Literal)
	assert.Equal(t, LitInt, lit.Kind)
	assert.Equal(t, int64(42), lit.Int)

	assert.Equal(t, LitFloat, s.Stmts[1].(*AssignStmt).RHS.(*Literal).Kind)
	assert.Equal(t, LitBool, s.Stmts[2].(*AssignStmt).RHS.(*Literal).Kind)
	str := s.Stmts[3].(*AssignStmt).RHS.(*Literal)
	assert.Equal(t, LitString, str.Kind)
	assert.Equal(t, "x", str.Str)
}

func TestDecodeControlFlow(t *testing.T) {
	s := decode(t, `
kind: script
stmts:
  - kind: if
    cond: {kind: lit, value: true}
    then:
      kind: block
      stmts:
        - kind: assign
          targets: [{name: a}]
          rhs: {kind: lit, value: 1}
    else:
      kind: block
      stmts: []
  - kind: dowhile
    cond: {kind: binary, op: "<", l: {kind: ident, name: i}, r: {kind: lit, value: 10}}
    body: {kind: block, stmts: []}
  - kind: for
    var: i
    from: {kind: lit, value: 1}
    to: {kind: lit, value: 5}
    step: {kind: lit, value: 2}
    body: {kind: block, stmts: []}
  - kind: parfor
    var: j
    from: {kind: lit, value: 1}
    to: {kind: lit, value: 5}
    body: {kind: block, stmts: []}
`)
	require.Len(t, s.Stmts, 4)

	ifStmt := s.Stmts[0].(*IfStmt)
	assert.NotNil(t, ifStmt.Else)

	while := s.Stmts[1].(*WhileStmt)
	assert.True(t, while.PostTested)
	bin := while.Cond.(*Binary)
	assert.Equal(t, "<", bin.Op)
	assert.Equal(t, "i", bin.L.(*Ident).Name)

	forStmt := s.Stmts[2].(*ForStmt)
	assert.Equal(t, "i", forStmt.Var)
	require.NotNil(t, forStmt.Step)
	assert.Equal(t, int64(2), forStmt.Step.(*Literal).Int)

	parfor := s.Stmts[3].(*ParForStmt)
	assert.Equal(t, "j", parfor.Var)
	assert.Nil(t, parfor.Step)
}

func TestDecodeFuncAndReturn(t *testing.T) {
	s := decode(t, `
kind: script
stmts:
  - kind: func
    name: f
    params:
      - {name: a, type: {scalar: si64}}
      - {name: m, type: {data: matrix, elem: f64}}
    results:
      - {scalar: si64}
    body:
      kind: block
      stmts:
        - kind: return
          values:
            - {kind: lit, value: 1}
`)
	fn := s.Stmts[0].(*FuncDecl)
	assert.Equal(t, "f", fn.Name)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, "si64", fn.Params[0].Type.Scalar)
	assert.Equal(t, "matrix", fn.Params[1].Type.Data)
	assert.Equal(t, "f64", fn.Params[1].Type.Elem)
	require.Len(t, fn.Results, 1)
	ret := fn.Body.Stmts[0].(*ReturnStmt)
	require.Len(t, ret.Values, 1)
}

func TestDecodeIndexingForms(t *testing.T) {
	s := decode(t, `
kind: script
stmts:
  - kind: assign
    targets:
      - name: m
        index:
          rows: {at: {kind: lit, value: 0}}
          cols: {lo: {kind: lit, value: 1}, hi: {kind: lit, value: 3}}
    rhs: {kind: lit, value: 9}
  - kind: expr
    x:
      kind: idx
      filter: "true"
      obj: {kind: ident, name: m}
      rows: {at: {kind: ident, name: r}}
`)
	target := s.Stmts[0].(*AssignStmt).Targets[0]
	require.NotNil(t, target.Index)
	require.NotNil(t, target.Index.Rows)
	assert.NotNil(t, target.Index.Rows.Point)
	require.NotNil(t, target.Index.Cols)
	assert.NotNil(t, target.Index.Cols.Lo)
	assert.NotNil(t, target.Index.Cols.Hi)

	idx := s.Stmts[1].(*ExprStmt).X.(*RightIdx)
	assert.True(t, idx.Filter)
	require.NotNil(t, idx.Index.Rows)
	assert.NotNil(t, idx.Index.Rows.Point)
	assert.Nil(t, idx.Index.Cols)
}

func TestDecodeCastUnaryArgImport(t *testing.T) {
	s := decode(t, `
kind: script
stmts:
  - kind: assign
    targets: [{name: x}]
    rhs:
      kind: cast
      data: matrix
      vtype: f64
      x: {kind: arg, name: input}
  - kind: expr
    x: {kind: unary, op: "-", x: {kind: lit, value: 5}}
  - kind: import
    path: util.yaml
    alias: util
`)
	cast := s.Stmts[0].(*AssignStmt).RHS.(*Cast)
	assert.Equal(t, "matrix", cast.DataType)
	assert.Equal(t, "f64", cast.ValueType)
	assert.Equal(t, "input", cast.X.(*ArgRef).Name)

	un := s.Stmts[1].(*ExprStmt).X.(*Unary)
	assert.Equal(t, "-", un.Op)

	imp := s.Stmts[2].(*ImportStmt)
	assert.Equal(t, "util.yaml", imp.Path)
	assert.Equal(t, "util", imp.Alias)
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name, doc, want string
	}{
		{"not yaml", "kind: [script", "parse tree is not valid YAML"},
		{"wrong root", "kind: module", `root node must have kind "script"`},
		{"unknown stmt", "kind: script\nstmts:\n  - kind: goto", `unknown statement kind "goto"`},
		{"unknown expr", "kind: script\nstmts:\n  - kind: expr\n    x: {kind: ternary}", `unknown expression kind "ternary"`},
		{"target without name", "kind: script\nstmts:\n  - kind: assign\n    targets: [{}]\n    rhs: {kind: lit, value: 1}", "assignment target needs a name"},
		{"empty axis", "kind: script\nstmts:\n  - kind: expr\n    x:\n      kind: idx\n      obj: {kind: ident, name: m}\n      rows: {}", `index axis needs "at", "lo", or "hi"`},
		{"literal without value", "kind: script\nstmts:\n  - kind: expr\n    x: {kind: lit}", "literal needs a value"},
		{"integer overflow", "kind: script\nstmts:\n  - kind: expr\n    x: {kind: lit, value: 9223372036854775808}", "overflows signed 64-bit"},
		{"func body not block", "kind: script\nstmts:\n  - kind: func\n    name: f\n    body: {kind: return}", "function body must be a block"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeScript("test.yaml", []byte(tc.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
