// Package testutil provides shared helpers for building and lowering
// synthetic scripts in tests.
package testutil

import (
	"testing"

	"cuelang.org/go/cue/token"
	"github.com/stretchr/testify/require"

	"github.com/tessel-lang/tessel/internal/ast"
	"github.com/tessel-lang/tessel/internal/ir"
	"github.com/tessel-lang/tessel/internal/lower"
)

// Pos returns a synthetic source position on the given line.
func Pos(line int) token.Position {
	return token.Position{Filename: "test.tsl", Line: line, Column: 1}
}

// Script wraps statements into a script rooted at line 1.
func Script(stmts ...ast.Stmt) *ast.Script {
	return &ast.Script{Pos: Pos(1), Stmts: stmts}
}

// MustLower lowers a script with default options and fails the test
// on error.
func MustLower(t *testing.T, script *ast.Script) (*ir.Module, *lower.Lowerer) {
	t.Helper()
	mod, lw, err := lower.Script(script, lower.Options{})
	require.NoError(t, err)
	return mod, lw
}

// LowerErr lowers a script expecting an error and returns it.
func LowerErr(t *testing.T, script *ast.Script) error {
	t.Helper()
	_, _, err := lower.Script(script, lower.Options{})
	require.Error(t, err)
	return err
}

// Assign builds `name = rhs;` at the given line.
func Assign(line int, name string, rhs ast.Expr) *ast.AssignStmt {
	return &ast.AssignStmt{
		Pos:     Pos(line),
		Targets: []ast.AssignTarget{{Pos: Pos(line), Name: name}},
		RHS:     rhs,
	}
}

// Block wraps statements into a braced block at the given line.
func Block(line int, stmts ...ast.Stmt) *ast.BlockStmt {
	return &ast.BlockStmt{Pos: Pos(line), Stmts: stmts}
}
