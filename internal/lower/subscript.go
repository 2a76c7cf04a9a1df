package lower

import (
	"sort"

	"github.com/tessel-lang/tessel/internal/ast"
)

// SubScript lowers an imported script's statements into the current
// module at the current insertion point, under a fresh binding store
// and function table so the sub-script cannot see the importer's
// names. It returns the sub-script's exported top-level bindings and
// function signatures; prefixing and merging them into the importing
// namespace is the caller's responsibility.
//
// Errors abort the whole compilation, exactly as in the main script.
func (lw *Lowerer) SubScript(script *ast.Script) (Scope, []*FuncInfo, error) {
	outerBinds, outerFuncs := lw.binds, lw.funcs
	lw.binds = NewBindingStore()
	lw.funcs = NewFuncTable()
	defer func() {
		lw.binds = outerBinds
		lw.funcs = outerFuncs
	}()

	for _, s := range script.Stmts {
		if err := lw.stmt(s); err != nil {
			return nil, nil, err
		}
	}

	exported := lw.binds.Top()
	names := lw.funcs.Names()
	sort.Strings(names)
	var fns []*FuncInfo
	for _, n := range names {
		fns = append(fns, lw.funcs.Lookup(n)...)
	}
	return exported, fns, nil
}
