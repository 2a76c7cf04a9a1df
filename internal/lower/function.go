package lower

import (
	"fmt"

	"cuelang.org/go/cue/token"

	"github.com/tessel-lang/tessel/internal/ast"
	"github.com/tessel-lang/tessel/internal/ir"
)

// typeFromRef resolves a declared signature type. A nil ref means
// unknown; matrix is the only supported data type in signatures.
func typeFromRef(pos token.Position, ref *ast.TypeRef) (ir.Type, error) {
	if ref == nil {
		return ir.Unknown(), nil
	}
	switch {
	case ref.Data == "matrix":
		elem := ir.Unknown()
		if ref.Elem != "" {
			var err error
			if elem, err = scalarTypeByName(ref.Pos, ref.Elem); err != nil {
				return ir.Type{}, err
			}
		}
		return ir.MatrixOf(elem), nil
	case ref.Data != "":
		return ir.Type{}, errf(ErrCodeUnsupportedFeature, "lower", ref.Pos,
			"unsupported data type for function argument: %s", ref.Data)
	case ref.Scalar != "":
		return scalarTypeByName(ref.Pos, ref.Scalar)
	}
	return ir.Unknown(), nil
}

// uniqueFuncSymbol derives the IR symbol for one overload. Overloads
// share a script-visible name, so symbols carry a per-session counter.
func (lw *Lowerer) uniqueFuncSymbol(name string) string {
	sym := fmt.Sprintf("%s-%d", name, lw.nextFuncID)
	lw.nextFuncID++
	return sym
}

// createFuncOp builds a function op at the front of the module body
// and registers its signature.
func (lw *Lowerer) createFuncOp(pos token.Position, name string, params, results []ir.Type) *FuncInfo {
	savedBlk, savedAt := lw.b.Save()
	body := lw.mod.BlockOf(lw.mod.Body)
	if len(body.Ops) > 0 {
		lw.b.SetInsertionBefore(lw.mod.Op(body.Ops[0]))
	} else {
		lw.b.SetInsertionEnd(lw.mod.Body)
	}
	op := lw.b.Build(pos, ir.OpFunc, nil, nil)
	sym := lw.uniqueFuncSymbol(name)
	op.Attrs = map[string]any{
		ir.AttrSymName: sym,
		ir.AttrResNum:  len(results),
	}
	lw.b.Restore(savedBlk, savedAt)

	fi := &FuncInfo{
		Name:    name,
		Symbol:  sym,
		Params:  params,
		Results: results,
		Op:      op.ID(),
	}
	lw.funcs.Register(fi)
	return fi
}

func (lw *Lowerer) funcDecl(d *ast.FuncDecl) error {
	if lw.binds.Depth() > 1 {
		return errf(ErrCodeStructural, "lower", d.Pos, "functions can only be defined at top-level")
	}

	paramNames := make([]string, 0, len(d.Params))
	paramTypes := make([]ir.Type, 0, len(d.Params))
	for _, p := range d.Params {
		for _, seen := range paramNames {
			if seen == p.Name {
				return errf(ErrCodeStructural, "lower", d.Pos,
					"function argument name `%s` is used twice", p.Name)
			}
		}
		t, err := typeFromRef(p.Pos, p.Type)
		if err != nil {
			return err
		}
		paramNames = append(paramNames, p.Name)
		paramTypes = append(paramTypes, t)
	}

	// The function body gets its own binding store; functions do not
	// close over script variables.
	outer := lw.binds
	lw.binds = NewBindingStore()
	defer func() { lw.binds = outer }()

	funcBlk := lw.mod.NewBlock()
	for i, n := range paramNames {
		v := lw.mod.AddParam(funcBlk, paramTypes[i])
		lw.binds.Put(n, Binding{Value: v})
	}

	// With declared result types the function op is created before the
	// body is lowered, so the body can call it recursively.
	var fi *FuncInfo
	var declared []ir.Type
	if d.Results != nil {
		declared = make([]ir.Type, 0, len(d.Results))
		for i := range d.Results {
			t, err := typeFromRef(d.Results[i].Pos, &d.Results[i])
			if err != nil {
				return err
			}
			declared = append(declared, t)
		}
		fi = lw.createFuncOp(d.Pos, d.Name, paramTypes, declared)
	}

	savedBlk, savedAt := lw.b.Save()
	lw.b.SetInsertionEnd(funcBlk)
	if err := lw.stmt(d.Body); err != nil {
		return err
	}

	if err := lw.rectifyEarlyReturns(funcBlk); err != nil {
		return err
	}
	if t := lw.mod.Terminator(funcBlk); t == nil || !t.IsTerminator() {
		lw.b.SetInsertionEnd(funcBlk)
		lw.b.Build(d.Pos, ir.OpReturn, nil, nil)
	}
	lw.b.Restore(savedBlk, savedAt)

	term := lw.mod.Terminator(funcBlk)
	retTypes := make([]ir.Type, len(term.Operands))
	for i, v := range term.Operands {
		retTypes[i] = lw.mod.TypeOf(v)
	}
	if fi == nil {
		fi = lw.createFuncOp(d.Pos, d.Name, paramTypes, retTypes)
	} else {
		if len(retTypes) != len(declared) {
			return errf(ErrCodeStructural, "lower", term.Pos,
				"function `%s` returns a different number of values than specified "+
					"in the definition (%d vs. %d)", d.Name, len(retTypes), len(declared))
		}
		for i := range declared {
			if !retTypes[i].EqualUnknownAware(declared[i]) {
				return errf(ErrCodeStructural, "lower", term.Pos,
					"function `%s` returns a different type for return value #%d than "+
						"specified in the definition (%s vs. %s)", d.Name, i, retTypes[i], declared[i])
			}
		}
	}

	region := lw.mod.NewRegion(lw.mod.Op(fi.Op))
	lw.mod.AttachBlock(region, funcBlk)
	return nil
}
