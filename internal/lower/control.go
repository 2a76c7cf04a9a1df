package lower

import (
	"cuelang.org/go/cue/token"

	"github.com/tessel-lang/tessel/internal/ast"
	"github.com/tessel-lang/tessel/internal/ir"
)

// branchValue resolves a name at a region boundary: the branch's own
// rebinding if present, else the pre-construct binding from the
// enclosing scopes.
func (lw *Lowerer) branchValue(pos token.Position, name string, s Scope) (ir.ValueID, error) {
	if b, ok := s[name]; ok {
		return b.Value, nil
	}
	b, ok := lw.binds.Get(name)
	if !ok {
		return 0, errf(ErrCodeUnboundVariable, "bindings", pos,
			"variable `%s` referenced before assignment", name)
	}
	return b.Value, nil
}

// regionPred returns a use-replacement predicate selecting ops whose
// enclosing region is r or nested inside r.
func (lw *Lowerer) regionPred(r ir.RegionID) func(*ir.Op) bool {
	return func(o *ir.Op) bool {
		return lw.mod.IsAncestor(r, lw.mod.EnclosingRegion(o))
	}
}

func (lw *Lowerer) ifStmt(s *ast.IfStmt) error {
	cond, err := lw.exprValue(s.Cond)
	if err != nil {
		return err
	}
	cond = lw.castBoolIf(s.Pos, cond)

	savedBlk, savedAt := lw.b.Save()

	thenBlk := lw.mod.NewBlock()
	lw.b.SetInsertionEnd(thenBlk)
	lw.binds.Push()
	if err := lw.stmt(s.Then); err != nil {
		return err
	}
	thenScope := lw.binds.Pop()

	var elseBlk ir.BlockID
	elseScope := Scope{}
	if s.Else != nil {
		elseBlk = lw.mod.NewBlock()
		lw.b.SetInsertionEnd(elseBlk)
		lw.binds.Push()
		if err := lw.stmt(s.Else); err != nil {
			return err
		}
		elseScope = lw.binds.Pop()
	}

	// The live-out set is the union of names rebound in either branch.
	// A branch that did not rebind a name yields the pre-construct
	// value for it.
	names := mergeNames(thenScope, elseScope)
	thenVals := make([]ir.ValueID, 0, len(names))
	elseVals := make([]ir.ValueID, 0, len(names))
	resultTypes := make([]ir.Type, 0, len(names))
	for _, n := range names {
		tv, err := lw.branchValue(s.Pos, n, thenScope)
		if err != nil {
			return err
		}
		ev, err := lw.branchValue(s.Pos, n, elseScope)
		if err != nil {
			return err
		}
		tt, et := lw.mod.TypeOf(tv), lw.mod.TypeOf(ev)
		if !tt.EqualUnknownAware(et) {
			return errf(ErrCodeTypeAmbiguity, "control", s.Pos,
				"type of variable `%s` after if-statement is ambiguous, "+
					"could be either %s (then-branch) or %s (else-branch)", n, tt, et)
		}
		rt := tt
		if rt.IsUnknown() {
			rt = et
		}
		thenVals = append(thenVals, tv)
		elseVals = append(elseVals, ev)
		resultTypes = append(resultTypes, rt)
	}

	lw.b.SetInsertionEnd(thenBlk)
	lw.b.Build(s.Pos, ir.OpYield, thenVals, nil)

	// An else region exists when the source had one or when results
	// must be merged.
	needElse := s.Else != nil || len(names) > 0
	if needElse {
		if elseBlk == 0 {
			elseBlk = lw.mod.NewBlock()
		}
		lw.b.SetInsertionEnd(elseBlk)
		lw.b.Build(s.Pos, ir.OpYield, elseVals, nil)
	}

	lw.b.Restore(savedBlk, savedAt)
	ifOp := lw.b.Build(s.Pos, ir.OpIf, []ir.ValueID{cond}, resultTypes)
	thenRegion := lw.mod.NewRegion(ifOp)
	lw.mod.AttachBlock(thenRegion, thenBlk)
	if needElse {
		elseRegion := lw.mod.NewRegion(ifOp)
		lw.mod.AttachBlock(elseRegion, elseBlk)
	}

	for i, n := range names {
		lw.binds.Put(n, Binding{Value: ifOp.Result(i)})
	}
	return nil
}

// carried is one loop-carried variable: a name rebound by a loop body
// that pre-exists in an enclosing scope.
type carried struct {
	name     string
	pre, upd ir.ValueID
}

// carriedSet derives the loop-carried variables from a body's popped
// scope, in lexicographic order. Names introduced by the body itself
// (no pre-loop binding) die with the body scope; skip holds body-local
// bindings planted by the loop construct (an induction variable).
func (lw *Lowerer) carriedSet(bodyScope Scope, skip string) []carried {
	var out []carried
	for _, n := range bodyScope.Names() {
		if n == skip {
			continue
		}
		pre, ok := lw.binds.Get(n)
		if !ok {
			continue
		}
		out = append(out, carried{name: n, pre: pre.Value, upd: bodyScope[n].Value})
	}
	return out
}

func (lw *Lowerer) whileStmt(s *ast.WhileStmt) error {
	savedBlk, savedAt := lw.b.Save()

	beforeBlk := lw.mod.NewBlock()
	afterBlk := lw.mod.NewBlock()

	var cond ir.ValueID
	var bodyScope Scope
	var err error
	if s.PostTested {
		// Body and condition both lower into the before-region, so
		// the body runs at least once and the condition sees its
		// updates.
		lw.b.SetInsertionEnd(beforeBlk)
		lw.binds.Push()
		if err = lw.stmt(s.Body); err != nil {
			return err
		}
		cond, err = lw.exprValue(s.Cond)
		if err != nil {
			return err
		}
		cond = lw.castBoolIf(s.Pos, cond)
		bodyScope = lw.binds.Pop()
	} else {
		lw.b.SetInsertionEnd(beforeBlk)
		cond, err = lw.exprValue(s.Cond)
		if err != nil {
			return err
		}
		cond = lw.castBoolIf(s.Pos, cond)

		lw.b.SetInsertionEnd(afterBlk)
		lw.binds.Push()
		if err = lw.stmt(s.Body); err != nil {
			return err
		}
		bodyScope = lw.binds.Pop()
	}

	cs := lw.carriedSet(bodyScope, "")
	pres := make([]ir.ValueID, len(cs))
	resultTypes := make([]ir.Type, len(cs))
	beforeParams := make([]ir.ValueID, len(cs))
	afterParams := make([]ir.ValueID, len(cs))
	upds := make([]ir.ValueID, len(cs))
	for i, c := range cs {
		pres[i] = c.pre
		upds[i] = c.upd
		t := lw.mod.TypeOf(c.pre)
		resultTypes[i] = t
		beforeParams[i] = lw.mod.AddParam(beforeBlk, t)
		afterParams[i] = lw.mod.AddParam(afterBlk, t)
	}

	lw.b.SetInsertionEnd(beforeBlk)
	if s.PostTested {
		lw.b.Build(s.Pos, ir.OpCondition, append([]ir.ValueID{cond}, upds...), nil)
	} else {
		lw.b.Build(s.Pos, ir.OpCondition, append([]ir.ValueID{cond}, beforeParams...), nil)
	}
	lw.b.SetInsertionEnd(afterBlk)
	if s.PostTested {
		lw.b.Build(s.Pos, ir.OpYield, afterParams, nil)
	} else {
		lw.b.Build(s.Pos, ir.OpYield, upds, nil)
	}

	lw.b.Restore(savedBlk, savedAt)
	whileOp := lw.b.Build(s.Pos, ir.OpWhile, pres, resultTypes)
	beforeRegion := lw.mod.NewRegion(whileOp)
	lw.mod.AttachBlock(beforeRegion, beforeBlk)
	afterRegion := lw.mod.NewRegion(whileOp)
	lw.mod.AttachBlock(afterRegion, afterBlk)

	// Pre-loop values flowing into the loop become region parameters;
	// the loop op itself keeps referencing them as operands.
	for i, c := range cs {
		lw.mod.ReplaceUsesIf(c.pre, beforeParams[i], lw.regionPred(beforeRegion))
		lw.mod.ReplaceUsesIf(c.pre, afterParams[i], lw.regionPred(afterRegion))
	}

	for i, c := range cs {
		lw.binds.Put(c.name, Binding{Value: whileOp.Result(i)})
	}
	return nil
}

// indVarPlaceholder is the constant standing in for a counted loop's
// induction variable while the body is lowered; it is globally
// substituted by the real block parameter once the loop op exists.
const indVarPlaceholder = int64(123)

func (lw *Lowerer) forStmt(s *ast.ForStmt) error {
	from, err := lw.exprValue(s.From)
	if err != nil {
		return err
	}
	from = lw.castSI64If(s.Pos, from)
	to, err := lw.exprValue(s.To)
	if err != nil {
		return err
	}
	to = lw.castSI64If(s.Pos, to)

	si64 := []ir.Type{ir.SI64Type()}
	var step ir.ValueID
	if s.Step != nil {
		step, err = lw.exprValue(s.Step)
		if err != nil {
			return err
		}
		step = lw.castSI64If(s.Pos, step)
	} else {
		// Default step: -1 + 2*(to >= from), i.e. +1 or -1 even when
		// from == to.
		ge := lw.b.Build(s.Pos, ir.OpEwGe, []ir.ValueID{to, from}, []ir.Type{ir.Unknown()})
		geInt := lw.castSI64If(s.Pos, ge.Result(0))
		two := lw.b.ConstInt(s.Pos, 2)
		twice := lw.b.Build(s.Pos, ir.OpEwMul, []ir.ValueID{geInt, two}, si64)
		minusOne := lw.b.ConstInt(s.Pos, -1)
		sum := lw.b.Build(s.Pos, ir.OpEwAdd, []ir.ValueID{twice.Result(0), minusOne}, si64)
		step = sum.Result(0)
	}

	// Normalize the inclusive, bidirectional range to the underlying
	// exclusive, ascending-only form.
	direction := lw.b.Build(s.Pos, ir.OpEwSign, []ir.ValueID{step}, si64).Result(0)
	toExcl := lw.b.Build(s.Pos, ir.OpEwAdd, []ir.ValueID{to, direction}, si64).Result(0)
	fromN := lw.b.Build(s.Pos, ir.OpEwMul, []ir.ValueID{from, direction}, si64).Result(0)
	toN := lw.b.Build(s.Pos, ir.OpEwMul, []ir.ValueID{toExcl, direction}, si64).Result(0)
	stepN := lw.b.Build(s.Pos, ir.OpEwMul, []ir.ValueID{step, direction}, si64).Result(0)

	savedBlk, savedAt := lw.b.Save()
	bodyBlk := lw.mod.NewBlock()
	lw.b.SetInsertionEnd(bodyBlk)

	ph := lw.b.ConstInt(s.Pos, indVarPlaceholder)
	iv := lw.b.Build(s.Pos, ir.OpEwMul, []ir.ValueID{ph, direction}, si64).Result(0)

	lw.binds.Push()
	lw.binds.Put(s.Var, Binding{Value: iv, ReadOnly: true})
	if err := lw.stmt(s.Body); err != nil {
		return err
	}
	bodyScope := lw.binds.Pop()

	cs := lw.carriedSet(bodyScope, s.Var)
	upds := make([]ir.ValueID, len(cs))
	for i, c := range cs {
		upds[i] = c.upd
	}
	lw.b.Build(s.Pos, ir.OpYield, upds, nil)

	lw.b.Restore(savedBlk, savedAt)
	operands := []ir.ValueID{fromN, toN, stepN}
	resultTypes := make([]ir.Type, len(cs))
	for i, c := range cs {
		operands = append(operands, c.pre)
		resultTypes[i] = lw.mod.TypeOf(c.pre)
	}
	forOp := lw.b.Build(s.Pos, ir.OpFor, operands, resultTypes)
	region := lw.mod.NewRegion(forOp)
	counter := lw.mod.AddParam(bodyBlk, ir.SI64Type())
	params := make([]ir.ValueID, len(cs))
	for i, c := range cs {
		params[i] = lw.mod.AddParam(bodyBlk, lw.mod.TypeOf(c.pre))
	}
	lw.mod.AttachBlock(region, bodyBlk)

	// The underlying ascending counter replaces the placeholder; the
	// script-visible induction variable is counter * direction.
	lw.mod.ReplaceAllUses(ph, counter)
	lw.mod.EraseOp(lw.mod.DefOp(ph))

	for i, c := range cs {
		lw.mod.ReplaceUsesIf(c.pre, params[i], lw.regionPred(region))
	}
	for i, c := range cs {
		lw.binds.Put(c.name, Binding{Value: forOp.Result(i)})
	}
	return nil
}

// definedIn reports whether v is defined inside the subtree rooted at
// blk (as an op result or a block parameter there or in any nested
// block).
func (lw *Lowerer) definedIn(v ir.ValueID, blk ir.BlockID) bool {
	var b ir.BlockID
	if def := lw.mod.DefOp(v); def != nil {
		b = def.Block()
	} else {
		b = lw.mod.ParamOwner(v)
	}
	return lw.underBlock(b, blk)
}

func (lw *Lowerer) parForStmt(s *ast.ParForStmt) error {
	from, err := lw.exprValue(s.From)
	if err != nil {
		return err
	}
	from = lw.castSI64If(s.Pos, from)
	to, err := lw.exprValue(s.To)
	if err != nil {
		return err
	}
	to = lw.castSI64If(s.Pos, to)
	var step ir.ValueID
	if s.Step != nil {
		step, err = lw.exprValue(s.Step)
		if err != nil {
			return err
		}
		step = lw.castSI64If(s.Pos, step)
	} else {
		step = lw.b.ConstInt(s.Pos, 1)
	}

	savedBlk, savedAt := lw.b.Save()
	bodyBlk := lw.mod.NewBlock()
	iv := lw.mod.AddParam(bodyBlk, ir.SI64Type())
	lw.b.SetInsertionEnd(bodyBlk)

	lw.binds.Push()
	lw.binds.Put(s.Var, Binding{Value: iv})
	if err := lw.stmt(s.Body); err != nil {
		return err
	}
	bodyScope := lw.binds.Pop()

	cs := lw.carriedSet(bodyScope, s.Var)
	upds := make([]ir.ValueID, len(cs))
	for i, c := range cs {
		upds[i] = c.upd
	}
	// The body denotes an independent task, so it ends in a return
	// rather than a yield.
	lw.b.Build(s.Pos, ir.OpReturn, upds, nil)

	// The region gets an explicit capture list instead of relying on
	// lexical nesting. The loop-carried pre-values lead the list,
	// positionally aligned with the loop results, so a body that writes
	// a carried name without reading it still links its pre-value; any
	// further operand defined outside the body follows in scan order,
	// each mirrored by a body parameter.
	var captures []ir.ValueID
	seen := make(map[ir.ValueID]bool)
	for _, c := range cs {
		captures = append(captures, c.pre)
		seen[c.pre] = true
	}
	lw.mod.Walk(bodyBlk, func(o *ir.Op) {
		for _, v := range o.Operands {
			if !seen[v] && !lw.definedIn(v, bodyBlk) {
				seen[v] = true
				captures = append(captures, v)
			}
		}
	})

	lw.b.Restore(savedBlk, savedAt)
	operands := append([]ir.ValueID{from, to, step}, captures...)
	resultTypes := make([]ir.Type, len(cs))
	for i, c := range cs {
		resultTypes[i] = lw.mod.TypeOf(c.pre)
	}
	parforOp := lw.b.Build(s.Pos, ir.OpParFor, operands, resultTypes)
	region := lw.mod.NewRegion(parforOp)
	params := make([]ir.ValueID, len(captures))
	for i, v := range captures {
		params[i] = lw.mod.AddParam(bodyBlk, lw.mod.TypeOf(v))
	}
	lw.mod.AttachBlock(region, bodyBlk)
	for i, v := range captures {
		lw.mod.ReplaceUsesIf(v, params[i], lw.regionPred(region))
	}

	for i, c := range cs {
		lw.binds.Put(c.name, Binding{Value: parforOp.Result(i)})
	}
	return nil
}
