package lower

import (
	"fmt"

	"cuelang.org/go/cue/token"

	"github.com/tessel-lang/tessel/internal/ir"
)

// nextOp returns the op following o in its block, or nil.
func (lw *Lowerer) nextOp(o *ir.Op) *ir.Op {
	if o.Block() == 0 {
		return nil
	}
	blk := lw.mod.BlockOf(o.Block())
	for i, id := range blk.Ops {
		if id == o.ID() && i+1 < len(blk.Ops) {
			return lw.mod.Op(blk.Ops[i+1])
		}
	}
	return nil
}

// parentOp returns the op owning o's enclosing region, or nil when o
// sits in the module body, a function block, or a detached block.
func (lw *Lowerer) parentOp(o *ir.Op) *ir.Op {
	r := lw.mod.EnclosingRegion(o)
	if r == 0 {
		return nil
	}
	return lw.mod.Op(lw.mod.RegionOf(r).Op())
}

// underBlock reports whether blk is root itself or nested anywhere in
// the subtree below it. Works on detached blocks, where region
// ancestry is not yet established.
func (lw *Lowerer) underBlock(blk, root ir.BlockID) bool {
	for blk != 0 {
		if blk == root {
			return true
		}
		r := lw.mod.BlockOf(blk).Region()
		if r == 0 {
			return false
		}
		blk = lw.mod.Op(lw.mod.RegionOf(r).Op()).Block()
	}
	return false
}

// rectifyEarlyReturns normalizes a function block so only a single
// return at its end remains, by moving early returns out of
// conditionals one construct at a time. The most nested return is
// rewritten first; each rewrite strictly decreases the maximum return
// nesting depth, so the fixpoint terminates. Code shared by several
// paths may get duplicated across branches.
func (lw *Lowerer) rectifyEarlyReturns(funcBlk ir.BlockID) error {
	if len(lw.mod.BlockOf(funcBlk).Ops) == 0 {
		return nil
	}
	for {
		var mostNested *ir.Op
		level := 0
		lw.mod.Walk(funcBlk, func(o *ir.Op) {
			if o.Name != ir.OpReturn {
				return
			}
			nested := 1
			cur := o
			for cur.Block() != funcBlk {
				nested++
				cur = lw.parentOp(cur)
				if cur == nil {
					return // not under funcBlk at all
				}
			}
			if nested > level {
				mostNested = o
				level = nested
			}
		})
		if mostNested == nil || mostNested == lw.mod.Terminator(funcBlk) {
			return nil
		}
		parent := lw.parentOp(mostNested)
		if parent == nil {
			// A top-level return with trailing unreachable code.
			lw.eraseAfterReturn(mostNested)
			return nil
		}
		switch parent.Name {
		case ir.OpIf:
			if err := lw.rectifyEarlyReturn(parent); err != nil {
				return err
			}
		case ir.OpParFor:
			// The loop body is an independent call target, not inlined
			// into this function; its return stays.
			return nil
		default:
			return errf(ErrCodeStructural, "rectify", parent.Pos,
				"early return in `%s` is not supported", parent.Name)
		}
	}
}

// eraseAfterReturn deletes every op following ret in its block,
// innermost-last, recording a diagnostic per deleted op.
func (lw *Lowerer) eraseAfterReturn(ret *ir.Op) {
	blk := lw.mod.BlockOf(ret.Block())
	ops := append([]ir.OpID(nil), blk.Ops...)
	for i := len(ops) - 1; i >= 0; i-- {
		if ops[i] == ret.ID() {
			break
		}
		o := lw.mod.Op(ops[i])
		lw.Diags = append(lw.Diags, Diagnostic{
			Pos:     o.Pos,
			Message: fmt.Sprintf("operation is ignored, as the function will return at %s", ret.Pos),
		})
		lw.mod.EraseOp(o)
	}
}

// rectifyEarlyReturn rewrites one conditional holding a direct early
// return: both branches are rebuilt to end in a return (completing the
// return-less branch with the code that followed the conditional),
// the returns become yields, and the whole construct is wrapped in a
// fresh conditional followed by a single return of its results.
func (lw *Lowerer) rectifyEarlyReturn(ifOp *ir.Op) error {
	m := lw.mod

	oldThen := m.RegionOf(ifOp.Regions[0]).Blocks[0]
	var oldElse ir.BlockID
	if len(ifOp.Regions) > 1 {
		oldElse = m.RegionOf(ifOp.Regions[1]).Blocks[0]
	}

	newThen := m.NewBlock()
	m.Splice(newThen, oldThen)
	if err := lw.rectifyCase(ifOp, newThen); err != nil {
		return err
	}

	newElse := m.NewBlock()
	if oldElse != 0 {
		m.Splice(newElse, oldElse)
	}
	if err := lw.rectifyCase(ifOp, newElse); err != nil {
		return err
	}

	// Both branches now end in a return; turn them into yields and
	// derive the new conditional's result types from the then side.
	thenYield, err := lw.returnToYield(newThen)
	if err != nil {
		return err
	}
	if _, err := lw.returnToYield(newElse); err != nil {
		return err
	}
	resultTypes := make([]ir.Type, len(thenYield.Operands))
	for i, v := range thenYield.Operands {
		resultTypes[i] = m.TypeOf(v)
	}

	savedBlk, savedAt := lw.b.Save()
	lw.b.SetInsertionBefore(ifOp)
	newIf := lw.b.Build(ifOp.Pos, ir.OpIf, []ir.ValueID{ifOp.Operands[0]}, resultTypes)
	thenRegion := m.NewRegion(newIf)
	m.AttachBlock(thenRegion, newThen)
	elseRegion := m.NewRegion(newIf)
	m.AttachBlock(elseRegion, newElse)
	lw.b.Build(ifOp.Pos, ir.OpReturn, newIf.Results, nil)
	lw.b.Restore(savedBlk, savedAt)

	// Any use of the old conditional's results not already patched to a
	// per-branch yielded value is redirected to the rebuilt construct,
	// so erasing the old op leaves no dangling references.
	n := len(ifOp.Results)
	if len(newIf.Results) < n {
		n = len(newIf.Results)
	}
	for i := 0; i < n; i++ {
		m.ReplaceAllUses(ifOp.Results[i], newIf.Results[i])
	}
	m.EraseOp(ifOp)
	return nil
}

// rectifyCase finishes one branch block of the conditional under
// rewrite so it ends in a return: a branch already containing a direct
// return loses its unreachable tail; a branch without one absorbs the
// continuation that followed the conditional.
func (lw *Lowerer) rectifyCase(ifOp *ir.Op, caseBlk ir.BlockID) error {
	var ret *ir.Op
	for _, id := range lw.mod.BlockOf(caseBlk).Ops {
		o := lw.mod.Op(id)
		if !o.Erased() && o.Name == ir.OpReturn {
			ret = o
			break
		}
	}
	if ret != nil {
		lw.eraseAfterReturn(ret)
	} else if err := lw.rectifyCaseWithoutReturn(ifOp, caseBlk); err != nil {
		return err
	}
	term := lw.mod.Terminator(caseBlk)
	if term == nil || term.Name != ir.OpReturn {
		return errf(ErrCodeStructural, "rectify", ifOp.Pos,
			"final operation in a rectified branch has to be a return")
	}
	return nil
}

// rectifyCaseWithoutReturn appends to caseBlk every op that originally
// executed after the conditional, climbing out of enclosing
// conditionals via their yields: ops sharing the conditional's block
// are moved, ops further out are cloned (they stay reachable via other
// paths). A second pass erases the absorbed yields and patches uses of
// the enclosing conditionals' results to the yielded values.
func (lw *Lowerer) rectifyCaseWithoutReturn(ifOp *ir.Op, caseBlk ir.BlockID) error {
	m := lw.mod

	if t := m.Terminator(caseBlk); t == nil || t.Name != ir.OpYield {
		var pad ir.Builder
		pad.M = m
		pad.SetInsertionEnd(caseBlk)
		pad.Build(ifOp.Pos, ir.OpYield, nil, nil)
	}

	var nested ir.Builder
	nested.M = m
	// One value map across the whole continuation: a clone referencing
	// an earlier cloned op must resolve to the clone, not the original,
	// which later rounds may move into a sibling region.
	vmap := map[ir.ValueID]ir.ValueID{}
	cur := lw.nextOp(ifOp)
	for cur != nil {
		var next *ir.Op
		if cur.Name == ir.OpYield {
			parent := lw.parentOp(cur)
			if parent == nil || parent.Name != ir.OpIf {
				return errf(ErrCodeStructural, "rectify", cur.Pos,
					"early return not nested in conditionals is not supported")
			}
			next = lw.nextOp(parent)
		} else {
			next = lw.nextOp(cur)
		}
		if cur.Block() == ifOp.Block() {
			m.MoveOpToEnd(cur, caseBlk)
		} else {
			nested.SetInsertionEnd(caseBlk)
			m.CloneOp(cur, &nested, vmap)
		}
		cur = next
	}

	currIf := ifOp
	for _, id := range append([]ir.OpID(nil), m.BlockOf(caseBlk).Ops...) {
		o := m.Op(id)
		if o.Erased() || o.Name != ir.OpYield {
			continue
		}
		if currIf != nil {
			n := len(currIf.Results)
			if len(o.Operands) < n {
				n = len(o.Operands)
			}
			for i := 0; i < n; i++ {
				yielded := o.Operands[i]
				// Uses may sit arbitrarily deep inside moved or cloned
				// region ops, not only directly in caseBlk.
				m.ReplaceUsesIf(currIf.Results[i], yielded, func(u *ir.Op) bool {
					return lw.underBlock(u.Block(), caseBlk)
				})
			}
			if p := lw.parentOp(currIf); p != nil && p.Name == ir.OpIf {
				currIf = p
			} else {
				currIf = nil
			}
		}
		m.EraseOp(o)
	}
	return nil
}

// returnToYield replaces the trailing return of a block with a yield
// of the same operands and returns the yield.
func (lw *Lowerer) returnToYield(blk ir.BlockID) (*ir.Op, error) {
	term := lw.mod.Terminator(blk)
	if term == nil || term.Name != ir.OpReturn {
		var pos token.Position
		if term != nil {
			pos = term.Pos
		}
		return nil, errf(ErrCodeStructural, "rectify", pos,
			"final operation in a rectified branch has to be a return")
	}
	operands := append([]ir.ValueID(nil), term.Operands...)
	pos := term.Pos
	lw.mod.EraseOp(term)
	var nested ir.Builder
	nested.M = lw.mod
	nested.SetInsertionEnd(blk)
	return nested.Build(pos, ir.OpYield, operands, nil), nil
}
