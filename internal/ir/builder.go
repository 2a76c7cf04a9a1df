package ir

import "cuelang.org/go/cue/token"

// Builder is the single mutable insertion cursor used during
// lowering. It points at one position inside one block; nested region
// construction saves the cursor, redirects it into a scratch block,
// and restores it afterwards.
type Builder struct {
	M   *Module
	blk BlockID
	at  int // insertion index into the block's op list; -1 appends
}

// NewBuilder creates a builder appending to the module body.
func NewBuilder(m *Module) *Builder {
	b := &Builder{M: m}
	b.SetInsertionEnd(m.Body)
	return b
}

// SetInsertionEnd moves the cursor to append at the end of a block.
func (b *Builder) SetInsertionEnd(blk BlockID) {
	b.blk = blk
	b.at = -1
}

// SetInsertionBefore moves the cursor to insert directly before an op.
func (b *Builder) SetInsertionBefore(o *Op) {
	b.blk = o.block
	blk := b.M.BlockOf(o.block)
	for i, id := range blk.Ops {
		if id == o.id {
			b.at = i
			return
		}
	}
	b.at = -1
}

// Save returns the current cursor for a later Restore.
func (b *Builder) Save() (BlockID, int) { return b.blk, b.at }

// Restore resets the cursor to a previously saved position.
func (b *Builder) Restore(blk BlockID, at int) {
	b.blk = blk
	b.at = at
}

// Block returns the block the cursor points into.
func (b *Builder) Block() BlockID { return b.blk }

// Build creates an op with the given operands and result types at the
// cursor and advances the cursor past it.
func (b *Builder) Build(pos token.Position, name string, operands []ValueID, resultTypes []Type) *Op {
	o := b.M.newOp(name, pos)
	o.Operands = append([]ValueID(nil), operands...)
	b.M.addResults(o, resultTypes)
	o.block = b.blk
	blk := b.M.BlockOf(b.blk)
	if b.at < 0 || b.at >= len(blk.Ops) {
		blk.Ops = append(blk.Ops, o.id)
	} else {
		blk.Ops = append(blk.Ops[:b.at], append([]OpID{o.id}, blk.Ops[b.at:]...)...)
		b.at++
	}
	return o
}

// BuildConst creates a tessel.constant of the given type holding v.
// v must be one of int64, uint64, float64, float32, bool, string.
func (b *Builder) BuildConst(pos token.Position, t Type, v any) ValueID {
	o := b.Build(pos, OpConstant, nil, []Type{t})
	o.Attrs = map[string]any{AttrValue: v}
	return o.Result(0)
}

// ConstInt builds an si64 constant.
func (b *Builder) ConstInt(pos token.Position, v int64) ValueID {
	return b.BuildConst(pos, SI64Type(), v)
}

// ConstFloat builds an f64 constant.
func (b *Builder) ConstFloat(pos token.Position, v float64) ValueID {
	return b.BuildConst(pos, F64Type(), v)
}

// ConstBool builds a bool constant.
func (b *Builder) ConstBool(pos token.Position, v bool) ValueID {
	return b.BuildConst(pos, BoolType(), v)
}

// ConstString builds a string constant.
func (b *Builder) ConstString(pos token.Position, v string) ValueID {
	return b.BuildConst(pos, StringType(), v)
}
