package ir

import (
	"cuelang.org/go/cue/token"
	"github.com/google/uuid"
)

// IDs are stable arena indices. The zero value of each ID type is
// invalid; valid IDs start at 1.
type (
	ValueID  int
	OpID     int
	BlockID  int
	RegionID int
)

// Op is one operation: N operands, attributes, result values, and
// optionally nested regions. Ops are created through a Builder and
// owned by the arena of their Module.
type Op struct {
	id       OpID
	Name     string
	Pos      token.Position
	Operands []ValueID
	Attrs    map[string]any
	Results  []ValueID
	Regions  []RegionID
	block    BlockID
	erased   bool
}

// ID returns the op's arena identity.
func (o *Op) ID() OpID { return o.id }

// Block returns the block currently containing the op, or 0 if the
// op is detached.
func (o *Op) Block() BlockID { return o.block }

// Erased reports whether the op has been removed from the module.
func (o *Op) Erased() bool { return o.erased }

// Result returns the i-th result value.
func (o *Op) Result(i int) ValueID { return o.Results[i] }

// Block holds ordered operations and typed parameters. A completed
// block ends in exactly one terminator as its last operation.
type Block struct {
	id     BlockID
	Params []ValueID
	Ops    []OpID
	region RegionID // 0 for the module body and detached scratch blocks
}

// ID returns the block's arena identity.
func (b *Block) ID() BlockID { return b.id }

// Region returns the region containing the block, or 0.
func (b *Block) Region() RegionID { return b.region }

// Region is an ordered list of blocks nested under an op.
type Region struct {
	id     RegionID
	Blocks []BlockID
	op     OpID
}

// ID returns the region's arena identity.
func (r *Region) ID() RegionID { return r.id }

// Op returns the op owning the region.
func (r *Region) Op() OpID { return r.op }

// Value is a handle to one IR result: either an op result or a block
// parameter. Every value has a type and exactly one definition.
type Value struct {
	id    ValueID
	Type  Type
	def   OpID    // 0 for block parameters
	owner BlockID // 0 for op results
	index int
}

// ValueID returns the value's arena identity.
func (v *Value) ValueID() ValueID { return v.id }

// IsParam reports whether the value is a block parameter.
func (v *Value) IsParam() bool { return v.def == 0 }

// Module owns the arena of all IR entities plus a distinguished
// top-level body block holding function ops.
type Module struct {
	// ID identifies one lowering session, stamped into diagnostics
	// and artifact records.
	ID   string
	Body BlockID

	ops     []*Op
	blocks  []*Block
	regions []*Region
	values  []*Value
}

// NewModule creates an empty module with a fresh body block.
func NewModule() *Module {
	m := &Module{ID: uuid.NewString()}
	m.Body = m.NewBlock()
	return m
}

// Op resolves an OpID. Panics on the zero ID.
func (m *Module) Op(id OpID) *Op { return m.ops[id-1] }

// BlockOf resolves a BlockID.
func (m *Module) BlockOf(id BlockID) *Block { return m.blocks[id-1] }

// RegionOf resolves a RegionID.
func (m *Module) RegionOf(id RegionID) *Region { return m.regions[id-1] }

// ValueOf resolves a ValueID.
func (m *Module) ValueOf(id ValueID) *Value { return m.values[id-1] }

// TypeOf returns the type of a value.
func (m *Module) TypeOf(v ValueID) Type { return m.ValueOf(v).Type }

// DefOp returns the op defining v, or nil if v is a block parameter.
func (m *Module) DefOp(v ValueID) *Op {
	val := m.ValueOf(v)
	if val.def == 0 {
		return nil
	}
	return m.Op(val.def)
}

// ParamOwner returns the block owning a parameter value, or 0 if the
// value is an op result.
func (m *Module) ParamOwner(v ValueID) BlockID { return m.ValueOf(v).owner }

// NewBlock creates a detached block. Detached blocks serve as scratch
// insertion targets during nested region construction and are later
// attached to a region (or their ops spliced elsewhere).
func (m *Module) NewBlock() BlockID {
	b := &Block{id: BlockID(len(m.blocks) + 1)}
	m.blocks = append(m.blocks, b)
	return b.id
}

// NewRegion creates a region nested under op.
func (m *Module) NewRegion(op *Op) RegionID {
	r := &Region{id: RegionID(len(m.regions) + 1), op: op.id}
	m.regions = append(m.regions, r)
	op.Regions = append(op.Regions, r.id)
	return r.id
}

// AttachBlock appends a block to a region.
func (m *Module) AttachBlock(r RegionID, b BlockID) {
	m.BlockOf(b).region = r
	reg := m.RegionOf(r)
	reg.Blocks = append(reg.Blocks, b)
}

// AddParam appends a typed parameter to a block and returns its value.
func (m *Module) AddParam(b BlockID, t Type) ValueID {
	blk := m.BlockOf(b)
	v := m.newValue(t)
	val := m.ValueOf(v)
	val.owner = b
	val.index = len(blk.Params)
	blk.Params = append(blk.Params, v)
	return v
}

func (m *Module) newValue(t Type) ValueID {
	v := &Value{id: ValueID(len(m.values) + 1), Type: t}
	m.values = append(m.values, v)
	return v.id
}

func (m *Module) newOp(name string, pos token.Position) *Op {
	o := &Op{id: OpID(len(m.ops) + 1), Name: name, Pos: pos}
	m.ops = append(m.ops, o)
	return o
}

func (m *Module) addResults(o *Op, types []Type) {
	for _, t := range types {
		v := m.newValue(t)
		val := m.ValueOf(v)
		val.def = o.id
		val.index = len(o.Results)
		o.Results = append(o.Results, v)
	}
}

// removeFromBlock unlinks an op from its containing block.
func (m *Module) removeFromBlock(o *Op) {
	if o.block == 0 {
		return
	}
	blk := m.BlockOf(o.block)
	for i, id := range blk.Ops {
		if id == o.id {
			blk.Ops = append(blk.Ops[:i], blk.Ops[i+1:]...)
			break
		}
	}
	o.block = 0
}

// EraseOp removes an op from the module, including everything nested
// in its regions. The arena slot remains (IDs stay stable) but the op
// is excluded from all traversals.
func (m *Module) EraseOp(o *Op) {
	m.removeFromBlock(o)
	m.eraseTree(o)
}

func (m *Module) eraseTree(o *Op) {
	o.erased = true
	for _, r := range o.Regions {
		for _, b := range m.RegionOf(r).Blocks {
			for _, opID := range m.BlockOf(b).Ops {
				m.eraseTree(m.Op(opID))
			}
		}
	}
}

// MoveOpToEnd detaches an op from its block and appends it to dst.
func (m *Module) MoveOpToEnd(o *Op, dst BlockID) {
	m.removeFromBlock(o)
	o.block = dst
	blk := m.BlockOf(dst)
	blk.Ops = append(blk.Ops, o.id)
}

// Splice moves all ops of src to the end of dst, preserving order.
func (m *Module) Splice(dst, src BlockID) {
	srcBlk := m.BlockOf(src)
	ops := append([]OpID(nil), srcBlk.Ops...)
	for _, id := range ops {
		m.MoveOpToEnd(m.Op(id), dst)
	}
}

// EnclosingRegion returns the region containing the op's block, or 0
// if the op sits in the module body or a detached block.
func (m *Module) EnclosingRegion(o *Op) RegionID {
	if o.block == 0 {
		return 0
	}
	return m.BlockOf(o.block).region
}

// IsAncestor reports whether region anc contains region r, directly
// or transitively. A region is its own ancestor.
func (m *Module) IsAncestor(anc, r RegionID) bool {
	for r != 0 {
		if r == anc {
			return true
		}
		owner := m.Op(m.RegionOf(r).op)
		r = m.EnclosingRegion(owner)
	}
	return false
}

// ReplaceUsesIf rewrites operand references old -> new in every
// non-erased op satisfying pred.
func (m *Module) ReplaceUsesIf(old, new ValueID, pred func(*Op) bool) {
	for _, o := range m.ops {
		if o.erased {
			continue
		}
		touched := false
		for i, v := range o.Operands {
			if v == old {
				if !touched && !pred(o) {
					break
				}
				touched = true
				o.Operands[i] = new
			}
		}
	}
}

// ReplaceAllUses rewrites every operand reference old -> new.
func (m *Module) ReplaceAllUses(old, new ValueID) {
	m.ReplaceUsesIf(old, new, func(*Op) bool { return true })
}

// Walk visits every non-erased op under a block in depth-first
// pre-order, descending into nested regions.
func (m *Module) Walk(b BlockID, fn func(*Op)) {
	for _, id := range append([]OpID(nil), m.BlockOf(b).Ops...) {
		o := m.Op(id)
		if o.erased {
			continue
		}
		fn(o)
		for _, r := range o.Regions {
			for _, nested := range m.RegionOf(r).Blocks {
				m.Walk(nested, fn)
			}
		}
	}
}

// CloneOp deep-copies an op (attributes, result types, nested
// regions) at the builder's insertion point. Operand references are
// rewritten through vmap where present; values cloned inside the op
// are added to vmap so later clones see them.
func (m *Module) CloneOp(src *Op, b *Builder, vmap map[ValueID]ValueID) *Op {
	operands := make([]ValueID, len(src.Operands))
	for i, v := range src.Operands {
		if mapped, ok := vmap[v]; ok {
			operands[i] = mapped
		} else {
			operands[i] = v
		}
	}
	types := make([]Type, len(src.Results))
	for i, v := range src.Results {
		types[i] = m.TypeOf(v)
	}
	clone := b.Build(src.Pos, src.Name, operands, types)
	if src.Attrs != nil {
		clone.Attrs = make(map[string]any, len(src.Attrs))
		for k, v := range src.Attrs {
			clone.Attrs[k] = v
		}
	}
	for i, v := range src.Results {
		vmap[v] = clone.Results[i]
	}
	for _, rid := range src.Regions {
		newRegion := m.NewRegion(clone)
		for _, bid := range m.RegionOf(rid).Blocks {
			srcBlk := m.BlockOf(bid)
			newBlk := m.NewBlock()
			for _, p := range srcBlk.Params {
				vmap[p] = m.AddParam(newBlk, m.TypeOf(p))
			}
			m.AttachBlock(newRegion, newBlk)
			nested := &Builder{M: m}
			nested.SetInsertionEnd(newBlk)
			for _, opID := range srcBlk.Ops {
				inner := m.Op(opID)
				if !inner.erased {
					m.CloneOp(inner, nested, vmap)
				}
			}
		}
	}
	return clone
}

// Terminator returns the last op of a block, or nil if the block is
// empty.
func (m *Module) Terminator(b BlockID) *Op {
	blk := m.BlockOf(b)
	if len(blk.Ops) == 0 {
		return nil
	}
	return m.Op(blk.Ops[len(blk.Ops)-1])
}
