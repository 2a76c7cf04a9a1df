package lower

import (
	"cuelang.org/go/cue/token"
	"golang.org/x/text/unicode/norm"

	"github.com/tessel-lang/tessel/internal/ast"
	"github.com/tessel-lang/tessel/internal/ir"
)

// axisOps names the per-axis operations the indexing engine composes.
type axisOps struct {
	extract string
	slice   string
	insert  string
	num     string
}

var (
	rowOps = axisOps{
		extract: ir.OpExtractRow,
		slice:   ir.OpSliceRow,
		insert:  ir.OpInsertRow,
		num:     ir.OpNumRows,
	}
	colOps = axisOps{
		extract: ir.OpExtractCol,
		slice:   ir.OpSliceCol,
		insert:  ir.OpInsertCol,
		num:     ir.OpNumCols,
	}
)

// normalizeLabel rewrites a constant string label to its NFC form, so
// differently composed spellings of the same column label select the
// same column.
func (lw *Lowerer) normalizeLabel(pos token.Position, v ir.ValueID) ir.ValueID {
	def := lw.mod.DefOp(v)
	if def == nil || def.Name != ir.OpConstant {
		return v
	}
	s, ok := def.Attrs[ir.AttrValue].(string)
	if !ok {
		return v
	}
	if ns := norm.NFC.String(s); ns != s {
		return lw.b.ConstString(pos, ns)
	}
	return v
}

// rangeBounds lowers a range's bounds, defaulting a missing lower
// bound to 0 and a missing upper bound to the axis size.
func (lw *Lowerer) rangeBounds(pos token.Position, obj ir.ValueID, spec *ast.RangeSpec, ops axisOps) (lo, hi ir.ValueID, err error) {
	if spec.Lo != nil {
		if lo, err = lw.exprValue(spec.Lo); err != nil {
			return 0, 0, err
		}
		lo = lw.castSI64If(pos, lo)
	} else {
		lo = lw.b.ConstInt(pos, 0)
	}
	if spec.Hi != nil {
		if hi, err = lw.exprValue(spec.Hi); err != nil {
			return 0, 0, err
		}
		hi = lw.castSI64If(pos, hi)
	} else {
		hi = lw.b.Build(pos, ops.num, []ir.ValueID{obj}, []ir.Type{ir.SI64Type()}).Result(0)
	}
	return lo, hi, nil
}

// applyRightIndexing lowers one axis of a read: a data-object position
// extracts, a label extracts where labels are allowed, a scalar slices
// the half-open width-1 range [v, v+1), and a range slices with
// defaulted bounds.
func (lw *Lowerer) applyRightIndexing(pos token.Position, obj ir.ValueID, spec *ast.RangeSpec, ops axisOps, allowLabel bool) (ir.ValueID, error) {
	unknown := []ir.Type{ir.Unknown()}
	if spec.Point != nil {
		ax, err := lw.exprValue(spec.Point)
		if err != nil {
			return 0, err
		}
		axTy := lw.mod.TypeOf(ax)
		switch {
		case axTy.IsData():
			o := lw.b.Build(pos, ops.extract, []ir.ValueID{obj, ax}, unknown)
			return o.Result(0), nil
		case axTy.Equal(ir.StringType()):
			if !allowLabel {
				return 0, errf(ErrCodeUnsupportedFeature, "indexing", pos,
					"cannot use right indexing with label in this case")
			}
			ax = lw.normalizeLabel(pos, ax)
			o := lw.b.Build(pos, ops.extract, []ir.ValueID{obj, ax}, unknown)
			return o.Result(0), nil
		default:
			lo := lw.castSI64If(pos, ax)
			one := lw.b.ConstInt(pos, 1)
			hi := lw.b.Build(pos, ir.OpEwAdd, []ir.ValueID{lo, one}, []ir.Type{ir.SI64Type()}).Result(0)
			o := lw.b.Build(pos, ops.slice, []ir.ValueID{obj, lo, hi}, unknown)
			return o.Result(0), nil
		}
	}
	lo, hi, err := lw.rangeBounds(pos, obj, spec, ops)
	if err != nil {
		return 0, err
	}
	o := lw.b.Build(pos, ops.slice, []ir.ValueID{obj, lo, hi}, unknown)
	return o.Result(0), nil
}

// applyLeftIndexing lowers one axis of a write. Data-object and label
// positions are unsupported for writes; scalars insert the width-1
// range [v, v+1) and ranges insert with defaulted bounds. The result
// keeps the indexed object's type.
func (lw *Lowerer) applyLeftIndexing(pos token.Position, obj, ins ir.ValueID, spec *ast.RangeSpec, ops axisOps, allowLabel bool) (ir.ValueID, error) {
	objTy := []ir.Type{lw.mod.TypeOf(obj)}
	if spec.Point != nil {
		ax, err := lw.exprValue(spec.Point)
		if err != nil {
			return 0, err
		}
		axTy := lw.mod.TypeOf(ax)
		switch {
		case axTy.IsData():
			return 0, errf(ErrCodeUnsupportedFeature, "indexing", pos,
				"left indexing with positions as a data object is not supported (yet)")
		case axTy.Equal(ir.StringType()):
			if allowLabel {
				return 0, errf(ErrCodeUnsupportedFeature, "indexing", pos,
					"left indexing by label is not supported yet")
			}
			return 0, errf(ErrCodeUnsupportedFeature, "indexing", pos,
				"cannot use left indexing with label in this case")
		default:
			lo := lw.castSI64If(pos, ax)
			one := lw.b.ConstInt(pos, 1)
			hi := lw.b.Build(pos, ir.OpEwAdd, []ir.ValueID{lo, one}, []ir.Type{ir.SI64Type()}).Result(0)
			o := lw.b.Build(pos, ops.insert, []ir.ValueID{obj, ins, lo, hi}, objTy)
			return o.Result(0), nil
		}
	}
	lo, hi, err := lw.rangeBounds(pos, obj, spec, ops)
	if err != nil {
		return 0, err
	}
	o := lw.b.Build(pos, ops.insert, []ir.ValueID{obj, ins, lo, hi}, objTy)
	return o.Result(0), nil
}

// readIndexed lowers `obj[rows, cols]` (extract/slice) and
// `obj[[rows, cols]]` (filter). Two specified axes become two chained
// single-axis steps.
func (lw *Lowerer) readIndexed(e *ast.RightIdx) (ir.ValueID, error) {
	obj, err := lw.exprValue(e.Obj)
	if err != nil {
		return 0, err
	}
	if e.Filter {
		if e.Index.Rows != nil && e.Index.Rows.Point != nil {
			sel, err := lw.exprValue(e.Index.Rows.Point)
			if err != nil {
				return 0, err
			}
			o := lw.b.Build(e.Pos, ir.OpFilterRow, []ir.ValueID{obj, sel}, []ir.Type{lw.mod.TypeOf(obj)})
			obj = o.Result(0)
		}
		if e.Index.Cols != nil && e.Index.Cols.Point != nil {
			sel, err := lw.exprValue(e.Index.Cols.Point)
			if err != nil {
				return 0, err
			}
			o := lw.b.Build(e.Pos, ir.OpFilterCol, []ir.ValueID{obj, sel}, []ir.Type{lw.mod.TypeOf(obj)})
			obj = o.Result(0)
		}
		return obj, nil
	}
	if e.Index.Rows != nil {
		if obj, err = lw.applyRightIndexing(e.Pos, obj, e.Index.Rows, rowOps, false); err != nil {
			return 0, err
		}
	}
	if e.Index.Cols != nil {
		allowLabel := lw.mod.TypeOf(obj).Kind == ir.KindFrame
		if obj, err = lw.applyRightIndexing(e.Pos, obj, e.Index.Cols, colOps, allowLabel); err != nil {
			return 0, err
		}
	}
	return obj, nil
}

// writeIndexed lowers `obj[rows, cols] = ins`. A simultaneous row and
// column write composes three single-axis steps: slice the row band,
// insert into its columns, insert the band back.
func (lw *Lowerer) writeIndexed(pos token.Position, obj, ins ir.ValueID, idx *ast.IndexSpec) (ir.ValueID, error) {
	rows, cols := idx.Rows, idx.Cols
	isFrame := lw.mod.TypeOf(obj).Kind == ir.KindFrame
	switch {
	case rows != nil && cols != nil:
		rowSeg, err := lw.applyRightIndexing(pos, obj, rows, rowOps, false)
		if err != nil {
			return 0, err
		}
		rowSeg, err = lw.applyLeftIndexing(pos, rowSeg, ins, cols, colOps, isFrame)
		if err != nil {
			return 0, err
		}
		return lw.applyLeftIndexing(pos, obj, rowSeg, rows, rowOps, false)
	case rows != nil:
		return lw.applyLeftIndexing(pos, obj, ins, rows, rowOps, false)
	case cols != nil:
		return lw.applyLeftIndexing(pos, obj, ins, cols, colOps, isFrame)
	default:
		return lw.renameIf(pos, ins), nil
	}
}
