package ir

// Operation names emitted by lowering. The catalog of what each op
// computes belongs to the backend; the lowering core only cares about
// structure (regions, terminators) and types.
const (
	OpConstant = "tessel.constant"
	OpRename   = "tessel.rename"
	OpCast     = "tessel.cast"

	// Structured control flow.
	OpIf     = "tessel.if"
	OpWhile  = "tessel.while"
	OpFor    = "tessel.for"
	OpParFor = "tessel.parfor"

	// Terminators.
	OpYield     = "tessel.yield"
	OpCondition = "tessel.condition"
	OpReturn    = "tessel.return"

	// Functions and calls.
	OpFunc        = "tessel.func"
	OpGenericCall = "tessel.generic_call"

	// Elementwise arithmetic and comparison.
	OpEwAdd   = "tessel.ew_add"
	OpEwSub   = "tessel.ew_sub"
	OpEwMul   = "tessel.ew_mul"
	OpEwDiv   = "tessel.ew_div"
	OpEwPow   = "tessel.ew_pow"
	OpEwMod   = "tessel.ew_mod"
	OpEwMinus = "tessel.ew_minus"
	OpEwSign  = "tessel.ew_sign"
	OpEwEq    = "tessel.ew_eq"
	OpEwNeq   = "tessel.ew_neq"
	OpEwLt    = "tessel.ew_lt"
	OpEwLe    = "tessel.ew_le"
	OpEwGt    = "tessel.ew_gt"
	OpEwGe    = "tessel.ew_ge"
	OpEwAnd   = "tessel.ew_and"
	OpEwOr    = "tessel.ew_or"
	OpMatMul  = "tessel.matmul"

	// Row/column indexing.
	OpExtractRow = "tessel.extract_row"
	OpExtractCol = "tessel.extract_col"
	OpSliceRow   = "tessel.slice_row"
	OpSliceCol   = "tessel.slice_col"
	OpInsertRow  = "tessel.insert_row"
	OpInsertCol  = "tessel.insert_col"
	OpNumRows    = "tessel.num_rows"
	OpNumCols    = "tessel.num_cols"
	OpFilterRow  = "tessel.filter_row"
	OpFilterCol  = "tessel.filter_col"
)

// Attribute keys with structural meaning.
const (
	AttrValue   = "value"   // constant payload
	AttrSymName = "sym"     // function symbol
	AttrCallee  = "callee"  // generic_call target symbol
	AttrResNum  = "results" // declared result count on tessel.func
)

// IsTerminator reports whether the op ends a block.
func (o *Op) IsTerminator() bool {
	switch o.Name {
	case OpYield, OpCondition, OpReturn:
		return true
	}
	return false
}
