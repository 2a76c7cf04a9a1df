package lower

import "github.com/tessel-lang/tessel/internal/ir"

// Result is a sealed interface over the possible outcomes of lowering
// an expression. Only NoResult, ValueResult, and ValuesResult
// implement it; exhaustive type switches replace the original
// design's dynamically discriminated visitor returns.
type Result interface {
	loweredResult()
}

// NoResult marks an expression that produced no value, e.g. a call to
// a zero-result builtin.
type NoResult struct{}

func (NoResult) loweredResult() {}

// ValueResult carries exactly one value.
type ValueResult struct {
	V ir.ValueID
}

func (ValueResult) loweredResult() {}

// ValuesResult carries the multiple results of one operation, e.g. a
// call to a multi-output function.
type ValuesResult struct {
	Vs []ir.ValueID
}

func (ValuesResult) loweredResult() {}
