package lower

import (
	"math"
	"strconv"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/tessel-lang/tessel/internal/ast"
	"github.com/tessel-lang/tessel/internal/ir"
)

// argLiteral resolves a `$name` reference: the mapped string is parsed
// as exactly one complete literal at the reference site. A leading
// minus that is not part of a numeric literal becomes an elementwise
// negation of the remaining literal.
func (lw *Lowerer) argLiteral(e *ast.ArgRef) (ir.ValueID, error) {
	raw, ok := lw.args[e.Name]
	if !ok {
		return 0, errf(ErrCodeArgument, "args", e.Pos,
			"command-line argument `%s` was not provided", e.Name)
	}
	if v, ok := lw.parseLiteral(e.Pos, raw); ok {
		return v, nil
	}
	if rest, found := strings.CutPrefix(raw, "-"); found {
		if v, ok := lw.parseLiteral(e.Pos, rest); ok {
			o := lw.b.Build(e.Pos, ir.OpEwMinus, []ir.ValueID{v}, []ir.Type{ir.Unknown()})
			return o.Result(0), nil
		}
	}
	return 0, errf(ErrCodeArgument, "args", e.Pos,
		"could not parse command-line argument `%s` as exactly one literal: %q", e.Name, raw)
}

// parseLiteral turns one literal spelling into a constant: bool,
// si64 (including the minimal int64), f64 (including nan/inf/-inf),
// or a double-quoted string with escape sequences.
func (lw *Lowerer) parseLiteral(pos token.Position, s string) (ir.ValueID, bool) {
	switch s {
	case "true":
		return lw.b.ConstBool(pos, true), true
	case "false":
		return lw.b.ConstBool(pos, false), true
	case "nan":
		return lw.b.ConstFloat(pos, math.NaN()), true
	case "inf":
		return lw.b.ConstFloat(pos, math.Inf(1)), true
	case "-inf":
		return lw.b.ConstFloat(pos, math.Inf(-1)), true
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return lw.b.ConstInt(pos, i), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && strings.ContainsAny(s, ".eE") {
		return lw.b.ConstFloat(pos, f), true
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if unq, err := strconv.Unquote(s); err == nil {
			return lw.b.ConstString(pos, unq), true
		}
	}
	return 0, false
}
