package lower

import (
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/tessel-lang/tessel/internal/ir"
)

// FuncInfo is one registered user-defined function signature.
// Overloads share a script-visible name; every overload gets its own
// unique IR symbol.
type FuncInfo struct {
	Name    string
	Symbol  string
	Params  []ir.Type
	Results []ir.Type
	Op      ir.OpID // the tessel.func op backing this signature
}

// FuncTable is a multimap from script-visible function names to their
// registered overloads, in registration order.
type FuncTable struct {
	entries map[string][]*FuncInfo
}

// NewFuncTable creates an empty table.
func NewFuncTable() *FuncTable {
	return &FuncTable{entries: make(map[string][]*FuncInfo)}
}

// Register appends a signature under its name.
func (t *FuncTable) Register(fi *FuncInfo) {
	t.entries[fi.Name] = append(t.entries[fi.Name], fi)
}

// Lookup returns the overloads registered under a name, in
// registration order.
func (t *FuncTable) Lookup(name string) []*FuncInfo {
	return t.entries[name]
}

// Names returns all registered names (unsorted).
func (t *FuncTable) Names() []string {
	names := make([]string, 0, len(t.entries))
	for n := range t.entries {
		names = append(names, n)
	}
	return names
}

// compatible reports whether an argument type can bind a parameter of
// the given type: they are equal, either is Unknown, or both are
// matrices with at least one side's element type Unknown.
func compatible(arg, param ir.Type) bool {
	if arg.Equal(param) {
		return true
	}
	if arg.IsUnknown() || param.IsUnknown() {
		return true
	}
	if arg.Kind == ir.KindMatrix && param.Kind == ir.KindMatrix {
		return arg.ElemType().IsUnknown() || param.ElemType().IsUnknown()
	}
	return false
}

// FindMatching resolves a call against the registered overloads.
// It returns (nil, nil) when the name is unregistered, letting the
// caller fall back to the builtin registry. When the name exists but
// no overload matches, the error enumerates every registered
// signature against the attempted argument types.
//
// Among several applicable overloads the first registered one wins;
// there is no specificity ranking.
func (t *FuncTable) FindMatching(pos token.Position, name string, argTypes []ir.Type) (*FuncInfo, error) {
	candidates := t.entries[name]
	if len(candidates) == 0 {
		return nil, nil
	}
	for _, fi := range candidates {
		if len(fi.Params) != len(argTypes) {
			continue
		}
		ok := true
		for i, p := range fi.Params {
			if !compatible(argTypes[i], p) {
				ok = false
				break
			}
		}
		if ok {
			return fi, nil
		}
	}
	var sb strings.Builder
	sb.WriteString("no definition of function `" + name + "` for argument types (")
	for i, a := range argTypes {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	sb.WriteString("), available options: ")
	for i, fi := range candidates {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(sigString(fi))
	}
	return nil, errf(ErrCodeOverloadResolution, "overloads", pos, "%s", sb.String())
}

// FindMatchingUnary resolves a function-by-name argument passed into
// a higher-order builtin: only single-parameter overloads are
// considered. Returns (nil, nil) when the name is unregistered.
func (t *FuncTable) FindMatchingUnary(pos token.Position, name string, argType ir.Type) (*FuncInfo, error) {
	candidates := t.entries[name]
	if len(candidates) == 0 {
		return nil, nil
	}
	for _, fi := range candidates {
		if len(fi.Params) != 1 {
			continue
		}
		if compatible(argType, fi.Params[0]) {
			return fi, nil
		}
	}
	return nil, errf(ErrCodeOverloadResolution, "overloads", pos,
		"no definition of function `%s` found with matching types", name)
}

func sigString(fi *FuncInfo) string {
	var sb strings.Builder
	sb.WriteString(fi.Name)
	sb.WriteString("(")
	for i, p := range fi.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.String())
	}
	sb.WriteString(")")
	return sb.String()
}
