// Package builtins is the opaque registry of builtin operations.
// Lowering addresses it by dotted name after user-defined overload
// resolution misses; each entry turns an argument-value list into the
// results of one newly built operation. The semantics of the
// individual operations belong to the backend.
package builtins

import (
	"fmt"

	"cuelang.org/go/cue/token"

	"github.com/tessel-lang/tessel/internal/ir"
)

// BuildFunc emits one operation for a builtin call and returns its
// results (zero, one, or many).
type BuildFunc func(b *ir.Builder, pos token.Position, args []ir.ValueID) ([]ir.ValueID, error)

// Registry maps dotted builtin names to their op builders.
type Registry struct {
	fns map[string]BuildFunc
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{fns: make(map[string]BuildFunc)}
}

// Register adds or replaces a builtin.
func (r *Registry) Register(name string, fn BuildFunc) {
	r.fns[name] = fn
}

// Has reports whether a builtin is registered under the name.
func (r *Registry) Has(name string) bool {
	_, ok := r.fns[name]
	return ok
}

// Build looks the name up and emits the operation.
func (r *Registry) Build(b *ir.Builder, pos token.Position, name string, args []ir.ValueID) ([]ir.ValueID, error) {
	fn, ok := r.fns[name]
	if !ok {
		return nil, fmt.Errorf("unknown builtin function `%s`", name)
	}
	return fn(b, pos, args)
}

// fixedArity wraps an op emission with an exact argument count check.
func fixedArity(name string, n int, results []ir.Type) BuildFunc {
	opName := "tessel." + name
	return func(b *ir.Builder, pos token.Position, args []ir.ValueID) ([]ir.ValueID, error) {
		if len(args) != n {
			return nil, fmt.Errorf("builtin function `%s` expects exactly %d argument(s), but got %d", name, n, len(args))
		}
		o := b.Build(pos, opName, args, results)
		return o.Results, nil
	}
}

// Default returns a registry preloaded with the builtin catalog.
func Default() *Registry {
	r := New()
	unknown := []ir.Type{ir.Unknown()}
	si64 := []ir.Type{ir.SI64Type()}
	mat := []ir.Type{ir.MatrixOf(ir.Unknown())}

	r.Register("print", fixedArity("print", 1, nil))
	r.Register("sum", fixedArity("sum", 1, unknown))
	r.Register("mean", fixedArity("mean", 1, unknown))
	r.Register("min", fixedArity("min", 1, unknown))
	r.Register("max", fixedArity("max", 1, unknown))
	r.Register("t", fixedArity("t", 1, mat))
	r.Register("nrow", fixedArity("nrow", 1, si64))
	r.Register("ncol", fixedArity("ncol", 1, si64))
	r.Register("fill", fixedArity("fill", 3, mat))
	r.Register("seq", fixedArity("seq", 3, mat))
	r.Register("rand", fixedArity("rand", 2, mat))
	r.Register("cbind", fixedArity("cbind", 2, mat))
	r.Register("rbind", fixedArity("rbind", 2, mat))
	r.Register("map", fixedArity("map", 2, mat))
	return r
}
