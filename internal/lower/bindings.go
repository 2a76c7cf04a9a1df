package lower

import (
	"sort"

	"github.com/tessel-lang/tessel/internal/ir"
)

// Binding associates a name with one IR value. Read-only bindings
// (a for-loop's induction variable) can never be rebound.
type Binding struct {
	Value    ir.ValueID
	ReadOnly bool
}

// Scope maps names to bindings. Dotted names are flat string keys.
// Iteration must go through Names for deterministic order.
type Scope map[string]Binding

// Names returns the scope's names in lexicographic order.
func (s Scope) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// mergeNames returns the lexicographically sorted union of the names
// bound in either scope.
func mergeNames(a, b Scope) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for n := range a {
		set[n] = struct{}{}
	}
	for n := range b {
		set[n] = struct{}{}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BindingStore is a stack of scopes, innermost last. It is never
// empty while lowering runs.
type BindingStore struct {
	scopes []Scope
}

// NewBindingStore creates a store with one root scope.
func NewBindingStore() *BindingStore {
	return &BindingStore{scopes: []Scope{{}}}
}

// Push enters a fresh innermost scope.
func (st *BindingStore) Push() {
	st.scopes = append(st.scopes, Scope{})
}

// Pop removes and returns the innermost scope.
func (st *BindingStore) Pop() Scope {
	top := st.scopes[len(st.scopes)-1]
	st.scopes = st.scopes[:len(st.scopes)-1]
	return top
}

// Depth returns the number of open scopes.
func (st *BindingStore) Depth() int { return len(st.scopes) }

// Put inserts or overwrites a binding in the innermost scope.
func (st *BindingStore) Put(name string, b Binding) {
	st.scopes[len(st.scopes)-1][name] = b
}

// PutAll copies every binding of s into the innermost scope.
func (st *BindingStore) PutAll(s Scope) {
	top := st.scopes[len(st.scopes)-1]
	for n, b := range s {
		top[n] = b
	}
}

// Get looks a name up innermost-to-outermost.
func (st *BindingStore) Get(name string) (Binding, bool) {
	for i := len(st.scopes) - 1; i >= 0; i-- {
		if b, ok := st.scopes[i][name]; ok {
			return b, true
		}
	}
	return Binding{}, false
}

// Has reports whether the name is bound in any scope.
func (st *BindingStore) Has(name string) bool {
	_, ok := st.Get(name)
	return ok
}

// HasValue reports whether any scope currently binds a name to v.
func (st *BindingStore) HasValue(v ir.ValueID) bool {
	for _, s := range st.scopes {
		for _, b := range s {
			if b.Value == v {
				return true
			}
		}
	}
	return false
}

// Top returns a copy of the innermost scope without popping it.
func (st *BindingStore) Top() Scope {
	top := st.scopes[len(st.scopes)-1]
	out := make(Scope, len(top))
	for n, b := range top {
		out[n] = b
	}
	return out
}
