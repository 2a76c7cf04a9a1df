// Package ir provides the SSA, region-structured intermediate
// representation that lowering emits into.
//
// All IR entities (operations, blocks, regions, values) live in an
// arena owned by a Module and are addressed by stable integer IDs.
// Terminators reference successor structures, and the return
// rectifier splices operations between blocks, so identities must
// survive arbitrary rewrites; pointer-linked nodes would not.
//
// This package contains structure only. It knows nothing about the
// scripting language; op names are opaque strings and the semantics
// of individual operations belong to the backend.
package ir
