// Package ast defines the parse-tree node types consumed by lowering.
//
// Tessel does not parse script source text itself; an external
// grammar-driven parser produces the tree and hands it across the
// boundary as a YAML document (see DecodeScript). Every node carries
// a source position used to stamp diagnostics and emitted operations.
package ast
