// Package lower turns a parsed script into SSA, region-structured IR.
//
// The walk is single-threaded, synchronous, and depth-first. Exactly
// one insertion cursor and one binding store exist at a time; both
// are saved and restored (never duplicated) around nested region
// construction. The first error aborts lowering of the whole script,
// including across imported sub-scripts.
//
// Component layout inside the package:
//
//   - bindings.go  scoped name binding and rebinding
//   - control.go   region-based conditionals and loops with
//     live-variable merge at region boundaries
//   - rectify.go   rewrite of nested early function returns into a
//     single trailing return
//   - overload.go  user-defined function overload resolution
//   - indexing.go  row/column read and write indexing
//   - args.go      command-line argument literal parsing
package lower
