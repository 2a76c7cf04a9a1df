// Package store provides a SQLite-backed cache of lowering artifacts.
//
// Each record maps the content hash of a script's parse-tree document
// to the textual IR produced for it, so re-lowering an unchanged
// script can be skipped. Hashes are computed over NFC-normalized text
// with domain separation, so byte-level differences in Unicode
// composition do not produce distinct cache entries.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
