// Package journal records per-contact dispatch outcomes.
//
// It supports:
//   - "file": append-only JSON Lines
//   - "sqlite": SQLite database (modernc.org/sqlite, no cgo)
//
// The journal is write-only from the dispatcher's point of view; run tallies
// are computed in memory and never read back from it.
package journal
