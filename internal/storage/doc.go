// Package storage provides the execution ledger backends used by the runner.
//
// A ledger remembers which (date, period, action) triples already ran, so
// once-per-day actions are not repeated across ticks or restarts.
//
// Drivers:
//   - memory: process-local map, lost on restart
//   - file: jsonl journal + periodic snapshot
//   - sqlite: modernc.org/sqlite database file
//   - postgres: shared database via lib/pq
//   - redis: shared keys with TTL = retention
package storage
