// Package storage persists rooms, standup entries, the admin audit log and
// notifier dedup state.
//
// Drivers:
//   - sqlite: single database file (modernc.org/sqlite, no cgo)
//   - file:   JSON state snapshot + JSONL audit log + dedup journal
//   - memory: process-local, for tests and throwaway runs
package storage
