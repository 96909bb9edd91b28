// Package storage persists the bridge's journal: logged app events and
// observed deep links.
//
// Drivers:
//   - "file": JSON Lines files next to the configured path
//   - "sqlite": a SQLite database (modernc.org/sqlite, pure Go)
//
// Both drivers support retention pruning and report the most recent link,
// which lets the bridge restore its last-observed deep link after a restart.
package storage
