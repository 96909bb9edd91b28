package storage

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// EventRecord is one logged app event. Keep it compact and schema-stable.
type EventRecord struct {
	At         time.Time `json:"at"`
	Kind       string    `json:"kind"`
	ValueToSum *float64  `json:"value_to_sum,omitempty"`
	ParamsJSON string    `json:"params,omitempty"`
}

// LinkRecord is one observed deep link.
type LinkRecord struct {
	At     time.Time `json:"at"`
	URL    string    `json:"url"`
	Source string    `json:"source"` // "deferred" or "open"
}

// Store is the persistence API used by the bridge and the SDK journal.
type Store interface {
	AppendEvent(ctx context.Context, e EventRecord) error
	AppendLink(ctx context.Context, l LinkRecord) error
	// LastLink returns the most recently appended link, if any.
	LastLink(ctx context.Context) (LinkRecord, bool, error)
	// Prune deletes records older than before and returns how many went.
	Prune(ctx context.Context, before time.Time) (int, error)
	Close() error
}
