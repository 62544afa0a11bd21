// Package sheets defines the audit journal mirror of the ledger. The SQLite
// store stays the system of record; the journal is a human-readable copy.
package sheets

import (
	"context"
	"time"

	"caja/internal/core"
)

// JournalEntry is one row of the journal: a single committed ledger event.
type JournalEntry struct {
	EventID    string
	GroupID    int64
	Kind       string
	Actor      string
	OccurredAt time.Time
	Amount     core.Money
	Summary    string
}

// Ports for outbound adapters.
type (
	JournalWriter interface {
		// Append writes the entry and returns a reference to the written row.
		Append(ctx context.Context, e JournalEntry) (rowRef string, err error)
	}

	JournalReader interface {
		// Recent returns up to limit entries, newest last.
		Recent(ctx context.Context, limit int) ([]JournalEntry, error)
	}
)
