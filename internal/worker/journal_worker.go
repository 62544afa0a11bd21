package worker

import (
	"context"
	"fmt"
	"log/slog"

	"caja/internal/amqp"
	"caja/internal/cache"
	"caja/internal/sheets"
)

const defaultSeenSize = 4096

// JournalWorker mirrors published ledger events into the audit journal.
// Delivery is at-least-once, so recently journaled event ids are remembered
// and redeliveries are acknowledged without writing a second row.
type JournalWorker struct {
	journal sheets.JournalWriter
	seen    *cache.LRUCache[string]
}

func NewJournalWorker(journal sheets.JournalWriter, seenSize int) *JournalWorker {
	if seenSize <= 0 {
		seenSize = defaultSeenSize
	}
	return &JournalWorker{
		journal: journal,
		seen:    cache.NewLRUCache[string](seenSize, 0),
	}
}

// Seen exposes the dedupe cache so it can be registered for stats.
func (w *JournalWorker) Seen() *cache.LRUCache[string] {
	return w.seen
}

// HandleEvent processes a single ledger event message from AMQP. A returned
// error makes the consumer requeue the message.
func (w *JournalWorker) HandleEvent(ctx context.Context, msg *amqp.EventMessage) error {
	if ref, ok := w.seen.Get(msg.ID); ok {
		slog.DebugContext(ctx, "Skipping already journaled event",
			"event_id", msg.ID,
			"row", ref)
		return nil
	}

	entry := sheets.NewJournalEntry(msg.ID, msg.GroupID, msg.Kind, msg.Actor, msg.OccurredAt, msg.Payload)

	ref, err := w.journal.Append(ctx, entry)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to append journal entry",
			"event_id", msg.ID,
			"kind", msg.Kind,
			"error", err)
		return fmt.Errorf("append journal entry %s: %w", msg.ID, err)
	}
	w.seen.Set(msg.ID, ref)

	slog.InfoContext(ctx, "Journaled ledger event",
		"event_id", msg.ID,
		"group_id", msg.GroupID,
		"kind", msg.Kind,
		"row", ref)
	return nil
}

// Run consumes events until ctx ends.
func (w *JournalWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeEvents(ctx, w.HandleEvent)
}
