package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"caja/internal/core"
	ports "caja/internal/sheets"
)

func entry(id string) ports.JournalEntry {
	return ports.JournalEntry{
		EventID:    id,
		GroupID:    1,
		Kind:       core.EventSavingsDeposited,
		OccurredAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Amount:     core.Cents(100),
	}
}

func TestMemoryStoreAppendAndRecent(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		ref, err := s.Append(ctx, entry(fmt.Sprintf("ev-%d", i)))
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if want := fmt.Sprintf("mem:%d", i); ref != want {
			t.Fatalf("ref = %q, want %q", ref, want)
		}
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].EventID != "ev-2" || recent[1].EventID != "ev-3" {
		t.Fatalf("unexpected recent entries: %+v", recent)
	}
}

func TestMemoryStoreDedupesEventIDs(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, _ := s.Append(ctx, entry("ev-1"))
	again, err := s.Append(ctx, entry("ev-1"))
	if err != nil {
		t.Fatalf("append duplicate: %v", err)
	}
	if first != again || s.Len() != 1 {
		t.Fatalf("duplicate appended: refs %q/%q len %d", first, again, s.Len())
	}
}

func TestMemoryStoreRejectsIncompleteEntry(t *testing.T) {
	if _, err := New().Append(context.Background(), ports.JournalEntry{Kind: "x"}); err == nil {
		t.Fatal("expected error for missing event id")
	}
}
