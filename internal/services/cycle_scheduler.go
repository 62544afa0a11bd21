package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"caja/internal/core"
)

// SchedulerActor is the identity recorded on automatic cycle activations.
var SchedulerActor = core.Actor{ID: "cycle-scheduler", Role: "system"}

// CycleScheduler activates Planned cycles once their start date arrives.
type CycleScheduler struct {
	ledger   *LedgerService
	interval time.Duration
	now      func() time.Time
}

func NewCycleScheduler(ledger *LedgerService, interval time.Duration) *CycleScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CycleScheduler{ledger: ledger, interval: interval, now: time.Now}
}

// ActivateDueCycles activates every Planned cycle starting on or before now
// and returns how many it activated. A cycle that is no longer Planned when
// its turn comes (activated by hand meanwhile) is skipped.
func (s *CycleScheduler) ActivateDueCycles(ctx context.Context, now time.Time) (int, error) {
	if s.ledger == nil {
		return 0, fmt.Errorf("scheduler not properly initialized")
	}

	due, err := s.ledger.DuePlannedCycles(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due cycles: %w", err)
	}

	activated := 0
	for _, c := range due {
		if _, err := s.ledger.ActivateCycle(ctx, SchedulerActor, c.ID); err != nil {
			if errors.Is(err, core.ErrInvalidTransition) {
				continue
			}
			slog.ErrorContext(ctx, "Failed to activate cycle",
				"cycle_id", c.ID,
				"group_id", c.GroupID,
				"error", err)
			continue
		}
		activated++
		slog.InfoContext(ctx, "Activated cycle",
			"cycle_id", c.ID,
			"group_id", c.GroupID,
			"start_date", c.StartDate.String())
	}

	if len(due) > 0 {
		slog.InfoContext(ctx, "Cycle activation pass complete",
			"activated", activated,
			"total_due", len(due))
	}
	return activated, nil
}

// Run activates due cycles immediately and then on every tick until ctx ends.
func (s *CycleScheduler) Run(ctx context.Context) error {
	if _, err := s.ActivateDueCycles(ctx, s.now()); err != nil {
		slog.ErrorContext(ctx, "Initial cycle activation failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.ActivateDueCycles(ctx, s.now()); err != nil {
				slog.ErrorContext(ctx, "Periodic cycle activation failed", "error", err)
			}
		}
	}
}
