package services

import (
	"context"
	"testing"
	"time"

	"caja/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycleScheduler_ActivatesDueCycles(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	early := registerGroup(t, svc)
	late := registerGroup(t, svc)

	due, err := svc.PlanCycle(ctx, treasurer, early.ID, core.NewDate(2025, 3, 1), core.NewDate(2025, 9, 1))
	require.NoError(t, err)
	future, err := svc.PlanCycle(ctx, treasurer, late.ID, core.NewDate(2025, 6, 1), core.NewDate(2025, 12, 1))
	require.NoError(t, err)

	scheduler := NewCycleScheduler(svc, time.Minute)
	n, err := scheduler.ActivateDueCycles(ctx, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c, err := svc.Cycle(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, core.CycleActive, c.Status)

	c, err = svc.Cycle(ctx, future.ID)
	require.NoError(t, err)
	assert.Equal(t, core.CyclePlanned, c.Status)

	n, err = scheduler.ActivateDueCycles(ctx, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n, "already active cycles are not touched")
}

func TestCycleScheduler_NotInitialized(t *testing.T) {
	scheduler := &CycleScheduler{}
	_, err := scheduler.ActivateDueCycles(context.Background(), time.Now())
	assert.Error(t, err)
}

func TestCycleScheduler_RunStopsWithContext(t *testing.T) {
	svc, _ := newTestService(t)
	g := registerGroup(t, svc)
	cycle, err := svc.PlanCycle(context.Background(), treasurer, g.ID, core.NewDate(2020, 1, 1), core.NewDate(2020, 12, 31))
	require.NoError(t, err)

	scheduler := NewCycleScheduler(svc, 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, scheduler.Run(ctx), context.DeadlineExceeded)

	c, err := svc.Cycle(context.Background(), cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, core.CycleActive, c.Status)
}
