package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"caja/internal/core"
	"caja/internal/storage"
)

// EventPublisher delivers one outbox event to the broker.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev core.Event) error
}

// OutboxProcessorConfig holds configuration for the outbox processor
type OutboxProcessorConfig struct {
	// PollInterval is how often to check for pending events (default: 5s)
	PollInterval time.Duration

	// BatchSize is the max number of events published per poll (default: 50)
	BatchSize int

	// MaxAttempts parks an event as failed after this many errors (default: 10)
	MaxAttempts int

	// CleanupInterval is how often published events are purged (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how long published events are kept (default: 7 days)
	CleanupAge time.Duration
}

func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		PollInterval:    5 * time.Second,
		BatchSize:       50,
		MaxAttempts:     10,
		CleanupInterval: time.Hour,
		CleanupAge:      7 * 24 * time.Hour,
	}
}

func (c OutboxProcessorConfig) withDefaults() OutboxProcessorConfig {
	d := DefaultOutboxProcessorConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	if c.CleanupAge <= 0 {
		c.CleanupAge = d.CleanupAge
	}
	return c
}

// OutboxProcessor publishes committed ledger events in commit order. Events
// are at-least-once: a crash between publish and mark resends the event, and
// consumers dedupe on the event id.
type OutboxProcessor struct {
	storage   *storage.SQLiteRepository
	publisher EventPublisher
	config    OutboxProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewOutboxProcessor(storage *storage.SQLiteRepository, publisher EventPublisher, config OutboxProcessorConfig) *OutboxProcessor {
	return &OutboxProcessor{
		storage:   storage,
		publisher: publisher,
		config:    config.withDefaults(),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *OutboxProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("outbox processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
		"max_attempts", p.config.MaxAttempts)

	return nil
}

// Stop signals the loop and waits for the current batch to finish.
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Outbox processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Outbox processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

func (p *OutboxProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *OutboxProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessBatch(ctx)
		case <-cleanupTicker.C:
			p.cleanupPublished(ctx)
		}
	}
}

// ProcessBatch publishes up to BatchSize pending events and returns how many
// went out. It stops at the first failure so later events never overtake an
// earlier one.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) int {
	events, err := p.storage.PendingEvents(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load pending events", "error", err)
		return 0
	}
	if len(events) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Publishing outbox batch", "count", len(events))

	published := 0
	for _, ev := range events {
		if p.stopping(ctx) {
			return published
		}

		if err := p.publisher.PublishEvent(ctx, ev); err != nil {
			p.handleFailure(ctx, ev, err)
			return published
		}

		if err := p.storage.MarkPublished(ctx, ev.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark event published",
				"event_id", ev.ID, "error", err)
			return published
		}
		published++
	}
	return published
}

func (p *OutboxProcessor) stopping(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	p.mu.Lock()
	stopCh := p.stopCh
	p.mu.Unlock()
	if stopCh == nil {
		return false
	}
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}

func (p *OutboxProcessor) handleFailure(ctx context.Context, ev core.Event, publishErr error) {
	if err := p.storage.MarkPublishError(ctx, ev.ID, publishErr, p.config.MaxAttempts); err != nil {
		slog.ErrorContext(ctx, "Failed to record publish error",
			"event_id", ev.ID, "error", err)
		return
	}
	if ev.Attempts+1 >= p.config.MaxAttempts {
		slog.ErrorContext(ctx, "Event parked after max publish attempts",
			"event_id", ev.ID,
			"kind", ev.Kind,
			"attempts", ev.Attempts+1)
	}
}

func (p *OutboxProcessor) cleanupPublished(ctx context.Context) {
	n, err := p.storage.CleanupPublished(ctx, p.config.CleanupAge)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to purge published events", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Purged published events", "count", n)
	}
}

// RetryFailed requeues every parked event.
func (p *OutboxProcessor) RetryFailed(ctx context.Context) (int64, error) {
	return p.storage.RetryFailed(ctx)
}

func (p *OutboxProcessor) Stats(ctx context.Context) (map[string]int64, error) {
	return p.storage.OutboxStats(ctx)
}
