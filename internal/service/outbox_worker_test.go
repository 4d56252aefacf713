package service

import (
	"context"
	"errors"
	"testing"

	"learnly/internal/domain"
	"learnly/internal/models"
	"learnly/internal/repository"
)

func TestOutboxWorkerRetriesAndParksFailures(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig().Outbox
	cfg.MaxAttempts = 2
	repo := repository.NewOutboxRepository(db)

	calls := 0
	worker := NewOutboxWorker(repo, cfg)
	worker.Register("billing.test", func(ctx context.Context, ev models.OutboxEvent) error {
		calls++
		return errors.New("downstream unavailable")
	})

	if err := repo.Enqueue(nil, "billing.test", `{}`); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// First attempt fails and stays pending.
	if n, err := worker.ProcessOnce(context.Background()); err != nil || n != 0 {
		t.Fatalf("first drain = (%d, %v)", n, err)
	}
	var ev models.OutboxEvent
	db.First(&ev)
	if ev.Status != domain.OutboxPending || ev.Attempts != 1 {
		t.Fatalf("after first attempt: status=%s attempts=%d", ev.Status, ev.Attempts)
	}
	if ev.LastError == "" {
		t.Error("last error not recorded")
	}

	// Second attempt exhausts the budget and parks the event.
	if _, err := worker.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("second drain: %v", err)
	}
	db.First(&ev)
	if ev.Status != domain.OutboxFailed || ev.Attempts != 2 {
		t.Fatalf("after exhaustion: status=%s attempts=%d", ev.Status, ev.Attempts)
	}

	// Parked events are no longer dispatched.
	if _, err := worker.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("third drain: %v", err)
	}
	if calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
}

func TestOutboxWorkerMarksProcessed(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewOutboxRepository(db)
	worker := NewOutboxWorker(repo, testConfig().Outbox)

	var got models.OutboxEvent
	worker.Register("billing.test", func(ctx context.Context, ev models.OutboxEvent) error {
		got = ev
		return nil
	})

	if err := repo.Enqueue(nil, "billing.test", `{"payment_id":7}`); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if n, err := worker.ProcessOnce(context.Background()); err != nil || n != 1 {
		t.Fatalf("drain = (%d, %v), want (1, nil)", n, err)
	}
	if got.Payload != `{"payment_id":7}` {
		t.Errorf("payload = %s", got.Payload)
	}

	var ev models.OutboxEvent
	db.First(&ev)
	if ev.Status != domain.OutboxProcessed || ev.ProcessedAt == nil {
		t.Errorf("event = %s processed_at=%v", ev.Status, ev.ProcessedAt)
	}

	// Processed events are never re-dispatched.
	if n, _ := worker.ProcessOnce(context.Background()); n != 0 {
		t.Errorf("re-drain handled %d events, want 0", n)
	}
}

func TestOutboxWorkerUnknownEventTypeIsParkedEventually(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig().Outbox
	cfg.MaxAttempts = 1
	repo := repository.NewOutboxRepository(db)
	worker := NewOutboxWorker(repo, cfg)

	if err := repo.Enqueue(nil, "unknown.event", `{}`); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := worker.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	var ev models.OutboxEvent
	db.First(&ev)
	if ev.Status != domain.OutboxFailed {
		t.Errorf("status = %s, want %s", ev.Status, domain.OutboxFailed)
	}
}
