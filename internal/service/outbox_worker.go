package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"learnly/config"
	"learnly/internal/domain"
	"learnly/internal/models"
	"learnly/internal/repository"

	"go.uber.org/zap"
)

// OutboxHandler processes one event; a returned error schedules a retry.
type OutboxHandler func(ctx context.Context, ev models.OutboxEvent) error

// OutboxWorker drains the outbox: poll on an interval, plus an immediate
// poke after enqueues. Events that exhaust their attempts are parked as
// failed for out-of-band reconciliation.
type OutboxWorker struct {
	repo     *repository.OutboxRepository
	cfg      config.OutboxConfig
	handlers map[string]OutboxHandler
	poke     chan struct{}
}

func NewOutboxWorker(repo *repository.OutboxRepository, cfg config.OutboxConfig) *OutboxWorker {
	return &OutboxWorker{
		repo:     repo,
		cfg:      cfg,
		handlers: make(map[string]OutboxHandler),
		poke:     make(chan struct{}, 1),
	}
}

func (w *OutboxWorker) Register(eventType string, h OutboxHandler) {
	w.handlers[eventType] = h
}

// Notify wakes the worker without waiting for the next poll tick.
func (w *OutboxWorker) Notify() {
	select {
	case w.poke <- struct{}{}:
	default:
	}
}

// Start runs the drain loop until the context is cancelled.
func (w *OutboxWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.poke:
		}
		if _, err := w.ProcessOnce(ctx); err != nil {
			zap.L().Error("outbox drain failed", zap.Error(err))
		}
	}
}

// ProcessOnce drains the currently due events sequentially and returns how
// many were handled successfully.
func (w *OutboxWorker) ProcessOnce(ctx context.Context) (int, error) {
	due, err := w.repo.Due(50)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, ev := range due {
		handler, ok := w.handlers[ev.EventType]
		if !ok {
			_ = w.repo.MarkRetry(&ev, fmt.Errorf("no handler for %s", ev.EventType), w.cfg.RetryBackoff, w.cfg.MaxAttempts)
			continue
		}
		if err := handler(ctx, ev); err != nil {
			zap.L().Warn("outbox event failed",
				zap.Uint("event_id", ev.ID),
				zap.String("event_type", ev.EventType),
				zap.Int("attempts", ev.Attempts+1),
				zap.Error(err))
			if err := w.repo.MarkRetry(&ev, err, w.cfg.RetryBackoff, w.cfg.MaxAttempts); err != nil {
				return processed, err
			}
			continue
		}
		if err := w.repo.MarkProcessed(ev.ID); err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}

// AttributionHandler adapts the attribution service to the outbox.
func AttributionHandler(svc *AttributionService) (string, OutboxHandler) {
	return domain.EventReferralAttribution, func(ctx context.Context, ev models.OutboxEvent) error {
		var req AttributionRequest
		if err := json.Unmarshal([]byte(ev.Payload), &req); err != nil {
			return fmt.Errorf("malformed attribution payload: %w", err)
		}
		return svc.Attribute(ctx, req)
	}
}
