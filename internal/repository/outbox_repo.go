package repository

import (
	"time"

	"learnly/internal/domain"
	"learnly/internal/models"

	"gorm.io/gorm"
)

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue writes an event. Callers pass their open transaction handle so
// the event is durable iff the state change that produced it commits.
func (r *OutboxRepository) Enqueue(tx *gorm.DB, eventType, payload string) error {
	if tx == nil {
		tx = r.db
	}
	return tx.Create(&models.OutboxEvent{
		EventType:     eventType,
		Payload:       payload,
		Status:        domain.OutboxPending,
		NextAttemptAt: time.Now(),
	}).Error
}

// Due returns pending events whose next attempt time has passed.
func (r *OutboxRepository) Due(limit int) ([]models.OutboxEvent, error) {
	var list []models.OutboxEvent
	err := r.db.Where("status = ? AND next_attempt_at <= ?", domain.OutboxPending, time.Now()).
		Order("id").Limit(limit).Find(&list).Error
	return list, err
}

func (r *OutboxRepository) MarkProcessed(id uint) error {
	now := time.Now()
	return r.db.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       domain.OutboxProcessed,
			"processed_at": now,
		}).Error
}

// MarkRetry records a failed attempt. Events past maxAttempts are parked
// as failed for out-of-band reconciliation rather than retried forever.
func (r *OutboxRepository) MarkRetry(ev *models.OutboxEvent, attemptErr error, backoff time.Duration, maxAttempts int) error {
	attempts := ev.Attempts + 1
	status := domain.OutboxPending
	if attempts >= maxAttempts {
		status = domain.OutboxFailed
	}
	msg := attemptErr.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return r.db.Model(&models.OutboxEvent{}).
		Where("id = ?", ev.ID).
		Updates(map[string]interface{}{
			"attempts":        attempts,
			"status":          status,
			"last_error":      msg,
			"next_attempt_at": time.Now().Add(backoff * time.Duration(attempts)),
		}).Error
}
