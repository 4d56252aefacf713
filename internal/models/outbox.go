package models

import "time"

// OutboxEvent is a durable side-effect record written in the same
// transaction as the state change that produced it. A worker claims
// pending events and dispatches them with bounded retries, so attribution
// failures are retried instead of silently lost.
type OutboxEvent struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	EventType string `gorm:"size:50;not null;index" json:"event_type"`
	Payload   string `gorm:"type:text;not null" json:"payload"` // JSON

	Status        string     `gorm:"size:20;not null;index;default:'pending'" json:"status"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt time.Time  `gorm:"index" json:"next_attempt_at"`
	LastError     string     `gorm:"size:500" json:"last_error,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }
