package models

import "time"

// WithdrawalAuditLog records one withdrawal state transition. Append-only:
// rows are never updated or deleted, and no handler exposes a write path.
type WithdrawalAuditLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	WithdrawalID uint      `gorm:"not null;index" json:"withdrawal_id"`
	Action       string    `gorm:"size:30;not null" json:"action"`
	PreviousStatus string  `gorm:"size:20;not null" json:"previous_status"`
	NewStatus    string    `gorm:"size:20;not null" json:"new_status"`
	Reason       string    `gorm:"size:255" json:"reason,omitempty"`
	AdminEmail   string    `gorm:"size:255" json:"admin_email"`
	CreatedAt    time.Time `json:"created_at"`
}

func (WithdrawalAuditLog) TableName() string { return "withdrawal_audit_logs" }
