package models

import (
	"time"

	"gorm.io/gorm"
)

// Payment is the single source of truth for a buyer's transaction.
// ProviderReference is the idempotency key: at most one row per reference,
// and status only moves pending->completed or pending->failed.
type Payment struct {
	ID     uint  `gorm:"primaryKey" json:"id"`
	UserID *uint `gorm:"index" json:"user_id,omitempty"`

	// Reference is our checkout order id; ProviderReference is the id the
	// provider reports back. Some providers echo our reference, some issue
	// their own, so reconciliation looks up both.
	Reference         string `gorm:"size:64;index" json:"reference"`
	ProviderReference string `gorm:"size:128;uniqueIndex;not null" json:"provider_reference"`
	Provider          string `gorm:"size:20;not null" json:"provider"`

	AmountCents  int64  `gorm:"not null" json:"amount_cents"`
	Currency     string `gorm:"size:3;not null;default:'USD'" json:"currency"`
	BaseUSDCents int64  `gorm:"not null;default:0" json:"base_usd_cents"`

	Status      string `gorm:"size:20;not null;index;default:'pending'" json:"status"`
	PaymentType string `gorm:"size:30;not null;default:'membership'" json:"payment_type"`
	Metadata    string `gorm:"type:text" json:"metadata"` // JSON

	PaidAt    *time.Time     `json:"paid_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Payment) TableName() string { return "payments" }
