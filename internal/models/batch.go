package models

import (
	"time"

	"gorm.io/gorm"
)

// WithdrawalBatch groups approved withdrawals for one provider into a
// single payout run. Membership only changes while the batch is DRAFT.
type WithdrawalBatch struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	BatchReference string `gorm:"size:64;uniqueIndex;not null" json:"batch_reference"`
	Provider       string `gorm:"size:20;not null" json:"provider"`
	Status         string `gorm:"size:25;not null;index" json:"status"`

	TotalWithdrawals  int    `gorm:"not null;default:0" json:"total_withdrawals"`
	TotalAmountUSDCents int64 `gorm:"not null;default:0" json:"total_amount_usd_cents"`
	Currency          string `gorm:"size:3;not null;default:'USD'" json:"currency"`

	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (WithdrawalBatch) TableName() string { return "withdrawal_batches" }
