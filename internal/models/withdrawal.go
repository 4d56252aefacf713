package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Withdrawal is one affiliate payout request moving through
// PENDING -> {APPROVED, REJECTED} -> {PROCESSING, PAID, FAILED}.
// Funds are frozen (available_balance debited) when the row is created;
// neither rejection nor failure auto-refunds them.
type Withdrawal struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Reference   string `gorm:"size:64;uniqueIndex;not null" json:"reference"`
	AffiliateID uint   `gorm:"not null;index" json:"affiliate_id"`

	AmountUSDCents   int64           `gorm:"not null" json:"amount_usd_cents"`
	AmountLocalCents int64           `gorm:"not null" json:"amount_local_cents"`
	Currency         string          `gorm:"size:3;not null" json:"currency"`
	ExchangeRate     decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"exchange_rate"`

	PayoutChannel string `gorm:"size:15;not null" json:"payout_channel"` // bank | mobile_money
	AccountName   string `gorm:"size:150" json:"account_name"`
	AccountNumber string `gorm:"size:64" json:"account_number"`
	BankCode      string `gorm:"size:20" json:"bank_code"`
	MobileNumber  string `gorm:"size:20" json:"mobile_number"`

	Status  string `gorm:"size:20;not null;index" json:"status"`
	BatchID *uint  `gorm:"index" json:"batch_id,omitempty"`

	Provider          string `gorm:"size:20" json:"provider"`
	ProviderReference string `gorm:"size:128" json:"provider_reference"`
	RejectionReason   string `gorm:"size:255" json:"rejection_reason,omitempty"`
	FailureReason     string `gorm:"size:255" json:"failure_reason,omitempty"`

	RequestedAt time.Time  `json:"requested_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Withdrawal) TableName() string { return "withdrawals" }

// Destination returns the payout destination used for duplicate detection
// in batch export: account number for bank, mobile number otherwise.
func (w *Withdrawal) Destination() string {
	if w.PayoutChannel == "bank" {
		return w.AccountNumber
	}
	return w.MobileNumber
}
