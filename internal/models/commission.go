package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Commission is one discrete, immutable credit to an affiliate tied to one
// referral and one payment. A referral has exactly one learner_initial
// commission and at most one dcs_addon commission.
type Commission struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	AffiliateID uint `gorm:"not null;index" json:"affiliate_id"`
	ReferralID  uint `gorm:"not null;index;index:idx_commission_unique,unique" json:"referral_id"`
	PaymentID   uint `gorm:"not null;index" json:"payment_id"`

	CommissionType string `gorm:"size:20;not null;index:idx_commission_unique,unique" json:"commission_type"`

	BaseAmountCents       int64           `gorm:"not null" json:"base_amount_cents"`
	CommissionRate        decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"commission_rate"`
	CommissionAmountCents int64           `gorm:"not null" json:"commission_amount_cents"`
	CommissionCurrency    string          `gorm:"size:3;not null;default:'USD'" json:"commission_currency"`

	Status string `gorm:"size:20;not null;index;default:'available'" json:"status"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Commission) TableName() string { return "commissions" }
