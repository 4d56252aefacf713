package models

import (
	"time"

	"gorm.io/gorm"
)

// ReferralCode is a public token identifying an affiliate, embedded in
// shared links. Kept separate from AffiliateProfile because codes are
// issued at signup, before the owner has any affiliate activity.
type ReferralCode struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	Code      string         `gorm:"uniqueIndex;size:20;not null" json:"code"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (ReferralCode) TableName() string { return "referral_codes" }

// Referral ties one referred buyer to one referrer for one purchase event.
// The unique index on PaymentID makes attribution idempotent under event
// redelivery: at most one referral row ever exists per completed payment.
type Referral struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	ReferrerID   uint   `gorm:"not null;index" json:"referrer_id"`
	ReferredID   uint   `gorm:"not null;index" json:"referred_id"`
	PaymentID    uint   `gorm:"not null;uniqueIndex" json:"payment_id"`
	ReferralCode string `gorm:"size:20;not null" json:"referral_code"`

	LinkType            string `gorm:"size:10;not null" json:"link_type"`             // learner | dcs
	InitialPurchaseType string `gorm:"size:15;not null" json:"initial_purchase_type"` // learner | learner_dcs
	Status              string `gorm:"size:20;not null;index" json:"status"`

	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Referral) TableName() string { return "referrals" }
