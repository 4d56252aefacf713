package models

import (
	"time"

	"gorm.io/gorm"
)

// AffiliateProfile holds an affiliate's running totals. Keyed by the user
// id. Balances are cents; available_balance never exceeds total_earnings
// and only decreases when a withdrawal freezes funds.
type AffiliateProfile struct {
	UserID       uint   `gorm:"primaryKey" json:"user_id"`
	ReferralCode string `gorm:"size:20;uniqueIndex;not null" json:"referral_code"`

	TotalEarningsCents    int64 `gorm:"not null;default:0" json:"total_earnings_cents"`
	AvailableBalanceCents int64 `gorm:"not null;default:0" json:"available_balance_cents"`
	LifetimeReferrals     int   `gorm:"not null;default:0" json:"lifetime_referrals"`
	ActiveReferrals       int   `gorm:"not null;default:0" json:"active_referrals"`

	// Two deterministic promotional links derived from the referral code.
	LearnerLink string `gorm:"size:255" json:"learner_link"`
	DcsLink     string `gorm:"size:255" json:"dcs_link"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (AffiliateProfile) TableName() string { return "affiliate_profiles" }

// AffiliateLink is one recorded click on a promotional link. Conversion
// marking picks the most recent unconverted click for the referrer; there
// is no session correlation, so this is an intentional approximation.
type AffiliateLink struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	AffiliateID uint       `gorm:"not null;index" json:"affiliate_id"`
	Code        string     `gorm:"size:20;not null;index" json:"code"`
	LinkType    string     `gorm:"size:10;not null" json:"link_type"`
	Converted   bool       `gorm:"default:false;index" json:"converted"`
	ConvertedBy *uint      `json:"converted_by,omitempty"`
	ClickedAt   time.Time  `json:"clicked_at"`
	ConvertedAt *time.Time `json:"converted_at,omitempty"`
}

func (AffiliateLink) TableName() string { return "affiliate_links" }
