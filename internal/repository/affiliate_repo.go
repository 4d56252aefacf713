package repository

import (
	"errors"
	"time"

	"learnly/internal/models"

	"gorm.io/gorm"
)

var ErrInsufficientBalance = errors.New("insufficient available balance")

type AffiliateRepository struct {
	db *gorm.DB
}

func NewAffiliateRepository(db *gorm.DB) *AffiliateRepository {
	return &AffiliateRepository{db: db}
}

func (r *AffiliateRepository) Create(p *models.AffiliateProfile) error {
	return r.db.Create(p).Error
}

func (r *AffiliateRepository) GetByUserID(userID uint) (*models.AffiliateProfile, error) {
	var p models.AffiliateProfile
	if err := r.db.Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *AffiliateRepository) GetByCode(code string) (*models.AffiliateProfile, error) {
	var p models.AffiliateProfile
	if err := r.db.Where("referral_code = ?", code).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// CreditEarnings atomically increments both balances and the referral
// counters for one completed referral.
func (r *AffiliateRepository) CreditEarnings(userID uint, amountCents int64) error {
	return r.db.Model(&models.AffiliateProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"total_earnings_cents":    gorm.Expr("total_earnings_cents + ?", amountCents),
			"available_balance_cents": gorm.Expr("available_balance_cents + ?", amountCents),
			"lifetime_referrals":      gorm.Expr("lifetime_referrals + 1"),
			"active_referrals":        gorm.Expr("active_referrals + 1"),
		}).Error
}

// FreezeBalance reserves funds for a withdrawal request. The decrement is
// conditional so two racing requests cannot overdraw.
func (r *AffiliateRepository) FreezeBalance(userID uint, amountCents int64) error {
	res := r.db.Model(&models.AffiliateProfile{}).
		Where("user_id = ? AND available_balance_cents >= ?", userID, amountCents).
		Update("available_balance_cents", gorm.Expr("available_balance_cents - ?", amountCents))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// RecordClick stores one promotional link click.
func (r *AffiliateRepository) RecordClick(l *models.AffiliateLink) error {
	return r.db.Create(l).Error
}

// LatestUnconvertedLink returns the most recently clicked link of the
// referrer that has not converted yet.
func (r *AffiliateRepository) LatestUnconvertedLink(affiliateID uint) (*models.AffiliateLink, error) {
	var l models.AffiliateLink
	err := r.db.Where("affiliate_id = ? AND converted = ?", affiliateID, false).
		Order("clicked_at DESC").
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// MarkConverted stamps a click with the user it converted into. Conditional
// on the row still being unconverted.
func (r *AffiliateRepository) MarkConverted(linkID, convertedBy uint) error {
	now := time.Now()
	return r.db.Model(&models.AffiliateLink{}).
		Where("id = ? AND converted = ?", linkID, false).
		Updates(map[string]interface{}{
			"converted":    true,
			"converted_by": convertedBy,
			"converted_at": now,
		}).Error
}
