package repository

import (
	"learnly/internal/models"

	"gorm.io/gorm"
)

type CommissionRepository struct {
	db *gorm.DB
}

func NewCommissionRepository(db *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: db}
}

func (r *CommissionRepository) Create(c *models.Commission) error {
	return r.db.Create(c).Error
}

func (r *CommissionRepository) ListByAffiliate(affiliateID uint, limit, offset int) ([]models.Commission, error) {
	var list []models.Commission
	err := r.db.Where("affiliate_id = ?", affiliateID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

func (r *CommissionRepository) ListByReferral(referralID uint) ([]models.Commission, error) {
	var list []models.Commission
	err := r.db.Where("referral_id = ?", referralID).Find(&list).Error
	return list, err
}

// SumByAffiliate returns the total commission cents credited to an
// affiliate across all commissions.
func (r *CommissionRepository) SumByAffiliate(affiliateID uint) (int64, error) {
	var total int64
	err := r.db.Model(&models.Commission{}).
		Where("affiliate_id = ?", affiliateID).
		Select("COALESCE(SUM(commission_amount_cents), 0)").
		Scan(&total).Error
	return total, err
}
