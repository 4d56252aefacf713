package repository

import (
	"time"

	"learnly/internal/domain"
	"learnly/internal/models"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(p *models.Payment) error {
	return r.db.Create(p).Error
}

func (r *PaymentRepository) GetByID(id uint) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByProviderReference(ref string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Where("provider_reference = ?", ref).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByReference(ref string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Where("reference = ?", ref).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindRecentPendingByMetadata is the last lookup tier: some providers bury
// the reference inside checkout metadata. The window bounds the scan.
func (r *PaymentRepository) FindRecentPendingByMetadata(value string, window time.Duration) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Where("status = ? AND created_at > ? AND metadata LIKE ?",
		domain.PaymentPending, time.Now().Add(-window), "%"+value+"%").
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CompleteIfPending performs the completing transition as a conditional
// update so that, of any number of racing callers, exactly one wins.
// Returns true when this caller performed the transition.
func (r *PaymentRepository) CompleteIfPending(id uint, baseUSDCents int64, paidAt time.Time) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, domain.PaymentPending).
		Updates(map[string]interface{}{
			"status":         domain.PaymentCompleted,
			"base_usd_cents": baseUSDCents,
			"paid_at":        paidAt,
		})
	return res.RowsAffected == 1, res.Error
}

// FailIfPending marks a pending payment failed; completed rows are never
// moved backward.
func (r *PaymentRepository) FailIfPending(id uint) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, domain.PaymentPending).
		Update("status", domain.PaymentFailed)
	return res.RowsAffected == 1, res.Error
}
