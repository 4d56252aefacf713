package repository

import (
	"learnly/internal/domain"
	"learnly/internal/models"

	"gorm.io/gorm"
)

type BatchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) Create(b *models.WithdrawalBatch) error {
	return r.db.Create(b).Error
}

func (r *BatchRepository) GetByID(id uint) (*models.WithdrawalBatch, error) {
	var b models.WithdrawalBatch
	if err := r.db.First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BatchRepository) List(limit, offset int) ([]models.WithdrawalBatch, error) {
	var list []models.WithdrawalBatch
	err := r.db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// TransitionStatus moves a batch between lifecycle states conditionally.
func (r *BatchRepository) TransitionStatus(id uint, from, to string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	res := r.db.Model(&models.WithdrawalBatch{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// AddTotalsIfDraft bumps the member count and USD total, conditional on
// the batch still being DRAFT. Returns false when a finalize won the race
// so the caller can roll the membership stamp back.
func (r *BatchRepository) AddTotalsIfDraft(id uint, amountUSDCents int64) (bool, error) {
	res := r.db.Model(&models.WithdrawalBatch{}).
		Where("id = ? AND status = ?", id, domain.BatchDraft).
		Updates(map[string]interface{}{
			"total_withdrawals":      gorm.Expr("total_withdrawals + 1"),
			"total_amount_usd_cents": gorm.Expr("total_amount_usd_cents + ?", amountUSDCents),
		})
	return res.RowsAffected == 1, res.Error
}

func (r *BatchRepository) SetStatus(id uint, status string, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = status
	return r.db.Model(&models.WithdrawalBatch{}).Where("id = ?", id).Updates(updates).Error
}
