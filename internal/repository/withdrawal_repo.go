package repository

import (
	"learnly/internal/models"

	"gorm.io/gorm"
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(w *models.Withdrawal) error {
	return r.db.Create(w).Error
}

func (r *WithdrawalRepository) GetByID(id uint) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := r.db.First(&w, id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepository) GetByReference(ref string) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := r.db.Where("reference = ?", ref).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepository) ListByStatus(status string, limit, offset int) ([]models.Withdrawal, error) {
	var list []models.Withdrawal
	q := r.db.Order("created_at DESC").Limit(limit).Offset(offset)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&list).Error
	return list, err
}

func (r *WithdrawalRepository) ListByAffiliate(affiliateID uint, limit, offset int) ([]models.Withdrawal, error) {
	var list []models.Withdrawal
	err := r.db.Where("affiliate_id = ?", affiliateID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

func (r *WithdrawalRepository) ListByBatch(batchID uint) ([]models.Withdrawal, error) {
	var list []models.Withdrawal
	err := r.db.Where("batch_id = ?", batchID).Order("id").Find(&list).Error
	return list, err
}

// Transition applies a conditional status update: the row must currently
// be in one of the allowed states. Returns true when this caller moved it.
// Row-level CAS is the only exclusion mechanism; there is no table lock.
func (r *WithdrawalRepository) Transition(id uint, allowed []string, updates map[string]interface{}) (bool, error) {
	res := r.db.Model(&models.Withdrawal{}).
		Where("id = ? AND status IN ?", id, allowed).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// AssignToBatch stamps an APPROVED, unbatched withdrawal with the batch id
// and the batch's provider. The conditions enforce membership exclusivity:
// a withdrawal already in a batch cannot be claimed by another.
func (r *WithdrawalRepository) AssignToBatch(id, batchID uint, requiredStatus, provider string) (bool, error) {
	res := r.db.Model(&models.Withdrawal{}).
		Where("id = ? AND status = ? AND batch_id IS NULL", id, requiredStatus).
		Updates(map[string]interface{}{"batch_id": batchID, "provider": provider})
	return res.RowsAffected == 1, res.Error
}
