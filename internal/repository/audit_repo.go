package repository

import (
	"learnly/internal/models"

	"gorm.io/gorm"
)

// AuditLogRepository is append-only: there is no update or delete path,
// and none may be added.
type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Create(entry *models.WithdrawalAuditLog) error {
	return r.db.Create(entry).Error
}

func (r *AuditLogRepository) ListByWithdrawal(withdrawalID uint) ([]models.WithdrawalAuditLog, error) {
	var list []models.WithdrawalAuditLog
	err := r.db.Where("withdrawal_id = ?", withdrawalID).Order("id").Find(&list).Error
	return list, err
}
