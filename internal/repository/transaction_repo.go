package repository

import (
	"time"

	"tokenguard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionFilter narrows admin transaction listings. Zero values are ignored.
type TransactionFilter struct {
	UserID uint
	Method string
	Status string
	From   time.Time
	To     time.Time
}

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(t *models.Transaction) error {
	return r.db.Create(t).Error
}

func (r *TransactionRepository) GetByReference(ref string) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.Where("reference = ?", ref).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) GetByReferenceForUpdate(ref string) (*models.Transaction, error) {
	q := r.db
	if r.db.Dialector.Name() == "mysql" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var t models.Transaction
	if err := q.Where("reference = ?", ref).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) Update(t *models.Transaction) error {
	return r.db.Save(t).Error
}

func (r *TransactionRepository) ListByUser(userID uint, limit, offset int) ([]models.Transaction, error) {
	var list []models.Transaction
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *TransactionRepository) List(f TransactionFilter, page, limit int) ([]models.Transaction, int64, error) {
	q := r.filtered(f)
	var total int64
	q.Count(&total)
	var list []models.Transaction
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

// All returns every matching row for export, newest first.
func (r *TransactionRepository) All(f TransactionFilter) ([]models.Transaction, error) {
	var list []models.Transaction
	err := r.filtered(f).Order("created_at DESC, id DESC").Find(&list).Error
	return list, err
}

func (r *TransactionRepository) CountByUser(userID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.Transaction{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

func (r *TransactionRepository) filtered(f TransactionFilter) *gorm.DB {
	q := r.db.Model(&models.Transaction{})
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Method != "" {
		q = q.Where("method = ?", f.Method)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("created_at < ?", f.To.UTC())
	}
	return q
}
