package repository

import (
	"tokenguard/internal/models"

	"gorm.io/gorm"
)

type AnalysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(a *models.Analysis) error {
	return r.db.Create(a).Error
}

func (r *AnalysisRepository) ListByUser(userID uint, page, limit int) ([]models.Analysis, int64, error) {
	q := r.db.Model(&models.Analysis{}).Where("user_id = ?", userID)
	var total int64
	q.Count(&total)
	var list []models.Analysis
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

// List returns analyses for the admin dashboard, optionally filtered by verdict.
func (r *AnalysisRepository) List(verdict string, page, limit int) ([]models.Analysis, int64, error) {
	q := r.db.Model(&models.Analysis{})
	if verdict != "" {
		q = q.Where("verdict = ?", verdict)
	}
	var total int64
	q.Count(&total)
	var list []models.Analysis
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}
