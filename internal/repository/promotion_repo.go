package repository

import (
	"time"

	"tokenguard/internal/domain"
	"tokenguard/internal/models"

	"gorm.io/gorm"
)

type PromotionRepository struct {
	db *gorm.DB
}

func NewPromotionRepository(db *gorm.DB) *PromotionRepository {
	return &PromotionRepository{db: db}
}

func (r *PromotionRepository) Create(p *models.Promotion) error {
	return r.db.Create(p).Error
}

func (r *PromotionRepository) GetByID(id uint) (*models.Promotion, error) {
	var p models.Promotion
	err := r.db.First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PromotionRepository) Update(p *models.Promotion) error {
	return r.db.Save(p).Error
}

func (r *PromotionRepository) List(status string, page, limit int) ([]models.Promotion, int64, error) {
	q := r.db.Model(&models.Promotion{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	q.Count(&total)
	var list []models.Promotion
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

// ListVisible returns promotions shown publicly at now: active, approved and within their dates.
func (r *PromotionRepository) ListVisible(now time.Time, limit int) ([]models.Promotion, error) {
	var list []models.Promotion
	err := r.db.Where("status = ? AND approved_by IS NOT NULL AND start_date <= ? AND end_date >= ?",
		domain.PromotionActive, now.UTC(), now.UTC()).
		Order("start_date DESC, id DESC").Limit(limit).Find(&list).Error
	return list, err
}

// IncrementClicks bumps the counter of a visible promotion; returns false if none matched.
func (r *PromotionRepository) IncrementClicks(id uint, now time.Time) (bool, error) {
	res := r.db.Model(&models.Promotion{}).
		Where("id = ? AND status = ? AND approved_by IS NOT NULL AND start_date <= ? AND end_date >= ?",
			id, domain.PromotionActive, now.UTC(), now.UTC()).
		UpdateColumn("clicks", gorm.Expr("clicks + 1"))
	return res.RowsAffected > 0, res.Error
}

// ExpireEnded marks active promotions whose end date passed as expired.
func (r *PromotionRepository) ExpireEnded(now time.Time) (int64, error) {
	res := r.db.Model(&models.Promotion{}).
		Where("status = ? AND end_date < ?", domain.PromotionActive, now.UTC()).
		Update("status", domain.PromotionExpired)
	return res.RowsAffected, res.Error
}

func (r *PromotionRepository) CountVisible(now time.Time) (int64, error) {
	var n int64
	err := r.db.Model(&models.Promotion{}).
		Where("status = ? AND approved_by IS NOT NULL AND start_date <= ? AND end_date >= ?",
			domain.PromotionActive, now.UTC(), now.UTC()).
		Count(&n).Error
	return n, err
}
