package repository

import (
	"time"

	"tokenguard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CacheRepository struct {
	db *gorm.DB
}

func NewCacheRepository(db *gorm.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// Get returns the live entry for key, or gorm.ErrRecordNotFound.
func (r *CacheRepository) Get(key string, now time.Time) (*models.CacheEntry, error) {
	var e models.CacheEntry
	err := r.db.Where("cache_key = ? AND expires_at > ?", key, now.UTC()).First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *CacheRepository) Put(key, value string, expiresAt time.Time) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&models.CacheEntry{CacheKey: key, Value: value, ExpiresAt: expiresAt.UTC()}).Error
}

// DeleteAll removes every cache row and returns the number removed.
func (r *CacheRepository) DeleteAll() (int64, error) {
	res := r.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.CacheEntry{})
	return res.RowsAffected, res.Error
}

func (r *CacheRepository) DeleteExpired(now time.Time) (int64, error) {
	res := r.db.Where("expires_at <= ?", now.UTC()).Delete(&models.CacheEntry{})
	return res.RowsAffected, res.Error
}

func (r *CacheRepository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&models.CacheEntry{}).Count(&n).Error
	return n, err
}
