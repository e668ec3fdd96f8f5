package repository

import (
	"time"

	"tokenguard/internal/models"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(n *models.Notification) error {
	return r.db.Create(n).Error
}

func (r *NotificationRepository) ListUnread(userID uint, limit int) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.Where("user_id = ? AND read_at IS NULL", userID).Order("created_at ASC, id ASC").Limit(limit).Find(&list).Error
	return list, err
}

// MarkRead marks the given notifications of userID as read.
func (r *NotificationRepository) MarkRead(userID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&models.Notification{}).Where("user_id = ? AND id IN ?", userID, ids).Update("read_at", time.Now().UTC()).Error
}
