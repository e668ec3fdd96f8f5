package service

import (
	"encoding/json"
	"fmt"

	"tokenguard/internal/domain"
	"tokenguard/internal/models"
	"tokenguard/internal/repository"

	log "github.com/sirupsen/logrus"
)

// Pusher delivers a payload to every open live connection of a user.
type Pusher interface {
	BroadcastToUser(userID uint, payload interface{})
}

// NotificationService stores pending-update markers and pushes them live.
// The chat client polls unread rows when no websocket is open.
type NotificationService struct {
	repo   *repository.NotificationRepository
	pusher Pusher
}

func NewNotificationService(repo *repository.NotificationRepository, pusher Pusher) *NotificationService {
	return &NotificationService{repo: repo, pusher: pusher}
}

// Build returns an unsaved notification row.
func (s *NotificationService) Build(userID uint, notifType, title, body string, data map[string]interface{}) *models.Notification {
	var dataJSON string
	if data != nil {
		b, _ := json.Marshal(data)
		dataJSON = string(b)
	}
	return &models.Notification{
		UserID: userID,
		Type:   notifType,
		Title:  title,
		Body:   body,
		Data:   dataJSON,
	}
}

func (s *NotificationService) Notify(userID uint, notifType, title, body string, data map[string]interface{}) error {
	n := s.Build(userID, notifType, title, body, data)
	if err := s.repo.Create(n); err != nil {
		return err
	}
	s.Push(n)
	return nil
}

// Push sends an already stored notification to the user's live connections.
func (s *NotificationService) Push(n *models.Notification) {
	if s.pusher == nil || n == nil {
		return
	}
	s.pusher.BroadcastToUser(n.UserID, map[string]interface{}{"type": "notification", "notification": n})
}

// Pending returns unread notifications and marks them read.
func (s *NotificationService) Pending(userID uint, limit int) ([]models.Notification, error) {
	list, err := s.repo.ListUnread(userID, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(list))
	for _, n := range list {
		ids = append(ids, n.ID)
	}
	if err := s.repo.MarkRead(userID, ids); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("[notify] mark read failed")
	}
	return list, nil
}

func (s *NotificationService) creditsUpdated(userID uint, balance, delta int64) *models.Notification {
	return s.Build(userID, domain.NotifyCreditsUpdated, "Credits updated",
		fmt.Sprintf("Your balance is now %d credits.", balance),
		map[string]interface{}{"balance": balance, "delta": delta})
}

func (s *NotificationService) paymentConfirmed(userID uint, tokens, balance int64, reference string) *models.Notification {
	return s.Build(userID, domain.NotifyPaymentConfirmed, "Payment confirmed",
		fmt.Sprintf("%d credits were added to your account.", tokens),
		map[string]interface{}{"tokens": tokens, "balance": balance, "reference": reference})
}

func (s *NotificationService) NotifyPaymentFailed(userID uint, reference string) error {
	return s.Notify(userID, domain.NotifyPaymentFailed, "Payment failed",
		"Your payment could not be completed.", map[string]interface{}{"reference": reference})
}
