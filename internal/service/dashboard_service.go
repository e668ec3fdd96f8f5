package service

import (
	"time"

	"tokenguard/internal/models"
	"tokenguard/internal/repository"
	"tokenguard/internal/settings"
)

// Dashboard is the admin overview payload.
type Dashboard struct {
	Stats            *repository.DashboardStats   `json:"stats"`
	AnalysesByDay    []repository.TimeSeriesPoint `json:"analyses_by_day"`
	RevenueByDay     []repository.RevenuePoint    `json:"revenue_by_day"`
	PaidMode         bool                         `json:"paid_mode"`
	WebhookURL       string                       `json:"webhook_url"`
	MissingAddresses []string                     `json:"missing_addresses"`
}

type DashboardService struct {
	repo     *repository.AdminRepository
	users    *repository.UserRepository
	settings settings.Provider
}

func NewDashboardService(repo *repository.AdminRepository, users *repository.UserRepository, sp settings.Provider) *DashboardService {
	return &DashboardService{repo: repo, users: users, settings: sp}
}

func (s *DashboardService) Stats() (*repository.DashboardStats, error) {
	return s.repo.GetDashboardStats(time.Now())
}

// Overview returns stats plus the last days of activity.
func (s *DashboardService) Overview(days int) (*Dashboard, error) {
	if days <= 0 || days > 90 {
		days = 14
	}
	stats, err := s.Stats()
	if err != nil {
		return nil, err
	}
	d := &Dashboard{Stats: stats}
	if d.AnalysesByDay, err = s.repo.AnalysesByDay(days); err != nil {
		return nil, err
	}
	if d.RevenueByDay, err = s.repo.RevenueByDay(days); err != nil {
		return nil, err
	}
	cfg, err := s.settings.Load()
	if err != nil {
		return nil, err
	}
	d.PaidMode = cfg.PaidMode
	d.WebhookURL = cfg.WebhookURL
	d.MissingAddresses = settings.MissingAddresses(cfg)
	return d, nil
}

func (s *DashboardService) Users(search string, page, limit int) ([]models.User, int64, error) {
	return s.users.List(search, page, limit)
}
