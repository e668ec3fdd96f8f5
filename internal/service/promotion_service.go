package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"tokenguard/internal/common"
	"tokenguard/internal/domain"
	"tokenguard/internal/models"
	"tokenguard/internal/repository"
	"tokenguard/internal/settings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrPromotionNotFound = errors.New("promotion not found")
	ErrInvalidPromotion  = errors.New("invalid promotion")
	ErrInvalidTransition = errors.New("promotion cannot change to that status")
)

// PromotionInput is the editable part of a promotion.
type PromotionInput struct {
	TokenName       string
	TokenSymbol     string
	ContractAddress string
	Chain           string
	LogoURL         string
	WebsiteURL      string
	Description     string
	StartDate       time.Time
	EndDate         time.Time
	Cost            decimal.Decimal
	AmountPaid      decimal.Decimal
}

func (in *PromotionInput) sanitize() error {
	in.TokenName = common.Truncate(common.SanitizeText(in.TokenName), 100)
	in.TokenSymbol = common.Truncate(common.SanitizeText(in.TokenSymbol), 30)
	in.ContractAddress = common.SanitizeAddress(in.ContractAddress)
	in.LogoURL = common.SanitizeURL(in.LogoURL)
	in.WebsiteURL = common.SanitizeURL(in.WebsiteURL)
	in.Description = common.Truncate(common.SanitizeMultiline(in.Description), 2000)
	in.StartDate = in.StartDate.UTC()
	in.EndDate = in.EndDate.UTC()
	switch {
	case in.TokenName == "":
		return fmt.Errorf("%w: token name is required", ErrInvalidPromotion)
	case in.Chain != "" && !domain.Chains[in.Chain]:
		return fmt.Errorf("%w: unsupported chain %q", ErrInvalidPromotion, in.Chain)
	case in.StartDate.IsZero() || in.EndDate.IsZero():
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidPromotion)
	case in.EndDate.Before(in.StartDate):
		return fmt.Errorf("%w: end date is before start date", ErrInvalidPromotion)
	case in.Cost.IsNegative() || in.AmountPaid.IsNegative():
		return fmt.Errorf("%w: amounts must not be negative", ErrInvalidPromotion)
	}
	return nil
}

func (in *PromotionInput) apply(p *models.Promotion) {
	p.TokenName = in.TokenName
	p.TokenSymbol = in.TokenSymbol
	p.ContractAddress = in.ContractAddress
	p.Chain = in.Chain
	p.LogoURL = in.LogoURL
	p.WebsiteURL = in.WebsiteURL
	p.Description = in.Description
	p.StartDate = in.StartDate
	p.EndDate = in.EndDate
	p.Cost = in.Cost
	p.AmountPaid = in.AmountPaid
}

type PromotionService struct {
	repo     *repository.PromotionRepository
	audit    *repository.AuditLogRepository
	settings settings.Provider
	now      func() time.Time
}

func NewPromotionService(repo *repository.PromotionRepository, audit *repository.AuditLogRepository, sp settings.Provider) *PromotionService {
	return &PromotionService{repo: repo, audit: audit, settings: sp, now: time.Now}
}

// Create stores a new promotion. With auto-publish on it is approved by the creator.
func (s *PromotionService) Create(actor Actor, in PromotionInput) (*models.Promotion, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if err := in.sanitize(); err != nil {
		return nil, err
	}
	p := &models.Promotion{Status: domain.PromotionPending, CreatedBy: actor.UserID}
	in.apply(p)
	if s.settings != nil {
		if cfg, err := s.settings.Load(); err == nil && cfg.AutoPublish {
			s.approve(p, actor)
		}
	}
	if err := s.repo.Create(p); err != nil {
		return nil, err
	}
	recordAudit(s.audit, actor, "promotion.create", "promotion", idString(p.ID), map[string]interface{}{"token": p.TokenName, "status": p.Status})
	return p, nil
}

func (s *PromotionService) Update(actor Actor, id uint, in PromotionInput) (*models.Promotion, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if err := in.sanitize(); err != nil {
		return nil, err
	}
	p, err := s.get(id)
	if err != nil {
		return nil, err
	}
	in.apply(p)
	if err := s.repo.Update(p); err != nil {
		return nil, err
	}
	recordAudit(s.audit, actor, "promotion.update", "promotion", idString(id), nil)
	return p, nil
}

// Approve activates a pending or expired promotion and stamps the approver.
func (s *PromotionService) Approve(actor Actor, id uint) (*models.Promotion, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	p, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if p.Status == domain.PromotionCancelled {
		return nil, ErrInvalidTransition
	}
	s.approve(p, actor)
	if err := s.repo.Update(p); err != nil {
		return nil, err
	}
	recordAudit(s.audit, actor, "promotion.approve", "promotion", idString(id), nil)
	log.WithFields(log.Fields{"promotion_id": id, "admin_id": actor.UserID}).Info("[promotion] approved")
	return p, nil
}

func (s *PromotionService) Cancel(actor Actor, id uint) (*models.Promotion, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	p, err := s.get(id)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PromotionCancelled
	if err := s.repo.Update(p); err != nil {
		return nil, err
	}
	recordAudit(s.audit, actor, "promotion.cancel", "promotion", idString(id), nil)
	return p, nil
}

func (s *PromotionService) ListAdmin(status string, page, limit int) ([]models.Promotion, int64, error) {
	return s.repo.List(status, page, limit)
}

// ListPublic returns what the sidebar shows now; empty when the sidebar is disabled.
func (s *PromotionService) ListPublic(limit int) ([]models.Promotion, error) {
	if s.settings != nil {
		cfg, err := s.settings.Load()
		if err != nil {
			return nil, err
		}
		if !cfg.PromotionsSidebar {
			return []models.Promotion{}, nil
		}
	}
	return s.repo.ListVisible(s.now(), limit)
}

// RecordClick counts a sidebar click; clicks on hidden promotions are not counted.
func (s *PromotionService) RecordClick(id uint) (bool, error) {
	return s.repo.IncrementClicks(id, s.now())
}

// ExpireEnded marks ended active promotions as expired. Visibility never depends on it.
func (s *PromotionService) ExpireEnded() (int64, error) {
	return s.repo.ExpireEnded(s.now())
}

func (s *PromotionService) approve(p *models.Promotion, actor Actor) {
	uid := actor.UserID
	now := s.now().UTC()
	p.Status = domain.PromotionActive
	p.ApprovedBy = &uid
	p.ApprovedAt = &now
}

func (s *PromotionService) get(id uint) (*models.Promotion, error) {
	p, err := s.repo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPromotionNotFound
	}
	return p, err
}

func idString(id uint) string { return strconv.FormatUint(uint64(id), 10) }
