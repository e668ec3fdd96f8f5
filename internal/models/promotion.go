package models

import (
	"time"

	"tokenguard/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Promotion struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	TokenName       string          `gorm:"size:100;not null" json:"token_name"`
	TokenSymbol     string          `gorm:"size:30" json:"token_symbol"`
	ContractAddress string          `gorm:"size:128" json:"contract_address"`
	Chain           string          `gorm:"size:30;index" json:"chain"`
	LogoURL         string          `gorm:"size:512" json:"logo_url"`
	WebsiteURL      string          `gorm:"size:512" json:"website_url"`
	Description     string          `gorm:"type:text" json:"description"`
	StartDate       time.Time       `gorm:"not null;index" json:"start_date"`
	EndDate         time.Time       `gorm:"not null;index" json:"end_date"`
	Status          string          `gorm:"size:20;not null;index" json:"status"`
	Cost            decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"cost"`
	AmountPaid      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount_paid"`
	Clicks          int64           `gorm:"not null;default:0" json:"clicks"`
	ApprovedBy      *uint           `json:"approved_by"`
	ApprovedAt      *time.Time      `json:"approved_at"`
	CreatedBy       uint            `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (Promotion) TableName() string {
	return "promotions"
}

// BeforeSave stores the campaign window in UTC.
func (p *Promotion) BeforeSave(tx *gorm.DB) error {
	p.StartDate = p.StartDate.UTC()
	p.EndDate = p.EndDate.UTC()
	if p.ApprovedAt != nil {
		at := p.ApprovedAt.UTC()
		p.ApprovedAt = &at
	}
	return nil
}

// VisibleAt reports whether the promotion may be shown publicly at t.
func (p *Promotion) VisibleAt(t time.Time) bool {
	return p.Status == domain.PromotionActive &&
		p.ApprovedBy != nil &&
		!t.Before(p.StartDate) &&
		!t.After(p.EndDate)
}
