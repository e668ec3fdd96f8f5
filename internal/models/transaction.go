package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction is the payment history and credit audit trail.
// Tokens is the signed credit delta; Amount is money received (0 for manual adjustments).
type Transaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	Reference   string          `gorm:"size:64;uniqueIndex;not null" json:"reference"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	Currency    string          `gorm:"size:10;default:'USD'" json:"currency"`
	Tokens      int64           `gorm:"not null" json:"tokens"`
	Method      string          `gorm:"size:30;not null;index" json:"method"`
	Status      string          `gorm:"size:20;not null;index" json:"status"`
	ProviderRef string          `gorm:"size:255;index" json:"provider_ref"`
	Note        string          `gorm:"type:text" json:"note"`
	CompletedAt *time.Time      `json:"completed_at"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// BeforeSave keeps explicit timestamps in UTC like the ones gorm fills in.
func (t *Transaction) BeforeSave(tx *gorm.DB) error {
	t.CreatedAt = t.CreatedAt.UTC()
	if t.CompletedAt != nil {
		at := t.CompletedAt.UTC()
		t.CompletedAt = &at
	}
	return nil
}
