package models

import "time"

// CreditAccount holds a user's analysis credit balance. Balance is never negative.
type CreditAccount struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance        int64     `gorm:"not null;default:0" json:"balance"`
	TotalPurchased int64     `gorm:"not null;default:0" json:"total_purchased"`
	TotalSpent     int64     `gorm:"not null;default:0" json:"total_spent"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (CreditAccount) TableName() string {
	return "credit_accounts"
}
