package repository

import (
	"tokenguard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreditRepository struct {
	db *gorm.DB
}

func NewCreditRepository(db *gorm.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

func (r *CreditRepository) GetByUserID(userID uint) (*models.CreditAccount, error) {
	var a models.CreditAccount
	err := r.db.Where("user_id = ?", userID).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *CreditRepository) GetOrCreate(userID uint) (*models.CreditAccount, error) {
	a, err := r.GetByUserID(userID)
	if err == nil {
		return a, nil
	}
	a = &models.CreditAccount{UserID: userID}
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(a).Error; err != nil {
		return nil, err
	}
	return r.GetByUserID(userID)
}

// GetForUpdate returns the account row locked for the surrounding transaction.
// SQLite has a single writer, so locking is only requested on MySQL.
func (r *CreditRepository) GetForUpdate(userID uint) (*models.CreditAccount, error) {
	if _, err := r.GetOrCreate(userID); err != nil {
		return nil, err
	}
	q := r.db
	if r.db.Dialector.Name() == "mysql" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var a models.CreditAccount
	if err := q.Where("user_id = ?", userID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *CreditRepository) Save(a *models.CreditAccount) error {
	return r.db.Model(a).Updates(map[string]interface{}{
		"balance":         a.Balance,
		"total_purchased": a.TotalPurchased,
		"total_spent":     a.TotalSpent,
	}).Error
}

// Outstanding returns the sum of all balances.
func (r *CreditRepository) Outstanding() (int64, error) {
	var out struct{ Total int64 }
	err := r.db.Model(&models.CreditAccount{}).Select("COALESCE(SUM(balance), 0) as total").Scan(&out).Error
	return out.Total, err
}
