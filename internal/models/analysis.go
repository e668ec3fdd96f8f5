package models

import "time"

type Analysis struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          *uint     `gorm:"index" json:"user_id"`
	TokenName       string    `gorm:"size:100" json:"token_name"`
	TokenSymbol     string    `gorm:"size:30" json:"token_symbol"`
	ContractAddress string    `gorm:"size:128;index" json:"contract_address"`
	Chain           string    `gorm:"size:30;index" json:"chain"`
	Mode            string    `gorm:"size:20;not null" json:"mode"`
	Verdict         string    `gorm:"size:20;not null;index" json:"verdict"`
	RiskScore       *int      `json:"risk_score"`
	Question        string    `gorm:"type:text" json:"question"`
	Result          string    `gorm:"type:text" json:"result"`
	Cost            int64     `gorm:"not null;default:0" json:"cost"`
	Cached          bool      `gorm:"default:false" json:"cached"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}

func (Analysis) TableName() string {
	return "analyses"
}
