package repository

import (
	"time"

	"tokenguard/internal/domain"
	"tokenguard/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DashboardStats struct {
	TotalUsers         int64           `json:"total_users"`
	TotalAnalyses      int64           `json:"total_analyses"`
	AnalysesToday      int64           `json:"analyses_today"`
	ScamsDetected      int64           `json:"scams_detected"`
	LegitTokens        int64           `json:"legit_tokens"`
	CautionFlags       int64           `json:"caution_flags"`
	PsychoAnalyses     int64           `json:"psycho_analyses"`
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	CompletedPayments  int64           `json:"completed_payments"`
	PendingPayments    int64           `json:"pending_payments"`
	CreditsOutstanding int64           `json:"credits_outstanding"`
	ActivePromotions   int64           `json:"active_promotions"`
	PendingPromotions  int64           `json:"pending_promotions"`
	CacheEntries       int64           `json:"cache_entries"`
}

type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type RevenuePoint struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

var paymentMethods = []string{domain.MethodStripe, domain.MethodCrypto}

func (r *AdminRepository) GetDashboardStats(now time.Time) (*DashboardStats, error) {
	var s DashboardStats
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).UTC()
	now = now.UTC()

	if err := r.db.Model(&models.User{}).Where("role = ?", domain.RoleUser).Count(&s.TotalUsers).Error; err != nil {
		return nil, err
	}
	r.db.Model(&models.Analysis{}).Count(&s.TotalAnalyses)
	r.db.Model(&models.Analysis{}).Where("created_at >= ?", startOfDay).Count(&s.AnalysesToday)
	r.db.Model(&models.Analysis{}).Where("verdict = ?", domain.VerdictScam).Count(&s.ScamsDetected)
	r.db.Model(&models.Analysis{}).Where("verdict = ?", domain.VerdictLegit).Count(&s.LegitTokens)
	r.db.Model(&models.Analysis{}).Where("verdict = ?", domain.VerdictCaution).Count(&s.CautionFlags)
	r.db.Model(&models.Analysis{}).Where("mode = ?", domain.ModePsycho).Count(&s.PsychoAnalyses)

	var rev struct{ Total float64 }
	r.db.Model(&models.Transaction{}).Select("COALESCE(SUM(amount), 0) as total").
		Where("status = ? AND method IN ?", domain.TxStatusCompleted, paymentMethods).Scan(&rev)
	s.TotalRevenue = decimal.NewFromFloat(rev.Total).Round(2)

	r.db.Model(&models.Transaction{}).Where("status = ? AND method IN ?", domain.TxStatusCompleted, paymentMethods).Count(&s.CompletedPayments)
	r.db.Model(&models.Transaction{}).Where("status = ? AND method IN ?", domain.TxStatusPending, paymentMethods).Count(&s.PendingPayments)

	var credits struct{ Total int64 }
	r.db.Model(&models.CreditAccount{}).Select("COALESCE(SUM(balance), 0) as total").Scan(&credits)
	s.CreditsOutstanding = credits.Total

	r.db.Model(&models.Promotion{}).
		Where("status = ? AND approved_by IS NOT NULL AND start_date <= ? AND end_date >= ?", domain.PromotionActive, now, now).
		Count(&s.ActivePromotions)
	r.db.Model(&models.Promotion{}).Where("status = ?", domain.PromotionPending).Count(&s.PendingPromotions)
	r.db.Model(&models.CacheEntry{}).Where("expires_at > ?", now).Count(&s.CacheEntries)

	return &s, nil
}

// AnalysesByDay returns daily analysis counts for the last N days.
func (r *AdminRepository) AnalysesByDay(days int) ([]TimeSeriesPoint, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	var points []TimeSeriesPoint
	err := r.db.Model(&models.Analysis{}).
		Select("DATE(created_at) as date, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&points).Error
	return points, err
}

// RevenueByDay returns daily completed payment revenue for the last N days.
func (r *AdminRepository) RevenueByDay(days int) ([]RevenuePoint, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	var points []RevenuePoint
	err := r.db.Model(&models.Transaction{}).
		Select("DATE(completed_at) as date, COALESCE(SUM(amount), 0) as amount").
		Where("status = ? AND method IN ? AND completed_at >= ?", domain.TxStatusCompleted, paymentMethods, since).
		Group("DATE(completed_at)").
		Order("date ASC").
		Scan(&points).Error
	return points, err
}
