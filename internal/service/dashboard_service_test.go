package service

import (
	"testing"
	"time"

	"tokenguard/internal/domain"
	"tokenguard/internal/models"
	"tokenguard/internal/repository"
	"tokenguard/internal/settings"
	"tokenguard/internal/testutil"

	"github.com/shopspring/decimal"
)

func TestDashboardOverview(t *testing.T) {
	db := testutil.NewDB(t)
	sp := settings.NewService(repository.NewSettingRepository(db))
	svc := NewDashboardService(repository.NewAdminRepository(db), repository.NewUserRepository(db), sp)

	u := testutil.CreateUser(t, db, "stats@example.com", "", 7)
	testutil.CreateUser(t, db, "boss@example.com", domain.RoleAdmin, 0)
	uid := u.ID
	for _, v := range []string{domain.VerdictScam, domain.VerdictScam, domain.VerdictLegit} {
		db.Create(&models.Analysis{UserID: &uid, Mode: domain.ModeStandard, Verdict: v})
	}
	done := time.Now()
	db.Create(&models.Transaction{UserID: u.ID, Reference: "r1", Amount: decimal.RequireFromString("12.50"), Tokens: 125, Method: domain.MethodStripe, Status: domain.TxStatusCompleted, CompletedAt: &done})
	db.Create(&models.Transaction{UserID: u.ID, Reference: "r2", Amount: decimal.NewFromInt(3), Tokens: 30, Method: domain.MethodCrypto, Status: domain.TxStatusPending})
	db.Create(&models.Transaction{UserID: u.ID, Reference: "r3", Tokens: 5, Method: domain.MethodAdminAdjustment, Status: domain.TxStatusCompleted, CompletedAt: &done})

	d, err := svc.Overview(7)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	s := d.Stats
	if s.TotalUsers != 1 || s.TotalAnalyses != 3 || s.ScamsDetected != 2 || s.LegitTokens != 1 {
		t.Errorf("stats = %+v", s)
	}
	if !s.TotalRevenue.Equal(decimal.RequireFromString("12.5")) || s.CompletedPayments != 1 || s.PendingPayments != 1 {
		t.Errorf("payments: revenue=%s completed=%d pending=%d", s.TotalRevenue, s.CompletedPayments, s.PendingPayments)
	}
	if s.CreditsOutstanding != 7 {
		t.Errorf("outstanding = %d", s.CreditsOutstanding)
	}
	if len(d.MissingAddresses) != 6 {
		t.Errorf("missing addresses = %v", d.MissingAddresses)
	}

	users, total, err := svc.Users("stats", 1, 10)
	if err != nil || total != 1 || users[0].Credits == nil || users[0].Credits.Balance != 7 {
		t.Errorf("users = %+v, %d, %v", users, total, err)
	}
}
