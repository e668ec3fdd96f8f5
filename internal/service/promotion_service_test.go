package service

import (
	"errors"
	"testing"
	"time"

	"tokenguard/internal/domain"
	"tokenguard/internal/models"
	"tokenguard/internal/repository"
	"tokenguard/internal/settings"
	"tokenguard/internal/testutil"

	"gorm.io/gorm"
)

func newPromotions(t *testing.T) (*PromotionService, *settings.Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	sp := settings.NewService(repository.NewSettingRepository(db))
	svc := NewPromotionService(repository.NewPromotionRepository(db), repository.NewAuditLogRepository(db), sp)
	return svc, sp, db
}

func TestPublicVisibility(t *testing.T) {
	svc, _, db := newPromotions(t)
	now := time.Now().Truncate(time.Second)
	svc.now = func() time.Time { return now }
	approver := uint(1)

	rows := []struct {
		name    string
		p       models.Promotion
		visible bool
	}{
		{"running", models.Promotion{Status: domain.PromotionActive, ApprovedBy: &approver, StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)}, true},
		{"starts now", models.Promotion{Status: domain.PromotionActive, ApprovedBy: &approver, StartDate: now, EndDate: now.Add(time.Hour)}, true},
		{"future start", models.Promotion{Status: domain.PromotionActive, ApprovedBy: &approver, StartDate: now.Add(24 * time.Hour), EndDate: now.Add(48 * time.Hour)}, false},
		{"ended", models.Promotion{Status: domain.PromotionActive, ApprovedBy: &approver, StartDate: now.Add(-48 * time.Hour), EndDate: now.Add(-time.Hour)}, false},
		{"no approver", models.Promotion{Status: domain.PromotionActive, StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)}, false},
		{"pending", models.Promotion{Status: domain.PromotionPending, ApprovedBy: &approver, StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)}, false},
		{"cancelled", models.Promotion{Status: domain.PromotionCancelled, ApprovedBy: &approver, StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)}, false},
	}
	want := map[uint]string{}
	for i := range rows {
		rows[i].p.TokenName = rows[i].name
		if err := db.Create(&rows[i].p).Error; err != nil {
			t.Fatal(err)
		}
		if rows[i].visible {
			want[rows[i].p.ID] = rows[i].name
		}
		if got := rows[i].p.VisibleAt(now); got != rows[i].visible {
			t.Errorf("%s: VisibleAt = %v", rows[i].name, got)
		}
	}

	list, err := svc.ListPublic(10)
	if err != nil {
		t.Fatalf("ListPublic: %v", err)
	}
	if len(list) != len(want) {
		t.Fatalf("visible = %d, want %d", len(list), len(want))
	}
	for _, p := range list {
		if _, ok := want[p.ID]; !ok {
			t.Errorf("%q should not be visible", p.TokenName)
		}
	}

	// Expiry materialization only touches rows that are already hidden.
	if n, _ := svc.ExpireEnded(); n != 1 {
		t.Errorf("expired = %d, want 1", n)
	}
	if list, _ := svc.ListPublic(10); len(list) != len(want) {
		t.Errorf("visible after expiry job = %d", len(list))
	}
}

func TestSidebarDisabledHidesAll(t *testing.T) {
	svc, sp, db := newPromotions(t)
	approver := uint(1)
	db.Create(&models.Promotion{TokenName: "x", Status: domain.PromotionActive, ApprovedBy: &approver, StartDate: time.Now().Add(-time.Hour), EndDate: time.Now().Add(time.Hour)})
	if _, err := sp.Save(settings.GroupGeneral, map[string]string{}); err != nil {
		t.Fatal(err)
	}
	list, err := svc.ListPublic(10)
	if err != nil || len(list) != 0 {
		t.Errorf("list = %v, %v", list, err)
	}
}

func TestPromotionLifecycle(t *testing.T) {
	svc, _, db := newPromotions(t)
	now := time.Now()
	in := PromotionInput{
		TokenName:  "<i>Moon</i> Coin",
		Chain:      "solana",
		WebsiteURL: "javascript:alert(1)",
		StartDate:  now.Add(-time.Hour),
		EndDate:    now.Add(time.Hour),
	}
	if _, err := svc.Create(Actor{UserID: 2, Role: domain.RoleUser}, in); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("user create err = %v", err)
	}
	var count int64
	db.Model(&models.Promotion{}).Count(&count)
	if count != 0 {
		t.Fatalf("unauthorized create wrote %d rows", count)
	}

	p, err := svc.Create(admin, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.TokenName != "Moon Coin" || p.WebsiteURL != "" || p.Status != domain.PromotionPending {
		t.Errorf("created %+v", p)
	}
	if ok, _ := svc.RecordClick(p.ID); ok {
		t.Error("click on pending promotion counted")
	}

	p, err = svc.Approve(admin, p.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if p.Status != domain.PromotionActive || p.ApprovedBy == nil || *p.ApprovedBy != admin.UserID {
		t.Errorf("approved %+v", p)
	}
	if ok, _ := svc.RecordClick(p.ID); !ok {
		t.Error("click on visible promotion not counted")
	}

	if _, err := svc.Cancel(admin, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Approve(admin, p.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("approve cancelled err = %v", err)
	}
	if _, err := svc.Cancel(admin, 999); !errors.Is(err, ErrPromotionNotFound) {
		t.Errorf("missing err = %v", err)
	}

	bad := in
	bad.EndDate = now.Add(-2 * time.Hour)
	if _, err := svc.Update(admin, p.ID, bad); !errors.Is(err, ErrInvalidPromotion) {
		t.Errorf("bad dates err = %v", err)
	}
	var stored models.Promotion
	db.First(&stored, p.ID)
	if stored.Clicks != 1 {
		t.Errorf("clicks = %d", stored.Clicks)
	}
}

func TestOffsetDatesCompareByInstant(t *testing.T) {
	svc, _, _ := newPromotions(t)
	plusTwo := time.FixedZone("UTC+2", 2*60*60)
	start := time.Date(2026, 10, 16, 12, 0, 0, 0, plusTwo) // 10:00Z
	now := time.Date(2026, 10, 16, 11, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	p, err := svc.Create(admin, PromotionInput{TokenName: "Offset", StartDate: start, EndDate: start.Add(24 * time.Hour)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p, err = svc.Approve(admin, p.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if !p.VisibleAt(now) {
		t.Fatal("VisibleAt = false for a running promotion")
	}

	for _, zone := range []*time.Location{time.UTC, plusTwo, time.FixedZone("UTC-5", -5*60*60)} {
		svc.now = func() time.Time { return now.In(zone) }
		list, err := svc.ListPublic(10)
		if err != nil {
			t.Fatalf("ListPublic: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("%s: visible = %d, want 1", zone, len(list))
		}
		if ok, err := svc.RecordClick(p.ID); err != nil || !ok {
			t.Errorf("%s: click counted = %v, %v", zone, ok, err)
		}
		if n, _ := svc.ExpireEnded(); n != 0 {
			t.Errorf("%s: expired a running promotion", zone)
		}
	}

	// One hour before the start, in the caller's own zone, it is still hidden.
	svc.now = func() time.Time { return start.Add(-time.Hour) }
	if list, _ := svc.ListPublic(10); len(list) != 0 {
		t.Errorf("visible before start: %d", len(list))
	}
}
