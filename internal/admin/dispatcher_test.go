package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tokenguard/internal/domain"
	"tokenguard/internal/models"
	"tokenguard/internal/repository"
	"tokenguard/internal/service"
	"tokenguard/internal/settings"
	"tokenguard/internal/testutil"
	"tokenguard/pkg/probe"

	"gorm.io/gorm"
)

var adminActor = service.Actor{UserID: 1, Role: domain.RoleAdmin}

type fixture struct {
	d        *Dispatcher
	db       *gorm.DB
	settings *settings.Service
	cache    *service.CacheService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	sp := settings.NewService(repository.NewSettingRepository(db))
	audit := repository.NewAuditLogRepository(db)
	cache := service.NewCacheService(repository.NewCacheRepository(db))
	ledger := service.NewLedgerService(db, nil)
	d := NewDispatcher(Deps{
		Settings:   sp,
		Probe:      probe.New(),
		Cache:      cache,
		Stats:      service.NewDashboardService(repository.NewAdminRepository(db), repository.NewUserRepository(db), sp),
		Promotions: service.NewPromotionService(repository.NewPromotionRepository(db), audit, sp),
		Ledger:     ledger,
		Payments:   service.NewPaymentService(nil, sp, repository.NewTransactionRepository(db), ledger, audit),
	})
	return &fixture{d: d, db: db, settings: sp, cache: cache}
}

func req(action Action, payload string) Request {
	return Request{Action: action, Payload: json.RawMessage(payload)}
}

func (f *fixture) rowCounts(t *testing.T) map[string]int64 {
	t.Helper()
	counts := map[string]int64{}
	for name, m := range map[string]interface{}{
		"settings":     &models.SystemSetting{},
		"transactions": &models.Transaction{},
		"promotions":   &models.Promotion{},
		"cache":        &models.CacheEntry{},
		"audit":        &models.AuditLog{},
	} {
		var n int64
		f.db.Model(m).Count(&n)
		counts[name] = n
	}
	var sum struct{ Total int64 }
	f.db.Model(&models.CreditAccount{}).Select("COALESCE(SUM(balance), 0) as total").Scan(&sum)
	counts["balance"] = sum.Total
	return counts
}

func TestUnauthorizedCallersChangeNothing(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.db, "user@example.com", domain.RoleUser, 5)
	f.cache.Put("k", "v", time.Hour)
	before := f.rowCounts(t)

	payloads := map[Action]string{
		ActionSaveSettings:            `{"settings":{"webhook_url":"https://evil.example"}}`,
		ActionSavePaymentSettings:     `{"settings":{"live_address_btc":"bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"}}`,
		ActionUpdateCreditSettings:    `{"settings":{"credits_per_dollar":"1000"}}`,
		ActionTogglePaidMode:          `{"enabled":true}`,
		ActionClearCache:              `{}`,
		ActionAddPromotion:            `{"token_name":"X","start_date":"2026-01-01","end_date":"2026-02-01"}`,
		ActionUpdatePromotion:         `{"id":1,"token_name":"X","start_date":"2026-01-01","end_date":"2026-02-01"}`,
		ActionApprovePromotion:        `{"id":1}`,
		ActionCancelPromotion:         `{"id":1}`,
		ActionAdjustCredits:           fmt.Sprintf(`{"user_id":%d,"type":"add","amount":100}`, u.ID),
		ActionUpdateTransactionStatus: `{"reference":"tg_1","status":"completed"}`,
		ActionTestWebhook:             `{}`,
		ActionSendWebhookTest:         `{}`,
		ActionDashboardStats:          `{}`,
	}
	if len(payloads) != len(Actions) {
		t.Fatalf("test covers %d actions, %d exist", len(payloads), len(Actions))
	}
	for _, actor := range []service.Actor{{}, {UserID: u.ID, Role: domain.RoleUser}} {
		for action, body := range payloads {
			_, err := f.d.Dispatch(context.Background(), actor, req(action, body))
			if !errors.Is(err, service.ErrUnauthorized) {
				t.Errorf("%s as %q: err = %v", action, actor.Role, err)
			}
		}
	}
	after := f.rowCounts(t)
	for k, v := range before {
		if after[k] != v {
			t.Errorf("%s changed from %d to %d", k, v, after[k])
		}
	}
}

func TestRejectsUnknownAndInvalid(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.db, "user@example.com", domain.RoleUser, 5)
	ctx := context.Background()

	if _, err := f.d.Dispatch(ctx, adminActor, req("drop_tables", `{}`)); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("unknown action err = %v", err)
	}
	bad := []Request{
		req(ActionAdjustCredits, fmt.Sprintf(`{"user_id":%d,"type":"multiply","amount":3}`, u.ID)),
		req(ActionAdjustCredits, fmt.Sprintf(`{"user_id":%d,"type":"add"}`, u.ID)),
		req(ActionAdjustCredits, fmt.Sprintf(`{"user_id":%d,"type":"add","amount":-2}`, u.ID)),
		req(ActionAdjustCredits, fmt.Sprintf(`{"user_id":%d,"type":"add","amount":2,"extra":1}`, u.ID)),
		req(ActionAdjustCredits, fmt.Sprintf(`{"user_id":%d,"type":"add","amount":9223372036854775807}`, u.ID)),
		req(ActionTogglePaidMode, `{}`),
		req(ActionAddPromotion, `{"token_name":"X"}`),
		req(ActionAddPromotion, `{"token_name":"X","start_date":"soon","end_date":"2026-02-01"}`),
		req(ActionSendWebhookTest, `{"url":"ftp://example.com"}`),
		req(ActionUpdateTransactionStatus, `{"reference":"tg_1","status":"pending"}`),
		req(ActionClearCache, `{"all":true}`),
	}
	for _, r := range bad {
		if _, err := f.d.Dispatch(ctx, adminActor, r); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("%s %s: err = %v", r.Action, r.Payload, err)
		}
	}
	var n int64
	f.db.Model(&models.Transaction{}).Count(&n)
	if n != 0 {
		t.Errorf("transactions = %d after rejected requests", n)
	}
}

func TestClearCacheReportsCount(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 12; i++ {
		f.cache.Put(fmt.Sprintf("key-%d", i), "v", time.Hour)
	}
	out, err := f.d.Dispatch(context.Background(), adminActor, req(ActionClearCache, ``))
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Data.(map[string]int64)["deleted"]; got != 12 || !out.Success {
		t.Errorf("deleted = %d", got)
	}
	if left, _ := f.cache.Count(); left != 0 {
		t.Errorf("left = %d", left)
	}
}

func TestSendWebhookTest(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("stack trace"))
			return
		}
		w.Write([]byte("ok body"))
	}))
	defer srv.Close()
	ctx := context.Background()

	out, err := f.d.Dispatch(ctx, adminActor, req(ActionSendWebhookTest, fmt.Sprintf(`{"url":%q}`, srv.URL)))
	if err != nil {
		t.Fatal(err)
	}
	res := out.Data.(probe.Result)
	if !out.Success || res.Body != "ok body" {
		t.Errorf("200 outcome = %+v", out)
	}

	out, err = f.d.Dispatch(ctx, adminActor, req(ActionSendWebhookTest, fmt.Sprintf(`{"url":%q}`, srv.URL+"/broken")))
	if err != nil {
		t.Fatal(err)
	}
	res = out.Data.(probe.Result)
	if out.Success || res.StatusCode != 500 || res.Body != "stack trace" {
		t.Errorf("500 outcome = %+v", out)
	}

	// test_webhook pings the configured URL when none is given.
	f.settings.Save(settings.GroupGeneral, map[string]string{settings.KeyWebhookURL: srv.URL})
	out, err = f.d.Dispatch(ctx, adminActor, req(ActionTestWebhook, `{}`))
	if err != nil || !out.Success {
		t.Errorf("ping = %+v, %v", out, err)
	}
}

func TestAdminMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, f.db, "user@example.com", domain.RoleUser, 3)

	out, err := f.d.Dispatch(ctx, adminActor, req(ActionAdjustCredits, fmt.Sprintf(`{"user_id":%d,"type":"subtract","amount":10,"reason":"abuse"}`, u.ID)))
	if err != nil {
		t.Fatal(err)
	}
	if bal := out.Data.(map[string]interface{})["new_balance"]; bal != int64(0) {
		t.Errorf("new balance = %v", bal)
	}

	if _, err := f.d.Dispatch(ctx, adminActor, req(ActionTogglePaidMode, `{"enabled":true}`)); err != nil {
		t.Fatal(err)
	}
	out, err = f.d.Dispatch(ctx, adminActor, req(ActionSaveSettings, `{"settings":{"webhook_url":"https://hooks.example/a","api_timeout":30,"auto_publish":true}}`))
	if err != nil {
		t.Fatal(err)
	}
	cfg, _ := f.settings.Load()
	if !cfg.PaidMode || cfg.APITimeout != 30 || !cfg.AutoPublish || cfg.WebhookURL != "https://hooks.example/a" {
		t.Errorf("settings = %+v", cfg)
	}

	// auto_publish approves new promotions on creation.
	out, err = f.d.Dispatch(ctx, adminActor, req(ActionAddPromotion, `{"token_name":"Gem","chain":"ethereum","start_date":"2026-01-01","end_date":"2026-01-31","cost":"49.99"}`))
	if err != nil {
		t.Fatal(err)
	}
	p := out.Data.(*models.Promotion)
	if p.Status != domain.PromotionActive || p.ApprovedBy == nil || p.EndDate.Local().Hour() != 23 {
		t.Errorf("promotion = %+v", p)
	}
	if _, err := f.d.Dispatch(ctx, adminActor, req(ActionCancelPromotion, fmt.Sprintf(`{"id":%d}`, p.ID))); err != nil {
		t.Fatal(err)
	}
	if _, err := f.d.Dispatch(ctx, adminActor, req(ActionApprovePromotion, fmt.Sprintf(`{"id":%d}`, p.ID))); !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("approve cancelled err = %v", err)
	}

	out, err = f.d.Dispatch(ctx, adminActor, req(ActionDashboardStats, ``))
	if err != nil {
		t.Fatal(err)
	}
	if stats := out.Data.(*repository.DashboardStats); stats.TotalUsers != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
