package router

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"tokenguard/config"
	"tokenguard/internal/auth"
	"tokenguard/internal/domain"
	"tokenguard/internal/models"
	"tokenguard/internal/repository"
	"tokenguard/internal/settings"
	"tokenguard/internal/testutil"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Env:            "test",
			PublicBaseURL:  "http://widget.test",
			AllowedOrigins: []string{"*"},
			RateLimit:      1000,
			RateWindow:     time.Minute,
		},
		JWT: config.JWTConfig{
			AccessSecret:  "access",
			RefreshSecret: "refresh",
			AccessExpiry:  time.Hour,
			RefreshExpiry: time.Hour,
			Issuer:        "test",
		},
		Payment: config.PaymentConfig{MinPurchaseUSD: 1, MaxPurchaseUSD: 1000},
	}
}

type env struct {
	t        *testing.T
	cfg      *config.Config
	db       *gorm.DB
	engine   *gin.Engine
	settings *settings.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	db := testutil.NewDB(t)
	engine, _ := Setup(cfg, db)
	return &env{t: t, cfg: cfg, db: db, engine: engine, settings: settings.NewService(repository.NewSettingRepository(db))}
}

func (e *env) token(u *models.User) string {
	tok, err := auth.GenerateAccessToken(&e.cfg.JWT, u.ID, u.Email, u.Role)
	if err != nil {
		e.t.Fatal(err)
	}
	return tok
}

func (e *env) do(method, path, token string, body interface{}, headers ...string) (int, map[string]interface{}) {
	e.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	var out map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &out)
	return w.Code, out
}

func (e *env) balance(userID uint) int64 {
	var acct models.CreditAccount
	if err := e.db.Where("user_id = ?", userID).First(&acct).Error; err != nil {
		e.t.Fatal(err)
	}
	return acct.Balance
}

func TestAdminActionsRequireAdmin(t *testing.T) {
	e := newEnv(t)
	user := testutil.CreateUser(t, e.db, "user@example.com", domain.RoleUser, 5)
	action := map[string]interface{}{
		"action":  "adjust_credits",
		"payload": map[string]interface{}{"user_id": user.ID, "type": "add", "amount": 1000},
	}

	for _, tok := range []string{"", e.token(user)} {
		status, body := e.do(http.MethodPost, "/api/v1/admin/actions", tok, action)
		if status != http.StatusUnauthorized && status != http.StatusForbidden {
			t.Errorf("status = %d", status)
		}
		if body["success"] != false || body["message"] != "unauthorized" {
			t.Errorf("body = %v", body)
		}
	}
	if got := e.balance(user.ID); got != 5 {
		t.Errorf("balance = %d after rejected adjustment", got)
	}
	var n int64
	e.db.Model(&models.Transaction{}).Count(&n)
	if n != 0 {
		t.Errorf("transactions = %d", n)
	}
}

func TestAdminAdjustCredits(t *testing.T) {
	e := newEnv(t)
	adminUser := testutil.CreateUser(t, e.db, "admin@example.com", domain.RoleAdmin, 0)
	user := testutil.CreateUser(t, e.db, "user@example.com", domain.RoleUser, 5)
	tok := e.token(adminUser)

	status, body := e.do(http.MethodPost, "/api/v1/admin/actions", tok, map[string]interface{}{
		"action":  "adjust_credits",
		"payload": map[string]interface{}{"user_id": user.ID, "type": "set", "amount": 42, "reason": "support ticket"},
	})
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("%d %v", status, body)
	}
	if got := e.balance(user.ID); got != 42 {
		t.Errorf("balance = %d", got)
	}

	status, body = e.do(http.MethodPost, "/api/v1/admin/actions", tok, map[string]interface{}{
		"action":  "adjust_credits",
		"payload": map[string]interface{}{"user_id": user.ID, "type": "double", "amount": 1},
	})
	if status != http.StatusBadRequest || body["success"] != false {
		t.Errorf("invalid type: %d %v", status, body)
	}
	status, body = e.do(http.MethodPost, "/api/v1/admin/actions", tok, map[string]interface{}{"action": "rm_rf"})
	if status != http.StatusBadRequest || body["message"] != "unknown action: rm_rf" {
		t.Errorf("unknown action: %d %v", status, body)
	}

	// The user sees the pending update once.
	status, body = e.do(http.MethodGet, "/api/v1/me/updates", e.token(user), nil)
	data := body["data"].(map[string]interface{})
	if status != http.StatusOK || data["count"] != float64(1) {
		t.Errorf("updates: %d %v", status, body)
	}
	_, body = e.do(http.MethodGet, "/api/v1/me/updates", e.token(user), nil)
	if body["data"].(map[string]interface{})["count"] != float64(0) {
		t.Errorf("updates not marked read: %v", body)
	}
}

func TestAdminSettingsMaskSecrets(t *testing.T) {
	e := newEnv(t)
	adminUser := testutil.CreateUser(t, e.db, "admin@example.com", domain.RoleAdmin, 0)
	if _, err := e.settings.Save(settings.GroupPayment, map[string]string{
		settings.KeyStripeSecretKey: "sk_live_secret",
		"live_address_btc":          "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
	}); err != nil {
		t.Fatal(err)
	}
	status, body := e.do(http.MethodGet, "/api/v1/admin/settings", e.token(adminUser), nil)
	if status != http.StatusOK {
		t.Fatalf("%d %v", status, body)
	}
	data := body["data"].(map[string]interface{})
	s := data["settings"].(map[string]interface{})
	if s["stripe_secret_key"] != settings.SecretMask {
		t.Errorf("secret leaked: %v", s["stripe_secret_key"])
	}
	if missing := data["missing_addresses"].([]interface{}); len(missing) != 5 {
		t.Errorf("missing = %v", missing)
	}

	_, body = e.do(http.MethodGet, "/api/v1/widget/config", "", nil)
	raw, _ := json.Marshal(body)
	if bytes.Contains(raw, []byte("sk_live_secret")) {
		t.Error("widget config exposes the Stripe secret key")
	}
}

func TestRegisterGrantsSignupBonus(t *testing.T) {
	e := newEnv(t)
	status, body := e.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "New@Example.com", "password": "correct-horse",
	})
	if status != http.StatusCreated {
		t.Fatalf("%d %v", status, body)
	}
	data := body["data"].(map[string]interface{})
	if data["balance"] != float64(3) {
		t.Errorf("balance = %v", data["balance"])
	}
	status, _ = e.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "new@example.com", "password": "correct-horse",
	})
	if status != http.StatusConflict {
		t.Errorf("duplicate status = %d", status)
	}
	status, body = e.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "new@example.com", "password": "wrong-password",
	})
	if status != http.StatusUnauthorized || body["success"] != false {
		t.Errorf("bad login: %d %v", status, body)
	}
}

func TestChatRequiresSignInWhenPaid(t *testing.T) {
	e := newEnv(t)
	if err := e.settings.TogglePaidMode(true); err != nil {
		t.Fatal(err)
	}
	status, body := e.do(http.MethodPost, "/api/v1/chat", "", map[string]string{"message": "is this a rug?"})
	if status != http.StatusUnauthorized || body["success"] != false {
		t.Errorf("%d %v", status, body)
	}
}

func TestStripeWebhookCreditsPurchase(t *testing.T) {
	e := newEnv(t)
	user := testutil.CreateUser(t, e.db, "buyer@example.com", domain.RoleUser, 1)
	if _, err := e.settings.Save(settings.GroupPayment, map[string]string{settings.KeyStripeWebhookSecret: "whsec_test"}); err != nil {
		t.Fatal(err)
	}
	tx := &models.Transaction{UserID: user.ID, Reference: "tg_abc", Tokens: 100, Method: domain.MethodStripe, Status: domain.TxStatusPending}
	if err := e.db.Create(tx).Error; err != nil {
		t.Fatal(err)
	}
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","client_reference_id":"tg_abc","payment_status":"paid"}}}`)

	status, _ := e.do(http.MethodPost, "/api/v1/webhooks/stripe", "", payload, "Stripe-Signature", "t=1,v1=deadbeef")
	if status != http.StatusBadRequest {
		t.Errorf("bad signature status = %d", status)
	}
	if got := e.balance(user.ID); got != 1 {
		t.Fatalf("balance after bad signature = %d", got)
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte("whsec_test"))
	mac.Write([]byte(ts + "." + string(payload)))
	sig := fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
	for i := 0; i < 2; i++ {
		status, body := e.do(http.MethodPost, "/api/v1/webhooks/stripe", "", payload, "Stripe-Signature", sig)
		if status != http.StatusOK {
			t.Fatalf("delivery %d: %d %v", i, status, body)
		}
	}
	if got := e.balance(user.ID); got != 101 {
		t.Errorf("balance = %d, want 101 after duplicate delivery", got)
	}
}

func TestPromotionsSidebar(t *testing.T) {
	e := newEnv(t)
	adminUser := testutil.CreateUser(t, e.db, "admin@example.com", domain.RoleAdmin, 0)
	tok := e.token(adminUser)
	start := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	end := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	status, body := e.do(http.MethodPost, "/api/v1/admin/actions", tok, map[string]interface{}{
		"action":  "add_promotion",
		"payload": map[string]interface{}{"token_name": "Gem", "start_date": start, "end_date": end},
	})
	if status != http.StatusOK {
		t.Fatalf("%d %v", status, body)
	}
	id := body["data"].(map[string]interface{})["id"].(float64)

	_, body = e.do(http.MethodGet, "/api/v1/promotions", "", nil)
	if n := len(body["data"].([]interface{})); n != 0 {
		t.Errorf("pending promotion visible: %d", n)
	}
	if status, _ := e.do(http.MethodPost, fmt.Sprintf("/api/v1/promotions/%d/click", int(id)), "", nil); status != http.StatusNotFound {
		t.Errorf("click on hidden promotion = %d", status)
	}

	e.do(http.MethodPost, "/api/v1/admin/actions", tok, map[string]interface{}{
		"action": "approve_promotion", "payload": map[string]interface{}{"id": id},
	})
	_, body = e.do(http.MethodGet, "/api/v1/promotions", "", nil)
	if n := len(body["data"].([]interface{})); n != 1 {
		t.Errorf("approved promotion not visible: %d", n)
	}
	if status, _ := e.do(http.MethodPost, fmt.Sprintf("/api/v1/promotions/%d/click", int(id)), "", nil); status != http.StatusOK {
		t.Errorf("click = %d", status)
	}
}
