package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tokenguard/config"
	"tokenguard/internal/auth"
	"tokenguard/internal/domain"

	"github.com/gin-gonic/gin"
)

var jwtCfg = &config.JWTConfig{AccessSecret: "test-secret", RefreshSecret: "test-refresh", AccessExpiry: time.Minute, RefreshExpiry: time.Hour, Issuer: "test"}

func init() { gin.SetMode(gin.TestMode) }

func adminEngine() *gin.Engine {
	r := gin.New()
	r.POST("/admin", AuthRequired(jwtCfg), AdminRequired(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "actor": GetActor(c).UserID})
	})
	r.GET("/optional", OptionalAuth(jwtCfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"anonymous": OptionalUserID(c) == nil})
	})
	return r
}

func do(r http.Handler, method, path, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func token(t *testing.T, id uint, role string) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken(jwtCfg, id, "u@example.com", role)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestAdminRoutesRejectWithEnvelope(t *testing.T) {
	r := adminEngine()
	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"plain user", token(t, 2, domain.RoleUser), http.StatusForbidden},
	}
	for _, tc := range cases {
		w, body := do(r, http.MethodPost, "/admin", tc.token)
		if w.Code != tc.status {
			t.Errorf("%s: status = %d", tc.name, w.Code)
		}
		if body["success"] != false || body["message"] != "unauthorized" {
			t.Errorf("%s: body = %v", tc.name, body)
		}
	}

	w, body := do(r, http.MethodPost, "/admin", token(t, 1, domain.RoleAdmin))
	if w.Code != http.StatusOK || body["actor"] != float64(1) {
		t.Errorf("admin: %d %v", w.Code, body)
	}
}

func TestOptionalAuth(t *testing.T) {
	r := adminEngine()
	if _, body := do(r, http.MethodGet, "/optional", ""); body["anonymous"] != true {
		t.Errorf("anonymous body = %v", body)
	}
	if _, body := do(r, http.MethodGet, "/optional", "bad"); body["anonymous"] != true {
		t.Errorf("bad token body = %v", body)
	}
	if _, body := do(r, http.MethodGet, "/optional", token(t, 7, domain.RoleUser)); body["anonymous"] != false {
		t.Errorf("user body = %v", body)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := NewInMemoryRateLimiter(2, time.Minute)
	defer limiter.Stop()
	r := gin.New()
	r.GET("/", RateLimit(limiter), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		if w, _ := do(r, http.MethodGet, "/", ""); w.Code != http.StatusNoContent {
			t.Fatalf("request %d: %d", i, w.Code)
		}
	}
	w, body := do(r, http.MethodGet, "/", "")
	if w.Code != http.StatusTooManyRequests || body["success"] != false {
		t.Errorf("third request: %d %v", w.Code, body)
	}
}
