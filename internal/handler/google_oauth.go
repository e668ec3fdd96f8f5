package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"tokenguard/config"
	"tokenguard/internal/models"
	"tokenguard/internal/repository"
	"tokenguard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleUserInfoURL  = "https://www.googleapis.com/oauth2/v2/userinfo"
	googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"
	oauthStateCookie   = "tg_oauth_state"
)

type GoogleOAuthHandler struct {
	cfg          *config.Config
	authSvc      *service.AuthService
	ledger       *service.LedgerService
	auditRepo    *repository.AuditLogRepository
	endpoint     oauth2.Endpoint
	userInfoURL  string
	tokenInfoURL string
	client       *http.Client
}

func NewGoogleOAuthHandler(cfg *config.Config, authSvc *service.AuthService, ledger *service.LedgerService, auditRepo *repository.AuditLogRepository) *GoogleOAuthHandler {
	return &GoogleOAuthHandler{
		cfg:          cfg,
		authSvc:      authSvc,
		ledger:       ledger,
		auditRepo:    auditRepo,
		endpoint:     google.Endpoint,
		userInfoURL:  googleUserInfoURL,
		tokenInfoURL: googleTokenInfoURL,
		client:       &http.Client{Timeout: 15 * time.Second},
	}
}

func (h *GoogleOAuthHandler) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.cfg.OAuth.GoogleClientID,
		ClientSecret: h.cfg.OAuth.GoogleClientSecret,
		RedirectURL:  h.cfg.OAuth.GoogleRedirectURL,
		Scopes:       []string{"openid", "https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     h.endpoint,
	}
}

func (h *GoogleOAuthHandler) configured(c *gin.Context) bool {
	if h.cfg.OAuth.GoogleClientID == "" {
		fail(c, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return false
	}
	return true
}

// Redirect sends the user to the Google consent screen with a one-time state cookie.
func (h *GoogleOAuthHandler) Redirect(c *gin.Context) {
	if !h.configured(c) {
		return
	}
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, 600, "/", "", h.cfg.IsProduction(), true)
	c.Redirect(http.StatusFound, h.OAuth2Config().AuthCodeURL(state))
}

type googleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Callback exchanges the code, fetches the profile, signs the user in.
func (h *GoogleOAuthHandler) Callback(c *gin.Context) {
	if !h.configured(c) {
		return
	}
	state, err := c.Cookie(oauthStateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		fail(c, http.StatusBadRequest, "invalid oauth state")
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, "/", "", h.cfg.IsProduction(), true)
	code := c.Query("code")
	if code == "" {
		fail(c, http.StatusBadRequest, "missing code")
		return
	}
	ctx := context.WithValue(c.Request.Context(), oauth2.HTTPClient, h.client)
	conf := h.OAuth2Config()
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		log.WithError(err).Warn("[oauth] code exchange failed")
		fail(c, http.StatusBadRequest, "exchange failed")
		return
	}
	resp, err := conf.Client(ctx, tok).Get(h.userInfoURL)
	if err != nil {
		fail(c, http.StatusBadGateway, "failed to get user info")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fail(c, http.StatusBadGateway, "failed to get user info")
		return
	}
	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil || info.ID == "" || info.Email == "" {
		fail(c, http.StatusBadGateway, "invalid user info")
		return
	}
	h.signIn(c, info.ID, info.Email, info.Name, info.Picture, "oauth.google_callback")
}

type tokeninfoResponse struct {
	Sub           string `json:"sub"`
	Aud           string `json:"aud"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Token accepts a Google ID token from the widget's one-tap button.
func (h *GoogleOAuthHandler) Token(c *gin.Context) {
	if !h.configured(c) {
		return
	}
	var req struct {
		IDToken string `json:"id_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "id_token required")
		return
	}
	info, err := h.verifyIDToken(c.Request.Context(), req.IDToken)
	if err != nil {
		log.WithError(err).Warn("[oauth] id token rejected")
		fail(c, http.StatusUnauthorized, "invalid id_token")
		return
	}
	h.signIn(c, info.Sub, info.Email, info.Name, info.Picture, "oauth.google_token")
}

func (h *GoogleOAuthHandler) verifyIDToken(ctx context.Context, idToken string) (*tokeninfoResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.tokenInfoURL+"?id_token="+url.QueryEscape(idToken), nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tokeninfo status %d: %s", resp.StatusCode, body)
	}
	var info tokeninfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	switch {
	case info.Sub == "" || info.Email == "":
		return nil, fmt.Errorf("token payload missing sub or email")
	case info.Aud != h.cfg.OAuth.GoogleClientID:
		return nil, fmt.Errorf("token issued for another client")
	case info.EmailVerified != "" && info.EmailVerified != "true":
		return nil, fmt.Errorf("email not verified")
	}
	return &info, nil
}

func (h *GoogleOAuthHandler) signIn(c *gin.Context, googleID, email, name, avatar, action string) {
	u, pair, isNew, err := h.authSvc.LoginWithGoogle(c.Request.Context(), googleID, email, name, avatar)
	if err != nil {
		failErr(c, err)
		return
	}
	if h.auditRepo != nil {
		meta, _ := json.Marshal(map[string]bool{"new_user": isNew})
		_ = h.auditRepo.Create(&models.AuditLog{UserID: &u.ID, Action: action, Resource: "auth", IP: c.ClientIP(), Metadata: string(meta)})
	}
	bal, _ := h.ledger.Balance(c.Request.Context(), u.ID)
	ok(c, gin.H{"user": u, "tokens": pair, "balance": bal, "new_user": isNew})
}
