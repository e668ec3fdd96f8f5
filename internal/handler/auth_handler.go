package handler

import (
	"context"
	"net/http"

	"tokenguard/internal/middleware"
	"tokenguard/internal/models"
	"tokenguard/internal/repository"
	"tokenguard/internal/service"
	"tokenguard/internal/settings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// CaptchaVerifier checks a reCAPTCHA token; an empty secret disables the check.
type CaptchaVerifier interface {
	Verify(ctx context.Context, secret, token, remoteIP string) error
}

type AuthHandler struct {
	svc       *service.AuthService
	ledger    *service.LedgerService
	users     *repository.UserRepository
	auditRepo *repository.AuditLogRepository
	settings  settings.Provider
	captcha   CaptchaVerifier
}

func NewAuthHandler(svc *service.AuthService, ledger *service.LedgerService, users *repository.UserRepository, auditRepo *repository.AuditLogRepository, sp settings.Provider, captcha CaptchaVerifier) *AuthHandler {
	return &AuthHandler{svc: svc, ledger: ledger, users: users, auditRepo: auditRepo, settings: sp, captcha: captcha}
}

type RegisterRequest struct {
	Email          string `json:"email" binding:"required"`
	Password       string `json:"password" binding:"required"`
	DisplayName    string `json:"display_name"`
	RecaptchaToken string `json:"recaptcha_token"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "email and password are required")
		return
	}
	cfg, err := h.settings.Load()
	if err != nil {
		failErr(c, err)
		return
	}
	if err := h.captcha.Verify(c.Request.Context(), cfg.RecaptchaSecretKey, req.RecaptchaToken, c.ClientIP()); err != nil {
		log.WithError(err).WithField("ip", c.ClientIP()).Warn("[auth] recaptcha rejected")
		failErr(c, err)
		return
	}
	u, pair, err := h.svc.Register(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		failErr(c, err)
		return
	}
	h.auditLog(u.ID, "auth.register", c)
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": h.session(c, u, pair)})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "email and password are required")
		return
	}
	u, pair, err := h.svc.Login(req.Email, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	h.auditLog(u.ID, "auth.login", c)
	ok(c, h.session(c, u, pair))
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "refresh_token is required")
		return
	}
	pair, err := h.svc.RefreshToken(req.RefreshToken)
	if err != nil {
		fail(c, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}
	ok(c, pair)
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "new_password is required")
		return
	}
	userID := middleware.GetUserID(c)
	if err := h.svc.ChangePassword(userID, req.CurrentPassword, req.NewPassword); err != nil {
		failErr(c, err)
		return
	}
	h.auditLog(userID, "auth.change_password", c)
	okMessage(c, "Password updated", nil)
}

// Me returns the signed-in user with their credit balance.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := middleware.GetUserID(c)
	u, err := h.users.GetByID(userID)
	if err != nil {
		fail(c, http.StatusNotFound, "user not found")
		return
	}
	bal, _ := h.ledger.Balance(c.Request.Context(), userID)
	ok(c, gin.H{"user": u, "balance": bal})
}

func (h *AuthHandler) session(c *gin.Context, u *models.User, pair interface{}) gin.H {
	bal, _ := h.ledger.Balance(c.Request.Context(), u.ID)
	return gin.H{"user": u, "tokens": pair, "balance": bal}
}

func (h *AuthHandler) auditLog(userID uint, action string, c *gin.Context) {
	if h.auditRepo == nil {
		return
	}
	uid := userID
	if err := h.auditRepo.Create(&models.AuditLog{UserID: &uid, Action: action, Resource: "auth", IP: c.ClientIP()}); err != nil {
		log.WithError(err).Warn("[auth] audit log")
	}
}
