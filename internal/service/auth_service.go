package service

import (
	"context"
	"errors"
	"strings"

	"tokenguard/config"
	"tokenguard/internal/auth"
	"tokenguard/internal/common"
	"tokenguard/internal/domain"
	"tokenguard/internal/models"
	"tokenguard/internal/repository"
	"tokenguard/internal/settings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailExists  = errors.New("email already registered")
	ErrInvalidCreds = errors.New("invalid email or password")
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	ErrInvalidEmail = errors.New("invalid email address")
	ErrGoogleOnly   = errors.New("account uses Google sign-in; set a password first")
)

const minPasswordLen = 8

type AuthService struct {
	cfg      *config.Config
	userRepo *repository.UserRepository
	ledger   *LedgerService
	settings settings.Provider
}

func NewAuthService(cfg *config.Config, userRepo *repository.UserRepository, ledger *LedgerService, sp settings.Provider) *AuthService {
	return &AuthService{cfg: cfg, userRepo: userRepo, ledger: ledger, settings: sp}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " <>") && strings.Contains(email[at:], ".")
}

// Register creates a chat user and grants the configured signup credits.
func (s *AuthService) Register(ctx context.Context, email, password, displayName string) (*models.User, *auth.TokenPair, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return nil, nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return nil, nil, ErrWeakPassword
	}
	_, err := s.userRepo.GetByEmail(email)
	if err == nil {
		return nil, nil, ErrEmailExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}
	displayName = common.Truncate(common.SanitizeText(displayName), 100)
	if displayName == "" {
		displayName = strings.Split(email, "@")[0]
	}
	u := &models.User{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
	}
	if err := s.userRepo.Create(u); err != nil {
		return nil, nil, err
	}
	s.grantBonus(ctx, u)
	pair, err := auth.IssuePair(&s.cfg.JWT, u.ID, u.Email, u.Role)
	return u, pair, err
}

func (s *AuthService) Login(email, password string) (*models.User, *auth.TokenPair, error) {
	u, err := s.userRepo.GetByEmail(normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCreds
		}
		return nil, nil, err
	}
	if u.PasswordHash == "" {
		return nil, nil, ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCreds
	}
	_ = s.userRepo.TouchLogin(u.ID)
	pair, err := auth.IssuePair(&s.cfg.JWT, u.ID, u.Email, u.Role)
	return u, pair, err
}

// LoginWithGoogle finds or creates a user by Google ID, linking an existing
// email account when one matches. isNew reports whether a user was created.
func (s *AuthService) LoginWithGoogle(ctx context.Context, googleID, email, name, avatarURL string) (*models.User, *auth.TokenPair, bool, error) {
	email = normalizeEmail(email)
	u, err := s.userRepo.GetByGoogleID(googleID)
	if err == nil {
		_ = s.userRepo.TouchLogin(u.ID)
		pair, err := auth.IssuePair(&s.cfg.JWT, u.ID, u.Email, u.Role)
		return u, pair, false, err
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, false, err
	}
	if existing, _ := s.userRepo.GetByEmail(email); existing != nil {
		gid := googleID
		existing.GoogleID = &gid
		if avatarURL != "" && existing.AvatarURL == "" {
			existing.AvatarURL = common.SanitizeURL(avatarURL)
		}
		if err := s.userRepo.Update(existing); err != nil {
			return nil, nil, false, err
		}
		pair, err := auth.IssuePair(&s.cfg.JWT, existing.ID, existing.Email, existing.Role)
		return existing, pair, false, err
	}
	if !validEmail(email) {
		return nil, nil, false, ErrInvalidEmail
	}
	gid := googleID
	displayName := common.Truncate(common.SanitizeText(name), 100)
	if displayName == "" {
		displayName = strings.Split(email, "@")[0]
	}
	u = &models.User{
		Email:       email,
		DisplayName: displayName,
		GoogleID:    &gid,
		Role:        domain.RoleUser,
		AvatarURL:   common.SanitizeURL(avatarURL),
	}
	if err := s.userRepo.Create(u); err != nil {
		return nil, nil, false, err
	}
	s.grantBonus(ctx, u)
	pair, err := auth.IssuePair(&s.cfg.JWT, u.ID, u.Email, u.Role)
	return u, pair, true, err
}

// ChangePassword updates the user's password after verifying the current one.
func (s *AuthService) ChangePassword(userID uint, currentPassword, newPassword string) error {
	u, err := s.userRepo.GetByID(userID)
	if err != nil {
		return ErrInvalidCreds
	}
	if u.PasswordHash == "" {
		return ErrGoogleOnly
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCreds
	}
	if len(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return s.userRepo.Update(u)
}

func (s *AuthService) RefreshToken(refreshToken string) (*auth.TokenPair, error) {
	userID, err := auth.ParseRefreshToken(&s.cfg.JWT, refreshToken)
	if err != nil {
		return nil, err
	}
	u, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, auth.ErrInvalidToken
	}
	return auth.IssuePair(&s.cfg.JWT, u.ID, u.Email, u.Role)
}

func (s *AuthService) grantBonus(ctx context.Context, u *models.User) {
	if s.ledger == nil || s.settings == nil {
		return
	}
	cfg, err := s.settings.Load()
	if err != nil {
		log.WithError(err).Warn("[auth] load settings for signup bonus")
		return
	}
	if err := s.ledger.GrantSignupBonus(ctx, u.ID, cfg.FreeCreditsOnSignup); err != nil {
		log.WithError(err).WithField("user_id", u.ID).Warn("[auth] signup bonus failed")
	}
}
