package middleware

import (
	"net/http"
	"strings"

	"tokenguard/config"
	"tokenguard/internal/auth"
	"tokenguard/internal/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg})
}

func bearer(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set("user_id", claims.UserID)
	c.Set("email", claims.Email)
	c.Set("role", claims.Role)
	c.Set("claims", claims)
}

// AuthRequired validates JWT and sets UserID, Email, Role in context.
func AuthRequired(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		claims, err := auth.ParseAccessToken(cfg, token)
		if err != nil {
			log.WithField("path", c.FullPath()).WithError(err).Debug("[auth] rejected token")
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth sets the user context when a valid token is sent and
// otherwise lets the request through anonymously.
func OptionalAuth(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearer(c); token != "" {
			if claims, err := auth.ParseAccessToken(cfg, token); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// GetUserID returns the authenticated user ID from context, 0 when anonymous.
func GetUserID(c *gin.Context) uint {
	v, _ := c.Get("user_id")
	if v == nil {
		return 0
	}
	return v.(uint)
}

// OptionalUserID is GetUserID as a pointer, nil when anonymous.
func OptionalUserID(c *gin.Context) *uint {
	if id := GetUserID(c); id != 0 {
		return &id
	}
	return nil
}

// GetActor describes the caller for authorization checks in services.
func GetActor(c *gin.Context) service.Actor {
	return service.Actor{UserID: GetUserID(c), Role: c.GetString("role"), IP: c.ClientIP()}
}
