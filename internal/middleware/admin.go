package middleware

import (
	"net/http"

	"tokenguard/internal/domain"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// AdminRequired checks that the authenticated user has the ADMIN role.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != domain.RoleAdmin {
			log.WithFields(log.Fields{
				"user_id": GetUserID(c),
				"path":    c.Request.URL.Path,
				"ip":      c.ClientIP(),
			}).Warn("[admin] access denied")
			abort(c, http.StatusForbidden, "unauthorized")
			return
		}
		c.Next()
	}
}
