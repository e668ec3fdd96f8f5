package handler

import (
	"strconv"

	"tokenguard/internal/middleware"
	"tokenguard/internal/service"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	svc *service.NotificationService
}

func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// Updates handles GET /me/updates: unread notifications, marked read once returned.
// Polling fallback for clients without a websocket.
func (h *NotificationHandler) Updates(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	list, err := h.svc.Pending(middleware.GetUserID(c), limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"notifications": list, "count": len(list)})
}
