package handler

import (
	"net/http"

	"tokenguard/internal/middleware"
	"tokenguard/internal/service"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	analysis *service.AnalysisService
}

func NewChatHandler(analysis *service.AnalysisService) *ChatHandler {
	return &ChatHandler{analysis: analysis}
}

// Send handles POST /chat. Anonymous callers are allowed unless paid mode is on.
func (h *ChatHandler) Send(c *gin.Context) {
	var req service.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.analysis.Analyze(c.Request.Context(), middleware.OptionalUserID(c), req)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, res)
}

// History handles GET /me/analyses.
func (h *ChatHandler) History(c *gin.Context) {
	p, limit := parsePagination(c)
	list, total, err := h.analysis.History(middleware.GetUserID(c), p, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	page(c, list, total, p, limit)
}
