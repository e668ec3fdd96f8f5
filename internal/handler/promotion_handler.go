package handler

import (
	"net/http"
	"strconv"

	"tokenguard/internal/service"

	"github.com/gin-gonic/gin"
)

type PromotionHandler struct {
	svc *service.PromotionService
}

func NewPromotionHandler(svc *service.PromotionService) *PromotionHandler {
	return &PromotionHandler{svc: svc}
}

// List handles GET /promotions: promotions currently shown in the sidebar.
func (h *PromotionHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 50 {
		limit = 10
	}
	list, err := h.svc.ListPublic(limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, list)
}

// Click handles POST /promotions/:id/click. Only visible promotions count clicks.
func (h *PromotionHandler) Click(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	counted, err := h.svc.RecordClick(id)
	if err != nil {
		failErr(c, err)
		return
	}
	if !counted {
		fail(c, http.StatusNotFound, "promotion not found")
		return
	}
	okMessage(c, "recorded", nil)
}
