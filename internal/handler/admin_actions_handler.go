package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"tokenguard/internal/admin"
	"tokenguard/internal/middleware"

	"github.com/gin-gonic/gin"
)

type AdminActionsHandler struct {
	dispatcher *admin.Dispatcher
}

func NewAdminActionsHandler(dispatcher *admin.Dispatcher) *AdminActionsHandler {
	return &AdminActionsHandler{dispatcher: dispatcher}
}

type actionRequest struct {
	Action  admin.Action    `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// Handle serves POST /admin/actions {action, payload}.
func (h *AdminActionsHandler) Handle(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	out, err := h.dispatcher.Dispatch(c.Request.Context(), middleware.GetActor(c), admin.Request{Action: req.Action, Payload: req.Payload})
	if err != nil {
		if errors.Is(err, admin.ErrUnknownAction) {
			fail(c, http.StatusBadRequest, "unknown action: "+string(req.Action))
			return
		}
		failErr(c, err)
		return
	}
	body := gin.H{"success": out.Success}
	if out.Message != "" {
		body["message"] = out.Message
	}
	if out.Data != nil {
		body["data"] = out.Data
	}
	c.JSON(http.StatusOK, body)
}

// Actions lists the accepted action names, for the admin UI.
func (h *AdminActionsHandler) Actions(c *gin.Context) {
	ok(c, admin.Actions)
}
