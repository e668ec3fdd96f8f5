package handler

import (
	"errors"
	"net/http"
	"strconv"

	"tokenguard/internal/admin"
	"tokenguard/internal/service"
	"tokenguard/internal/settings"
	"tokenguard/pkg/payment"
	"tokenguard/pkg/recaptcha"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Every JSON response is {success, data} or {success, message}.

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func okMessage(c *gin.Context, msg string, data interface{}) {
	body := gin.H{"success": true, "message": msg}
	if data != nil {
		body["data"] = data
	}
	c.JSON(http.StatusOK, body)
}

func page(c *gin.Context, list interface{}, total int64, p, limit int) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": list, "total": total, "page": p, "limit": limit})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg})
}

var errorStatus = []struct {
	err    error
	status int
	// expose the wrapped message rather than only the sentinel's
	detail bool
}{
	{service.ErrUnauthorized, http.StatusForbidden, false},
	{service.ErrAuthRequired, http.StatusUnauthorized, false},
	{service.ErrInvalidCreds, http.StatusUnauthorized, false},
	{service.ErrUserNotFound, http.StatusNotFound, false},
	{service.ErrTransactionNotFound, http.StatusNotFound, false},
	{service.ErrPromotionNotFound, http.StatusNotFound, false},
	{service.ErrEmailExists, http.StatusConflict, false},
	{service.ErrInvalidTransition, http.StatusConflict, false},
	{service.ErrInsufficientCredits, http.StatusPaymentRequired, false},
	{service.ErrWebhookNotConfigured, http.StatusServiceUnavailable, false},
	{service.ErrProviderNotConfigured, http.StatusServiceUnavailable, false},
	{service.ErrAnalysisUnavailable, http.StatusBadGateway, false},
	{service.ErrCheckoutFailed, http.StatusBadGateway, false},
	{admin.ErrUnknownAction, http.StatusBadRequest, false},
	{admin.ErrInvalidPayload, http.StatusBadRequest, true},
	{service.ErrInvalidAdjustment, http.StatusBadRequest, false},
	{service.ErrInvalidAmount, http.StatusBadRequest, false},
	{service.ErrInvalidQuestion, http.StatusBadRequest, true},
	{service.ErrWeakPassword, http.StatusBadRequest, false},
	{service.ErrInvalidEmail, http.StatusBadRequest, false},
	{service.ErrGoogleOnly, http.StatusBadRequest, false},
	{service.ErrInvalidPurchase, http.StatusBadRequest, true},
	{service.ErrUnsupportedCurrency, http.StatusBadRequest, false},
	{service.ErrInvalidStatusChange, http.StatusBadRequest, true},
	{service.ErrInvalidPromotion, http.StatusBadRequest, true},
	{settings.ErrUnknownKey, http.StatusBadRequest, true},
	{settings.ErrUnknownGroup, http.StatusBadRequest, true},
	{recaptcha.ErrFailed, http.StatusBadRequest, false},
	{payment.ErrInvalidSignature, http.StatusBadRequest, false},
}

// failErr maps a service error to a status and envelope. Unknown errors are
// logged and reported as a generic 500.
func failErr(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			msg := e.err.Error()
			if e.detail {
				msg = err.Error()
			}
			fail(c, e.status, msg)
			return
		}
	}
	log.WithError(err).WithField("path", c.FullPath()).Error("[http] unhandled error")
	fail(c, http.StatusInternalServerError, "internal error")
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}
