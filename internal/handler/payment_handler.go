package handler

import (
	"net/http"
	"strings"

	"tokenguard/internal/middleware"
	"tokenguard/internal/repository"
	"tokenguard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	payments *service.PaymentService
	users    *repository.UserRepository
}

func NewPaymentHandler(payments *service.PaymentService, users *repository.UserRepository) *PaymentHandler {
	return &PaymentHandler{payments: payments, users: users}
}

type checkoutRequest struct {
	AmountUSD decimal.Decimal `json:"amount_usd"`
	Currency  string          `json:"currency"`
}

// Quote handles GET /payments/quote?amount_usd=: credits for a USD amount.
func (h *PaymentHandler) Quote(c *gin.Context) {
	usd, err := decimal.NewFromString(c.Query("amount_usd"))
	if err != nil {
		fail(c, http.StatusBadRequest, "amount_usd must be a number")
		return
	}
	tokens, err := h.payments.Quote(usd)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"amount_usd": usd, "tokens": tokens})
}

// Stripe handles POST /payments/stripe {amount_usd}.
func (h *PaymentHandler) Stripe(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "amount_usd is required")
		return
	}
	u, err := h.users.GetByID(middleware.GetUserID(c))
	if err != nil {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	out, err := h.payments.CreateStripeCheckout(c.Request.Context(), u, req.AmountUSD)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, out)
}

// Crypto handles POST /payments/crypto {amount_usd, currency}.
func (h *PaymentHandler) Crypto(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Currency) == "" {
		fail(c, http.StatusBadRequest, "amount_usd and currency are required")
		return
	}
	u, err := h.users.GetByID(middleware.GetUserID(c))
	if err != nil {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	out, err := h.payments.CreateCryptoInvoice(c.Request.Context(), u, req.AmountUSD, strings.ToLower(strings.TrimSpace(req.Currency)))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, out)
}
