package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"tokenguard/internal/service"
	"tokenguard/pkg/payment"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const maxWebhookBody = 1 << 20

// PaymentWebhookHandler receives provider callbacks. Signature failures get 400;
// storage failures get 500 so the provider retries.
type PaymentWebhookHandler struct {
	payments *service.PaymentService
}

func NewPaymentWebhookHandler(payments *service.PaymentService) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{payments: payments}
}

// Stripe handles POST /webhooks/stripe.
func (h *PaymentWebhookHandler) Stripe(c *gin.Context) {
	h.handle(c, "stripe", "Stripe-Signature", h.payments.HandleStripeWebhook)
}

// Crypto handles POST /webhooks/crypto (gateway IPN).
func (h *PaymentWebhookHandler) Crypto(c *gin.Context) {
	h.handle(c, "crypto", payment.CryptoSignatureHeader, h.payments.HandleCryptoWebhook)
}

func (h *PaymentWebhookHandler) handle(c *gin.Context, provider, header string, apply func(ctx context.Context, payload []byte, sig string) error) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil || len(body) == 0 {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	entry := log.WithFields(log.Fields{"provider": provider, "ip": c.ClientIP()})
	if err := apply(c.Request.Context(), body, c.GetHeader(header)); err != nil {
		switch {
		case errors.Is(err, payment.ErrInvalidSignature):
			entry.Warn("[webhook] invalid signature")
			fail(c, http.StatusBadRequest, "invalid signature")
		case errors.Is(err, payment.ErrInvalidPayload):
			entry.WithError(err).Warn("[webhook] malformed payload")
			fail(c, http.StatusBadRequest, "invalid payload")
		default:
			entry.WithError(err).Error("[webhook] apply failed")
			fail(c, http.StatusInternalServerError, "internal error")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "received": true})
}
