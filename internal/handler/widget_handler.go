package handler

import (
	"sort"

	"tokenguard/internal/domain"
	"tokenguard/internal/service"
	"tokenguard/internal/settings"

	"github.com/gin-gonic/gin"
)

// WidgetHandler serves the public configuration the chat widget boots with.
type WidgetHandler struct {
	settings settings.Provider
}

func NewWidgetHandler(sp settings.Provider) *WidgetHandler {
	return &WidgetHandler{settings: sp}
}

// Config handles GET /widget/config. Only public keys leave the server.
func (h *WidgetHandler) Config(c *gin.Context) {
	cfg, err := h.settings.Load()
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{
		"paid_mode":              cfg.PaidMode,
		"recaptcha_site_key":     cfg.RecaptchaSiteKey,
		"promotions_sidebar":     cfg.PromotionsSidebar,
		"stripe_publishable_key": cfg.StripePublishableKey,
		"stripe_enabled":         cfg.StripeSecretKey != "",
		"crypto_gateway_enabled": cfg.CryptoGatewayAPIKey != "",
		"crypto_currencies":      service.CryptoCurrencies,
		"live_addresses":         cfg.LiveAddresses,
		"credits_per_dollar":     cfg.CreditsPerDollar,
		"costs": gin.H{
			domain.ModeStandard: cfg.StandardAnalysisCost,
			domain.ModePsycho:   cfg.PsychoAnalysisCost,
		},
		"free_credits_on_signup": cfg.FreeCreditsOnSignup,
		"chains":                 chainList(),
	})
}

func chainList() []string {
	out := make([]string, 0, len(domain.Chains))
	for ch := range domain.Chains {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}
