package settings

import (
	"strconv"
	"strings"

	"tokenguard/internal/common"

	"github.com/shopspring/decimal"
)

// Setting keys.
const (
	KeyWebhookURL          = "webhook_url"
	KeyAPITimeout          = "api_timeout"
	KeyCacheDuration       = "cache_duration"
	KeyAutoPublish         = "auto_publish"
	KeyPromotionsSidebar   = "promotions_sidebar"
	KeyPaidMode            = "paid_mode"
	KeyRecaptchaSiteKey    = "recaptcha_site_key"
	KeyRecaptchaSecretKey  = "recaptcha_secret_key"
	KeyMinWalletBalanceETH = "min_wallet_balance_eth"
	KeyMinWalletBalanceUSD = "min_wallet_balance_usd"

	KeyStripePublishableKey = "stripe_publishable_key"
	KeyStripeSecretKey      = "stripe_secret_key"
	KeyStripeWebhookSecret  = "stripe_webhook_secret"
	KeyCryptoGatewayAPIKey  = "crypto_gateway_api_key"
	KeyCryptoGatewayIPN     = "crypto_gateway_ipn_secret"
	KeyLiveAddressBTC       = "live_address_btc"
	KeyLiveAddressETH       = "live_address_eth"
	KeyLiveAddressUSDTERC20 = "live_address_usdt_erc20"
	KeyLiveAddressUSDTTRC20 = "live_address_usdt_trc20"
	KeyLiveAddressBNB       = "live_address_bnb"
	KeyLiveAddressSOL       = "live_address_sol"
	KeyWalletAddressETH     = "wallet_address_eth"
	KeyWalletAddressBTC     = "wallet_address_btc"
	KeyPaymentTestMode      = "payment_test_mode"

	KeyCreditsPerDollar     = "credits_per_dollar"
	KeyStandardAnalysisCost = "standard_analysis_cost"
	KeyPsychoAnalysisCost   = "psycho_analysis_cost"
	KeyFreeCreditsOnSignup  = "free_credits_on_signup"
)

// Groups are saved together; a checkbox of the group missing from the form is stored as false.
const (
	GroupGeneral = "general"
	GroupPayment = "payment"
	GroupCredits = "credits"
	GroupMode    = "mode"
)

type kind int

const (
	kindText kind = iota
	kindSecret
	kindURL
	kindAddress
	kindBool
	kindInt
	kindFloat
	kindDecimal
)

type field struct {
	key      string
	kind     kind
	group    string
	def      string
	min, max int64
}

var fields = []field{
	{key: KeyWebhookURL, kind: kindURL, group: GroupGeneral},
	{key: KeyAPITimeout, kind: kindInt, group: GroupGeneral, def: "120", min: 10, max: 600},
	{key: KeyCacheDuration, kind: kindInt, group: GroupGeneral, def: "24", min: 1, max: 168},
	{key: KeyAutoPublish, kind: kindBool, group: GroupGeneral, def: "0"},
	{key: KeyPromotionsSidebar, kind: kindBool, group: GroupGeneral, def: "1"},
	{key: KeyRecaptchaSiteKey, kind: kindText, group: GroupGeneral},
	{key: KeyRecaptchaSecretKey, kind: kindSecret, group: GroupGeneral},
	{key: KeyMinWalletBalanceETH, kind: kindFloat, group: GroupGeneral, def: "0"},
	{key: KeyMinWalletBalanceUSD, kind: kindFloat, group: GroupGeneral, def: "0"},

	{key: KeyStripePublishableKey, kind: kindText, group: GroupPayment},
	{key: KeyStripeSecretKey, kind: kindSecret, group: GroupPayment},
	{key: KeyStripeWebhookSecret, kind: kindSecret, group: GroupPayment},
	{key: KeyCryptoGatewayAPIKey, kind: kindSecret, group: GroupPayment},
	{key: KeyCryptoGatewayIPN, kind: kindSecret, group: GroupPayment},
	{key: KeyLiveAddressBTC, kind: kindAddress, group: GroupPayment},
	{key: KeyLiveAddressETH, kind: kindAddress, group: GroupPayment},
	{key: KeyLiveAddressUSDTERC20, kind: kindAddress, group: GroupPayment},
	{key: KeyLiveAddressUSDTTRC20, kind: kindAddress, group: GroupPayment},
	{key: KeyLiveAddressBNB, kind: kindAddress, group: GroupPayment},
	{key: KeyLiveAddressSOL, kind: kindAddress, group: GroupPayment},
	{key: KeyWalletAddressETH, kind: kindAddress, group: GroupPayment},
	{key: KeyWalletAddressBTC, kind: kindAddress, group: GroupPayment},
	{key: KeyPaymentTestMode, kind: kindBool, group: GroupPayment, def: "0"},

	{key: KeyCreditsPerDollar, kind: kindDecimal, group: GroupCredits, def: "10"},
	{key: KeyStandardAnalysisCost, kind: kindInt, group: GroupCredits, def: "1", min: 0, max: 1000},
	{key: KeyPsychoAnalysisCost, kind: kindInt, group: GroupCredits, def: "2", min: 0, max: 1000},
	{key: KeyFreeCreditsOnSignup, kind: kindInt, group: GroupCredits, def: "3", min: 0, max: 1000},

	{key: KeyPaidMode, kind: kindBool, group: GroupMode, def: "0"},
}

var fieldsByKey = func() map[string]field {
	m := make(map[string]field, len(fields))
	for _, f := range fields {
		m[f.key] = f
	}
	return m
}()

// SecretMask is returned in place of secret values; saving it back leaves the secret unchanged.
const SecretMask = "********"

func isChecked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "on", "true", "yes":
		return true
	}
	return false
}

// normalize coerces a submitted form value into its stored representation.
func (f field) normalize(raw string) string {
	switch f.kind {
	case kindBool:
		if isChecked(raw) {
			return "1"
		}
		return "0"
	case kindInt:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			// Non-numeric input is treated as zero, then clamped.
			n = 0
		}
		return strconv.FormatInt(f.clamp(n), 10)
	case kindFloat:
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || v < 0 {
			v = 0
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case kindDecimal:
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil || !d.IsPositive() {
			return f.def
		}
		return d.String()
	case kindURL:
		return common.SanitizeURL(raw)
	case kindAddress:
		return common.SanitizeAddress(raw)
	default:
		return common.SanitizeText(raw)
	}
}

func (f field) clamp(n int64) int64 {
	if f.max == 0 {
		return n
	}
	if n < f.min {
		return f.min
	}
	if n > f.max {
		return f.max
	}
	return n
}

// values is the raw key/value view with defaults applied on read.
type values map[string]string

func (v values) raw(key string) string {
	if s, ok := v[key]; ok {
		return s
	}
	return fieldsByKey[key].def
}

func (v values) str(key string) string { return v.raw(key) }

func (v values) bool(key string) bool { return isChecked(v.raw(key)) }

func (v values) int(key string) int64 {
	f := fieldsByKey[key]
	n, err := strconv.ParseInt(v.raw(key), 10, 64)
	if err != nil {
		n, _ = strconv.ParseInt(f.def, 10, 64)
	}
	return f.clamp(n)
}

func (v values) float(key string) float64 {
	x, err := strconv.ParseFloat(v.raw(key), 64)
	if err != nil || x < 0 {
		return 0
	}
	return x
}

func (v values) decimal(key string) decimal.Decimal {
	d, err := decimal.NewFromString(v.raw(key))
	if err != nil || !d.IsPositive() {
		return decimal.RequireFromString(fieldsByKey[key].def)
	}
	return d
}
