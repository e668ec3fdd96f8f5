// Package settings is the admin-editable runtime configuration. Values live in
// the system_settings table and are exposed to collaborators as a typed Settings.
package settings

import (
	"errors"
	"fmt"
	"time"

	"tokenguard/internal/domain"
	"tokenguard/internal/repository"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrUnknownKey   = errors.New("unknown setting")
	ErrUnknownGroup = errors.New("unknown settings group")
)

// LiveAddresses are the receiving addresses shown in the crypto payment modal.
type LiveAddresses struct {
	BTC       string `json:"btc"`
	ETH       string `json:"eth"`
	USDTERC20 string `json:"usdt_erc20"`
	USDTTRC20 string `json:"usdt_trc20"`
	BNB       string `json:"bnb"`
	SOL       string `json:"sol"`
}

// ForCurrency returns the live address for a pay currency code such as "usdttrc20".
func (a LiveAddresses) ForCurrency(currency string) string {
	switch currency {
	case "btc":
		return a.BTC
	case "eth":
		return a.ETH
	case "usdterc20", "usdt_erc20":
		return a.USDTERC20
	case "usdttrc20", "usdt_trc20":
		return a.USDTTRC20
	case "bnb", "bnbbsc":
		return a.BNB
	case "sol":
		return a.SOL
	}
	return ""
}

type Settings struct {
	WebhookURL          string  `json:"webhook_url"`
	APITimeout          int     `json:"api_timeout"`
	CacheDuration       int     `json:"cache_duration"`
	AutoPublish         bool    `json:"auto_publish"`
	PromotionsSidebar   bool    `json:"promotions_sidebar"`
	PaidMode            bool    `json:"paid_mode"`
	RecaptchaSiteKey    string  `json:"recaptcha_site_key"`
	RecaptchaSecretKey  string  `json:"recaptcha_secret_key"`
	MinWalletBalanceETH float64 `json:"min_wallet_balance_eth"`
	MinWalletBalanceUSD float64 `json:"min_wallet_balance_usd"`

	StripePublishableKey string        `json:"stripe_publishable_key"`
	StripeSecretKey      string        `json:"stripe_secret_key"`
	StripeWebhookSecret  string        `json:"stripe_webhook_secret"`
	CryptoGatewayAPIKey  string        `json:"crypto_gateway_api_key"`
	CryptoGatewayIPN     string        `json:"crypto_gateway_ipn_secret"`
	LiveAddresses        LiveAddresses `json:"live_addresses"`
	WalletAddressETH     string        `json:"wallet_address_eth"`
	WalletAddressBTC     string        `json:"wallet_address_btc"`
	PaymentTestMode      bool          `json:"payment_test_mode"`

	CreditsPerDollar     decimal.Decimal `json:"credits_per_dollar"`
	StandardAnalysisCost int64           `json:"standard_analysis_cost"`
	PsychoAnalysisCost   int64           `json:"psycho_analysis_cost"`
	FreeCreditsOnSignup  int64           `json:"free_credits_on_signup"`
}

func (s *Settings) APITimeoutDuration() time.Duration {
	return time.Duration(s.APITimeout) * time.Second
}

func (s *Settings) CacheTTL() time.Duration {
	return time.Duration(s.CacheDuration) * time.Hour
}

// AnalysisCost returns the credit price of one analysis in mode.
func (s *Settings) AnalysisCost(mode string) int64 {
	if mode == domain.ModePsycho {
		return s.PsychoAnalysisCost
	}
	return s.StandardAnalysisCost
}

// Masked returns a copy safe to send to the admin UI.
func (s *Settings) Masked() *Settings {
	out := *s
	for _, p := range []*string{&out.RecaptchaSecretKey, &out.StripeSecretKey, &out.StripeWebhookSecret, &out.CryptoGatewayAPIKey, &out.CryptoGatewayIPN} {
		if *p != "" {
			*p = SecretMask
		}
	}
	return &out
}

// MissingAddresses names the live receiving addresses that are not configured.
func MissingAddresses(s *Settings) []string {
	var missing []string
	check := []struct {
		key, val string
	}{
		{KeyLiveAddressBTC, s.LiveAddresses.BTC},
		{KeyLiveAddressETH, s.LiveAddresses.ETH},
		{KeyLiveAddressUSDTERC20, s.LiveAddresses.USDTERC20},
		{KeyLiveAddressUSDTTRC20, s.LiveAddresses.USDTTRC20},
		{KeyLiveAddressBNB, s.LiveAddresses.BNB},
		{KeyLiveAddressSOL, s.LiveAddresses.SOL},
	}
	for _, c := range check {
		if c.val == "" {
			missing = append(missing, c.key)
		}
	}
	return missing
}

func fromValues(v values) *Settings {
	return &Settings{
		WebhookURL:          v.str(KeyWebhookURL),
		APITimeout:          int(v.int(KeyAPITimeout)),
		CacheDuration:       int(v.int(KeyCacheDuration)),
		AutoPublish:         v.bool(KeyAutoPublish),
		PromotionsSidebar:   v.bool(KeyPromotionsSidebar),
		PaidMode:            v.bool(KeyPaidMode),
		RecaptchaSiteKey:    v.str(KeyRecaptchaSiteKey),
		RecaptchaSecretKey:  v.str(KeyRecaptchaSecretKey),
		MinWalletBalanceETH: v.float(KeyMinWalletBalanceETH),
		MinWalletBalanceUSD: v.float(KeyMinWalletBalanceUSD),

		StripePublishableKey: v.str(KeyStripePublishableKey),
		StripeSecretKey:      v.str(KeyStripeSecretKey),
		StripeWebhookSecret:  v.str(KeyStripeWebhookSecret),
		CryptoGatewayAPIKey:  v.str(KeyCryptoGatewayAPIKey),
		CryptoGatewayIPN:     v.str(KeyCryptoGatewayIPN),
		LiveAddresses: LiveAddresses{
			BTC:       v.str(KeyLiveAddressBTC),
			ETH:       v.str(KeyLiveAddressETH),
			USDTERC20: v.str(KeyLiveAddressUSDTERC20),
			USDTTRC20: v.str(KeyLiveAddressUSDTTRC20),
			BNB:       v.str(KeyLiveAddressBNB),
			SOL:       v.str(KeyLiveAddressSOL),
		},
		WalletAddressETH: v.str(KeyWalletAddressETH),
		WalletAddressBTC: v.str(KeyWalletAddressBTC),
		// Sandbox payments are never allowed, whatever is stored.
		PaymentTestMode: false,

		CreditsPerDollar:     v.decimal(KeyCreditsPerDollar),
		StandardAnalysisCost: v.int(KeyStandardAnalysisCost),
		PsychoAnalysisCost:   v.int(KeyPsychoAnalysisCost),
		FreeCreditsOnSignup:  v.int(KeyFreeCreditsOnSignup),
	}
}

// Provider is the read side collaborators depend on.
type Provider interface {
	Load() (*Settings, error)
}

type Service struct {
	repo *repository.SettingRepository
}

func NewService(repo *repository.SettingRepository) *Service {
	return &Service{repo: repo}
}

// Get returns the stored value for key, or its default.
func (s *Service) Get(key string) (string, error) {
	f, ok := fieldsByKey[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	v, err := s.repo.Get(key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return f.def, nil
	}
	return v, err
}

// Set normalizes and stores a single value.
func (s *Service) Set(key, value string) error {
	f, ok := fieldsByKey[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if key == KeyPaymentTestMode {
		value = "0"
	}
	return s.repo.Set(key, f.normalize(value))
}

func (s *Service) Load() (*Settings, error) {
	rows, err := s.repo.GetAll()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	v := make(values, len(rows))
	for _, r := range rows {
		v[r.Key] = r.Value
	}
	return fromValues(v), nil
}

// Save stores the submitted form for one group. Unknown keys are ignored,
// checkboxes of the group absent from the form become false, and secrets
// submitted as SecretMask keep their stored value.
func (s *Service) Save(group string, form map[string]string) (*Settings, error) {
	out := make(map[string]string)
	seen := false
	for _, f := range fields {
		if f.group != group {
			continue
		}
		seen = true
		raw, present := form[f.key]
		switch {
		case f.key == KeyPaymentTestMode:
			out[f.key] = "0"
		case f.kind == kindBool:
			out[f.key] = f.normalize(raw)
		case !present:
			continue
		case f.kind == kindSecret && raw == SecretMask:
			continue
		default:
			out[f.key] = f.normalize(raw)
		}
	}
	if !seen {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, group)
	}
	if err := s.repo.SetMany(out); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	log.WithFields(log.Fields{"group": group, "keys": len(out)}).Info("[settings] saved")
	return s.Load()
}

func (s *Service) SavePaymentSettings(form map[string]string) (*Settings, error) {
	return s.Save(GroupPayment, form)
}

func (s *Service) SaveCreditSettings(form map[string]string) (*Settings, error) {
	return s.Save(GroupCredits, form)
}

func (s *Service) TogglePaidMode(enabled bool) error {
	v := "0"
	if enabled {
		v = "1"
	}
	return s.repo.Set(KeyPaidMode, v)
}

// SeedDefaults writes the default of every key that has never been stored.
func (s *Service) SeedDefaults() error {
	defaults := make(map[string]string, len(fields))
	for _, f := range fields {
		defaults[f.key] = f.def
	}
	return s.repo.SeedDefaults(defaults)
}
