package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tokenguard/config"
	"tokenguard/internal/domain"
	"tokenguard/internal/models"
	"tokenguard/internal/repository"
	"tokenguard/internal/settings"
	"tokenguard/pkg/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrInvalidPurchase       = errors.New("invalid purchase amount")
	ErrProviderNotConfigured = errors.New("payment method is not configured")
	ErrUnsupportedCurrency   = errors.New("unsupported pay currency")
	ErrInvalidStatusChange   = errors.New("status must be completed or failed")
	ErrCheckoutFailed        = errors.New("payment provider error")
)

// CryptoCurrencies are the pay currencies offered in the payment modal.
var CryptoCurrencies = []string{"btc", "eth", "usdterc20", "usdttrc20", "bnbbsc", "sol"}

func supportedCurrency(c string) bool {
	for _, s := range CryptoCurrencies {
		if s == c {
			return true
		}
	}
	return false
}

type Checkout struct {
	Reference   string          `json:"reference"`
	Method      string          `json:"method"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	Tokens      int64           `json:"tokens"`
	CheckoutURL string          `json:"checkout_url,omitempty"`
	PayCurrency string          `json:"pay_currency,omitempty"`
	PayAddress  string          `json:"pay_address,omitempty"`
	Manual      bool            `json:"manual"`
}

type PaymentService struct {
	cfg      *config.Config
	settings settings.Provider
	txRepo   *repository.TransactionRepository
	ledger   *LedgerService
	audit    *repository.AuditLogRepository

	newStripe func(secretKey string) payment.Provider
	newCrypto func(apiKey string) payment.Provider
	now       func() time.Time
}

func NewPaymentService(cfg *config.Config, sp settings.Provider, txRepo *repository.TransactionRepository, ledger *LedgerService, audit *repository.AuditLogRepository) *PaymentService {
	return &PaymentService{
		cfg:      cfg,
		settings: sp,
		txRepo:   txRepo,
		ledger:   ledger,
		audit:    audit,
		newStripe: func(key string) payment.Provider {
			return payment.NewStripeProvider(cfg.Payment.StripeAPIBase, key)
		},
		newCrypto: func(key string) payment.Provider {
			return payment.NewCryptoGatewayProvider(cfg.Payment.CryptoGatewayAPIBase, key)
		},
		now: time.Now,
	}
}

// Quote converts a USD amount to credits: floor(usd * credits_per_dollar).
func (s *PaymentService) Quote(usd decimal.Decimal) (int64, error) {
	lo := decimal.NewFromInt(s.cfg.Payment.MinPurchaseUSD)
	hi := decimal.NewFromInt(s.cfg.Payment.MaxPurchaseUSD)
	if usd.LessThan(lo) || usd.GreaterThan(hi) || usd.Exponent() < -2 {
		return 0, fmt.Errorf("%w: must be between %s and %s USD with at most 2 decimals", ErrInvalidPurchase, lo, hi)
	}
	cfg, err := s.settings.Load()
	if err != nil {
		return 0, err
	}
	tokens := usd.Mul(cfg.CreditsPerDollar).Floor().IntPart()
	if tokens <= 0 {
		return 0, ErrInvalidPurchase
	}
	return tokens, nil
}

func (s *PaymentService) CreateStripeCheckout(ctx context.Context, user *models.User, usd decimal.Decimal) (*Checkout, error) {
	cfg, err := s.settings.Load()
	if err != nil {
		return nil, err
	}
	if cfg.StripeSecretKey == "" {
		return nil, ErrProviderNotConfigured
	}
	tokens, err := s.Quote(usd)
	if err != nil {
		return nil, err
	}
	t, err := s.createPending(user.ID, usd, tokens, domain.MethodStripe, "USD")
	if err != nil {
		return nil, err
	}
	res, err := s.newStripe(cfg.StripeSecretKey).CreateCheckout(ctx, payment.CheckoutRequest{
		Reference:     t.Reference,
		AmountUSD:     usd,
		Tokens:        tokens,
		CustomerEmail: user.Email,
		Description:   fmt.Sprintf("%d analysis credits", tokens),
		SuccessURL:    s.returnURL("success", t.Reference),
		CancelURL:     s.returnURL("cancel", t.Reference),
	})
	if err != nil {
		return nil, s.abort(ctx, t, err)
	}
	t.ProviderRef = res.ProviderRef
	if err := s.txRepo.Update(t); err != nil {
		return nil, err
	}
	return &Checkout{Reference: t.Reference, Method: t.Method, AmountUSD: usd, Tokens: tokens, CheckoutURL: res.CheckoutURL}, nil
}

// CreateCryptoInvoice opens a gateway invoice, or falls back to the configured
// live address for a manual transfer when no gateway key is set.
func (s *PaymentService) CreateCryptoInvoice(ctx context.Context, user *models.User, usd decimal.Decimal, currency string) (*Checkout, error) {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if !supportedCurrency(currency) {
		return nil, ErrUnsupportedCurrency
	}
	cfg, err := s.settings.Load()
	if err != nil {
		return nil, err
	}
	manualAddress := cfg.LiveAddresses.ForCurrency(currency)
	if cfg.CryptoGatewayAPIKey == "" && manualAddress == "" {
		return nil, ErrProviderNotConfigured
	}
	tokens, err := s.Quote(usd)
	if err != nil {
		return nil, err
	}
	t, err := s.createPending(user.ID, usd, tokens, domain.MethodCrypto, strings.ToUpper(currency))
	if err != nil {
		return nil, err
	}
	out := &Checkout{Reference: t.Reference, Method: t.Method, AmountUSD: usd, Tokens: tokens, PayCurrency: currency}
	if cfg.CryptoGatewayAPIKey == "" {
		out.Manual = true
		out.PayAddress = manualAddress
		return out, nil
	}
	res, err := s.newCrypto(cfg.CryptoGatewayAPIKey).CreateCheckout(ctx, payment.CheckoutRequest{
		Reference:   t.Reference,
		AmountUSD:   usd,
		Tokens:      tokens,
		PayCurrency: currency,
		Description: fmt.Sprintf("%d analysis credits", tokens),
		SuccessURL:  s.returnURL("success", t.Reference),
		CancelURL:   s.returnURL("cancel", t.Reference),
		CallbackURL: s.cfg.Server.PublicBaseURL + "/api/v1/webhooks/crypto",
	})
	if err != nil {
		return nil, s.abort(ctx, t, err)
	}
	t.ProviderRef = res.ProviderRef
	if err := s.txRepo.Update(t); err != nil {
		return nil, err
	}
	out.CheckoutURL = res.CheckoutURL
	return out, nil
}

// HandleStripeWebhook verifies and applies a Stripe event.
func (s *PaymentService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error {
	cfg, err := s.settings.Load()
	if err != nil {
		return err
	}
	if err := payment.VerifyStripeSignature(payload, signature, cfg.StripeWebhookSecret, s.now()); err != nil {
		return err
	}
	ev, err := payment.ParseStripeEvent(payload)
	if err != nil {
		return err
	}
	return s.apply(ctx, ev, domain.MethodStripe)
}

// HandleCryptoWebhook verifies and applies a crypto gateway IPN callback.
func (s *PaymentService) HandleCryptoWebhook(ctx context.Context, payload []byte, signature string) error {
	cfg, err := s.settings.Load()
	if err != nil {
		return err
	}
	if err := payment.VerifyCryptoSignature(payload, signature, cfg.CryptoGatewayIPN); err != nil {
		return err
	}
	ev, err := payment.ParseCryptoEvent(payload)
	if err != nil {
		return err
	}
	return s.apply(ctx, ev, domain.MethodCrypto)
}

func (s *PaymentService) apply(ctx context.Context, ev *payment.Event, method string) error {
	if ev.Outcome == payment.OutcomeIgnore || ev.Reference == "" {
		return nil
	}
	t, err := s.txRepo.GetByReference(ev.Reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.WithField("reference", ev.Reference).Warn("[payment] webhook for unknown reference")
			return nil
		}
		return err
	}
	if t.Method != method {
		log.WithFields(log.Fields{"reference": ev.Reference, "method": t.Method, "webhook": method}).Warn("[payment] webhook method mismatch")
		return nil
	}
	switch ev.Outcome {
	case payment.OutcomeCompleted:
		_, _, err = s.ledger.SettlePurchase(ctx, ev.Reference, ev.ProviderRef)
	case payment.OutcomeFailed:
		_, _, err = s.ledger.FailPurchase(ctx, ev.Reference, ev.Status)
	}
	return err
}

// UpdateTransactionStatus lets an admin settle or fail a pending purchase by hand,
// e.g. after checking a manual crypto transfer on chain.
func (s *PaymentService) UpdateTransactionStatus(ctx context.Context, actor Actor, reference, status, note string) (*models.Transaction, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	var (
		t       *models.Transaction
		changed bool
		err     error
	)
	switch status {
	case domain.TxStatusCompleted:
		t, changed, err = s.ledger.SettlePurchase(ctx, reference, "")
	case domain.TxStatusFailed:
		t, changed, err = s.ledger.FailPurchase(ctx, reference, note)
	default:
		return nil, ErrInvalidStatusChange
	}
	if err != nil {
		return nil, err
	}
	if changed {
		recordAudit(s.audit, actor, "transaction."+status, "transaction", reference, map[string]string{"note": note})
	}
	return t, nil
}

func (s *PaymentService) List(f repository.TransactionFilter, page, limit int) ([]models.Transaction, int64, error) {
	return s.txRepo.List(f, page, limit)
}

func (s *PaymentService) Export(f repository.TransactionFilter) ([]models.Transaction, error) {
	return s.txRepo.All(f)
}

func (s *PaymentService) UserTransactions(userID uint, limit, offset int) ([]models.Transaction, error) {
	return s.txRepo.ListByUser(userID, limit, offset)
}

func (s *PaymentService) createPending(userID uint, usd decimal.Decimal, tokens int64, method, currency string) (*models.Transaction, error) {
	t := &models.Transaction{
		UserID:    userID,
		Reference: "tg_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Amount:    usd,
		Currency:  currency,
		Tokens:    tokens,
		Method:    method,
		Status:    domain.TxStatusPending,
	}
	if err := s.txRepo.Create(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *PaymentService) abort(ctx context.Context, t *models.Transaction, cause error) error {
	log.WithError(cause).WithField("reference", t.Reference).Warn("[payment] checkout creation failed")
	if _, _, err := s.ledger.FailPurchase(ctx, t.Reference, "checkout creation failed"); err != nil {
		log.WithError(err).Warn("[payment] mark aborted checkout failed")
	}
	return fmt.Errorf("%w: %v", ErrCheckoutFailed, cause)
}

func (s *PaymentService) returnURL(kind, reference string) string {
	return fmt.Sprintf("%s/payment/%s?ref=%s", s.cfg.Server.PublicBaseURL, kind, reference)
}
