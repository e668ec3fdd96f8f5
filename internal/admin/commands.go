// Package admin is the single entry point for admin mutations: an enumerated
// set of actions, each with a typed payload validated before dispatch.
package admin

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tokenguard/internal/common"
	"tokenguard/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrInvalidPayload = errors.New("invalid payload")
)

type Action string

const (
	ActionTestWebhook             Action = "test_webhook"
	ActionSaveSettings            Action = "save_settings"
	ActionTogglePaidMode          Action = "toggle_paid_mode"
	ActionClearCache              Action = "clear_cache"
	ActionDashboardStats          Action = "dashboard_stats"
	ActionAddPromotion            Action = "add_promotion"
	ActionUpdatePromotion         Action = "update_promotion"
	ActionApprovePromotion        Action = "approve_promotion"
	ActionCancelPromotion         Action = "cancel_promotion"
	ActionUpdateCreditSettings    Action = "update_credit_settings"
	ActionAdjustCredits           Action = "adjust_credits"
	ActionSendWebhookTest         Action = "send_webhook_test"
	ActionSavePaymentSettings     Action = "save_payment_settings"
	ActionUpdateTransactionStatus Action = "update_transaction_status"
)

// Actions lists every accepted action.
var Actions = []Action{
	ActionTestWebhook, ActionSaveSettings, ActionTogglePaidMode, ActionClearCache,
	ActionDashboardStats, ActionAddPromotion, ActionUpdatePromotion, ActionApprovePromotion,
	ActionCancelPromotion, ActionUpdateCreditSettings, ActionAdjustCredits, ActionSendWebhookTest,
	ActionSavePaymentSettings, ActionUpdateTransactionStatus,
}

// Request is the body of POST /api/v1/admin/actions.
type Request struct {
	Action  Action          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type payload interface {
	Validate() error
}

// FormValues accepts any JSON scalar per key and keeps it as a form string.
// true/false become "1"/"0" so checkbox coercion sees the usual values.
type FormValues map[string]string

func (f *FormValues) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out := make(FormValues, len(raw))
	for k, v := range raw {
		switch x := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = x
		case bool:
			if x {
				out[k] = "1"
			} else {
				out[k] = "0"
			}
		case json.Number:
			out[k] = x.String()
		default:
			return fmt.Errorf("field %q must be a scalar", k)
		}
	}
	*f = out
	return nil
}

type TestWebhookPayload struct {
	// URL defaults to the configured webhook.
	URL string `json:"url"`
}

func (p *TestWebhookPayload) Validate() error {
	return validOptionalURL(p.URL)
}

type SaveSettingsPayload struct {
	Settings FormValues `json:"settings"`
}

func (p *SaveSettingsPayload) Validate() error {
	if p.Settings == nil {
		return errors.New("settings is required")
	}
	return nil
}

type TogglePaidModePayload struct {
	Enabled *bool `json:"enabled"`
}

func (p *TogglePaidModePayload) Validate() error {
	if p.Enabled == nil {
		return errors.New("enabled is required")
	}
	return nil
}

type emptyPayload struct{}

func (emptyPayload) Validate() error { return nil }

type PromotionPayload struct {
	TokenName       string          `json:"token_name"`
	TokenSymbol     string          `json:"token_symbol"`
	ContractAddress string          `json:"contract_address"`
	Chain           string          `json:"chain"`
	LogoURL         string          `json:"logo_url"`
	WebsiteURL      string          `json:"website_url"`
	Description     string          `json:"description"`
	StartDate       Date            `json:"start_date"`
	EndDate         Date            `json:"end_date"`
	Cost            decimal.Decimal `json:"cost"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
}

func (p *PromotionPayload) Validate() error {
	switch {
	case strings.TrimSpace(p.TokenName) == "":
		return errors.New("token_name is required")
	case p.StartDate.IsZero() || p.EndDate.IsZero():
		return errors.New("start_date and end_date are required")
	case p.Chain != "" && !domain.Chains[p.Chain]:
		return fmt.Errorf("unsupported chain %q", p.Chain)
	}
	if err := validOptionalURL(p.LogoURL); err != nil {
		return err
	}
	return validOptionalURL(p.WebsiteURL)
}

type UpdatePromotionPayload struct {
	ID uint `json:"id"`
	PromotionPayload
}

func (p *UpdatePromotionPayload) Validate() error {
	if p.ID == 0 {
		return errors.New("id is required")
	}
	return p.PromotionPayload.Validate()
}

type PromotionIDPayload struct {
	ID uint `json:"id"`
}

func (p *PromotionIDPayload) Validate() error {
	if p.ID == 0 {
		return errors.New("id is required")
	}
	return nil
}

type AdjustCreditsPayload struct {
	UserID uint   `json:"user_id"`
	Type   string `json:"type"`
	Amount *int64 `json:"amount"`
	Reason string `json:"reason"`
}

func (p *AdjustCreditsPayload) Validate() error {
	switch {
	case p.UserID == 0:
		return errors.New("user_id is required")
	case p.Amount == nil:
		return errors.New("amount is required")
	case *p.Amount < 0:
		return errors.New("amount must not be negative")
	case *p.Amount > domain.MaxBalance:
		return fmt.Errorf("amount must not exceed %d", domain.MaxBalance)
	}
	switch p.Type {
	case domain.AdjustAdd, domain.AdjustSubtract, domain.AdjustSet:
		return nil
	}
	return fmt.Errorf("type must be add, subtract or set, got %q", p.Type)
}

type SendWebhookTestPayload struct {
	// URL defaults to the configured webhook.
	URL     string                 `json:"url"`
	Message string                 `json:"message"`
	Payload map[string]interface{} `json:"payload"`
}

func (p *SendWebhookTestPayload) Validate() error {
	return validOptionalURL(p.URL)
}

type UpdateTransactionStatusPayload struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Note      string `json:"note"`
}

func (p *UpdateTransactionStatusPayload) Validate() error {
	if strings.TrimSpace(p.Reference) == "" {
		return errors.New("reference is required")
	}
	if p.Status != domain.TxStatusCompleted && p.Status != domain.TxStatusFailed {
		return fmt.Errorf("status must be %s or %s", domain.TxStatusCompleted, domain.TxStatusFailed)
	}
	return nil
}

func validOptionalURL(u string) error {
	if strings.TrimSpace(u) != "" && common.SanitizeURL(u) == "" {
		return fmt.Errorf("%q is not an http(s) URL", u)
	}
	return nil
}

// Date accepts "2006-01-02", RFC 3339 or a unix timestamp.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		d.Time = t
		return nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		d.Time = t
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		d.Time = time.Unix(n, 0)
		return nil
	}
	return fmt.Errorf("invalid date %q", s)
}

// endOfDay widens a date-only end to the last second of that day.
func endOfDay(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Add(24*time.Hour - time.Second)
	}
	return t
}

// decode parses raw into p strictly and validates it.
func decode(raw json.RawMessage, p payload) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		raw = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
