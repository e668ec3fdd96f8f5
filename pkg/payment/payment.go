// Package payment holds the HTTP clients of the hosted payment providers.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)

type CheckoutRequest struct {
	Reference     string // our transaction reference, echoed back by the provider
	AmountUSD     decimal.Decimal
	Tokens        int64
	PayCurrency   string // crypto only, e.g. "btc" or "usdttrc20"
	CustomerEmail string
	Description   string
	SuccessURL    string
	CancelURL     string
	CallbackURL   string
}

type CheckoutResponse struct {
	ProviderRef string
	CheckoutURL string
	ExpiresAt   time.Time
}

type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error)
}

// Outcome is the normalized result of a provider webhook.
type Outcome int

const (
	OutcomeIgnore Outcome = iota
	OutcomeCompleted
	OutcomeFailed
)

// Event is a verified provider webhook reduced to what the ledger needs.
type Event struct {
	Reference   string
	ProviderRef string
	Outcome     Outcome
	Status      string
}
