package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// StripeSignatureTolerance bounds the age of a signed webhook.
const StripeSignatureTolerance = 5 * time.Minute

// StripeProvider creates hosted Checkout sessions through the Stripe REST API.
type StripeProvider struct {
	BaseURL   string
	SecretKey string
	client    *http.Client
}

func NewStripeProvider(baseURL, secretKey string) *StripeProvider {
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &StripeProvider{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		SecretKey: secretKey,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type stripeSession struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expires_at"`
}

type stripeError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *StripeProvider) CreateCheckout(ctx context.Context, in CheckoutRequest) (*CheckoutResponse, error) {
	if p.SecretKey == "" {
		return nil, fmt.Errorf("stripe: secret key not configured")
	}
	cents := in.AmountUSD.Shift(2).Round(0).IntPart()
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", in.SuccessURL)
	form.Set("cancel_url", in.CancelURL)
	form.Set("client_reference_id", in.Reference)
	form.Set("metadata[reference]", in.Reference)
	form.Set("metadata[tokens]", strconv.FormatInt(in.Tokens, 10))
	if in.CustomerEmail != "" {
		form.Set("customer_email", in.CustomerEmail)
	}
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", "usd")
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(cents, 10))
	form.Set("line_items[0][price_data][product_data][name]", in.Description)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Idempotency-Key", in.Reference)
	req.SetBasicAuth(p.SecretKey, "")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		var se stripeError
		_ = json.Unmarshal(body, &se)
		log.WithFields(log.Fields{"status": resp.StatusCode, "reference": in.Reference}).Warn("[stripe] checkout session rejected")
		return nil, fmt.Errorf("stripe checkout: %d %s", resp.StatusCode, se.Error.Message)
	}
	var out stripeSession
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("stripe checkout: decode: %w", err)
	}
	if out.URL == "" {
		return nil, fmt.Errorf("stripe checkout: empty session url")
	}
	res := &CheckoutResponse{ProviderRef: out.ID, CheckoutURL: out.URL}
	if out.ExpiresAt > 0 {
		res.ExpiresAt = time.Unix(out.ExpiresAt, 0)
	}
	return res, nil
}

// VerifyStripeSignature checks a Stripe-Signature header ("t=...,v1=...")
// against payload signed with the endpoint secret.
func VerifyStripeSignature(payload []byte, header, secret string, now time.Time) error {
	if secret == "" || header == "" {
		return ErrInvalidSignature
	}
	var (
		ts     int64
		hashes []string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, _ = strconv.ParseInt(v, 10, 64)
		case "v1":
			hashes = append(hashes, v)
		}
	}
	if ts == 0 || len(hashes) == 0 {
		return ErrInvalidSignature
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > StripeSignatureTolerance || age < -StripeSignatureTolerance {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)
	for _, h := range hashes {
		got, err := hex.DecodeString(h)
		if err == nil && hmac.Equal(got, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string            `json:"id"`
			ClientReferenceID string            `json:"client_reference_id"`
			PaymentStatus     string            `json:"payment_status"`
			Metadata          map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ParseStripeEvent maps a Checkout webhook to an Event. Unrelated events yield OutcomeIgnore.
func ParseStripeEvent(payload []byte) (*Event, error) {
	var e stripeEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("%w: stripe event: %v", ErrInvalidPayload, err)
	}
	obj := e.Data.Object
	ev := &Event{
		Reference:   obj.ClientReferenceID,
		ProviderRef: obj.ID,
		Status:      e.Type,
	}
	if ev.Reference == "" {
		ev.Reference = obj.Metadata["reference"]
	}
	switch e.Type {
	case "checkout.session.completed":
		// Delayed methods complete the session before funds arrive.
		if obj.PaymentStatus == "paid" || obj.PaymentStatus == "no_payment_required" {
			ev.Outcome = OutcomeCompleted
		}
	case "checkout.session.async_payment_succeeded":
		ev.Outcome = OutcomeCompleted
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		ev.Outcome = OutcomeFailed
	}
	return ev, nil
}
