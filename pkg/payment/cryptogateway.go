package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// CryptoSignatureHeader carries the hex HMAC-SHA512 of an IPN callback.
const CryptoSignatureHeader = "x-nowpayments-sig"

// CryptoGatewayProvider creates hosted crypto invoices (NOWPayments API).
type CryptoGatewayProvider struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

func NewCryptoGatewayProvider(baseURL, apiKey string) *CryptoGatewayProvider {
	if baseURL == "" {
		baseURL = "https://api.nowpayments.io"
	}
	return &CryptoGatewayProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type invoiceReq struct {
	PriceAmount      json.Number `json:"price_amount"`
	PriceCurrency    string      `json:"price_currency"`
	PayCurrency      string      `json:"pay_currency,omitempty"`
	OrderID          string      `json:"order_id"`
	OrderDescription string      `json:"order_description"`
	IPNCallbackURL   string      `json:"ipn_callback_url"`
	SuccessURL       string      `json:"success_url"`
	CancelURL        string      `json:"cancel_url"`
}

// looseString accepts a JSON string or number.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	*s = looseString(strings.Trim(string(b), `"`))
	return nil
}

type invoiceResp struct {
	ID         looseString `json:"id"`
	InvoiceURL string      `json:"invoice_url"`
	Message    string      `json:"message"`
}

func (p *CryptoGatewayProvider) CreateCheckout(ctx context.Context, in CheckoutRequest) (*CheckoutResponse, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("crypto gateway: api key not configured")
	}
	body, _ := json.Marshal(invoiceReq{
		PriceAmount:      json.Number(in.AmountUSD.StringFixed(2)),
		PriceCurrency:    "usd",
		PayCurrency:      in.PayCurrency,
		OrderID:          in.Reference,
		OrderDescription: in.Description,
		IPNCallbackURL:   in.CallbackURL,
		SuccessURL:       in.SuccessURL,
		CancelURL:        in.CancelURL,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/invoice", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.APIKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var out invoiceResp
	_ = json.Unmarshal(respBody, &out)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.WithFields(log.Fields{"status": resp.StatusCode, "reference": in.Reference}).Warn("[crypto] invoice rejected")
		return nil, fmt.Errorf("crypto invoice: %d %s", resp.StatusCode, out.Message)
	}
	if out.InvoiceURL == "" {
		return nil, fmt.Errorf("crypto invoice: empty invoice url")
	}
	return &CheckoutResponse{ProviderRef: string(out.ID), CheckoutURL: out.InvoiceURL}, nil
}

// canonicalJSON re-encodes payload with object keys sorted, as the gateway signs it.
func canonicalJSON(payload []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// SignCryptoPayload returns the hex signature the gateway sends for payload.
func SignCryptoPayload(payload []byte, secret string) (string, error) {
	canon, err := canonicalJSON(payload)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(canon)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func VerifyCryptoSignature(payload []byte, signature, secret string) error {
	if secret == "" || signature == "" {
		return ErrInvalidSignature
	}
	expected, err := SignCryptoPayload(payload, secret)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

type ipnPayload struct {
	PaymentID     looseString `json:"payment_id"`
	PaymentStatus string      `json:"payment_status"`
	OrderID       string      `json:"order_id"`
}

// ParseCryptoEvent maps an IPN callback to an Event.
func ParseCryptoEvent(payload []byte) (*Event, error) {
	var p ipnPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: crypto ipn: %v", ErrInvalidPayload, err)
	}
	ev := &Event{Reference: p.OrderID, ProviderRef: string(p.PaymentID), Status: p.PaymentStatus}
	switch p.PaymentStatus {
	case "confirmed", "finished":
		ev.Outcome = OutcomeCompleted
	case "failed", "expired", "refunded":
		ev.Outcome = OutcomeFailed
	}
	return ev, nil
}
