package admin

import (
	"context"
	"time"

	"tokenguard/internal/models"
	"tokenguard/internal/repository"
	"tokenguard/internal/service"
	"tokenguard/internal/settings"
	"tokenguard/pkg/probe"

	log "github.com/sirupsen/logrus"
)

type SettingsStore interface {
	Load() (*settings.Settings, error)
	Save(group string, form map[string]string) (*settings.Settings, error)
	TogglePaidMode(enabled bool) error
}

type Prober interface {
	Ping(ctx context.Context, url string) probe.Result
	SendTest(ctx context.Context, url string, payload interface{}) probe.Result
}

type Cache interface {
	ClearAll() (int64, error)
}

type Stats interface {
	Stats() (*repository.DashboardStats, error)
}

type Promotions interface {
	Create(actor service.Actor, in service.PromotionInput) (*models.Promotion, error)
	Update(actor service.Actor, id uint, in service.PromotionInput) (*models.Promotion, error)
	Approve(actor service.Actor, id uint) (*models.Promotion, error)
	Cancel(actor service.Actor, id uint) (*models.Promotion, error)
}

type Ledger interface {
	Adjust(ctx context.Context, actor service.Actor, userID uint, adjType string, amount int64, reason string) (int64, error)
}

type Payments interface {
	UpdateTransactionStatus(ctx context.Context, actor service.Actor, reference, status, note string) (*models.Transaction, error)
}

// Deps are the services the dispatcher composes.
type Deps struct {
	Settings   SettingsStore
	Probe      Prober
	Cache      Cache
	Stats      Stats
	Promotions Promotions
	Ledger     Ledger
	Payments   Payments
}

// Outcome is a handled action. Success is false for soft failures such as an
// unreachable webhook, which are reported to the admin rather than raised.
type Outcome struct {
	Success bool
	Message string
	Data    interface{}
}

func ok(msg string, data interface{}) *Outcome {
	return &Outcome{Success: true, Message: msg, Data: data}
}

type Dispatcher struct {
	deps Deps
	now  func() time.Time
}

func NewDispatcher(deps Deps) *Dispatcher {
	return &Dispatcher{deps: deps, now: time.Now}
}

// Dispatch authorizes, decodes and runs one admin action.
// Nothing is read or written for callers without the admin role.
func (d *Dispatcher) Dispatch(ctx context.Context, actor service.Actor, req Request) (*Outcome, error) {
	if !actor.IsAdmin() {
		return nil, service.ErrUnauthorized
	}
	out, err := d.run(ctx, actor, req)
	entry := log.WithFields(log.Fields{"action": req.Action, "admin_id": actor.UserID})
	if err != nil {
		entry.WithError(err).Warn("[admin] action rejected")
		return nil, err
	}
	entry.WithField("success", out.Success).Info("[admin] action handled")
	return out, nil
}

func (d *Dispatcher) run(ctx context.Context, actor service.Actor, req Request) (*Outcome, error) {
	switch req.Action {
	case ActionTestWebhook:
		var p TestWebhookPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		url, err := d.webhookURL(p.URL)
		if err != nil {
			return nil, err
		}
		res := d.deps.Probe.Ping(ctx, url)
		return &Outcome{Success: res.Online, Message: res.Message, Data: res}, nil

	case ActionSendWebhookTest:
		var p SendWebhookTestPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		url, err := d.webhookURL(p.URL)
		if err != nil {
			return nil, err
		}
		body := p.Payload
		if body == nil {
			msg := p.Message
			if msg == "" {
				msg = "Webhook connectivity test"
			}
			body = map[string]interface{}{"message": msg, "test": true, "timestamp": d.now().Unix()}
		}
		res := d.deps.Probe.SendTest(ctx, url, body)
		return &Outcome{Success: res.Success, Message: res.Message, Data: res}, nil

	case ActionSaveSettings:
		var p SaveSettingsPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		cfg, err := d.deps.Settings.Save(settings.GroupGeneral, p.Settings)
		if err != nil {
			return nil, err
		}
		return ok("Settings saved", cfg.Masked()), nil

	case ActionSavePaymentSettings:
		var p SaveSettingsPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		cfg, err := d.deps.Settings.Save(settings.GroupPayment, p.Settings)
		if err != nil {
			return nil, err
		}
		return ok("Payment settings saved", map[string]interface{}{
			"settings":          cfg.Masked(),
			"missing_addresses": settings.MissingAddresses(cfg),
		}), nil

	case ActionUpdateCreditSettings:
		var p SaveSettingsPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		cfg, err := d.deps.Settings.Save(settings.GroupCredits, p.Settings)
		if err != nil {
			return nil, err
		}
		return ok("Credit settings saved", map[string]interface{}{
			"credits_per_dollar":     cfg.CreditsPerDollar,
			"standard_analysis_cost": cfg.StandardAnalysisCost,
			"psycho_analysis_cost":   cfg.PsychoAnalysisCost,
			"free_credits_on_signup": cfg.FreeCreditsOnSignup,
		}), nil

	case ActionTogglePaidMode:
		var p TogglePaidModePayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		if err := d.deps.Settings.TogglePaidMode(*p.Enabled); err != nil {
			return nil, err
		}
		msg := "Paid mode disabled"
		if *p.Enabled {
			msg = "Paid mode enabled"
		}
		return ok(msg, map[string]bool{"paid_mode": *p.Enabled}), nil

	case ActionClearCache:
		if err := decode(req.Payload, &emptyPayload{}); err != nil {
			return nil, err
		}
		n, err := d.deps.Cache.ClearAll()
		if err != nil {
			return nil, err
		}
		return ok("Cache cleared", map[string]int64{"deleted": n}), nil

	case ActionDashboardStats:
		if err := decode(req.Payload, &emptyPayload{}); err != nil {
			return nil, err
		}
		stats, err := d.deps.Stats.Stats()
		if err != nil {
			return nil, err
		}
		return ok("", stats), nil

	case ActionAddPromotion:
		var p PromotionPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		promo, err := d.deps.Promotions.Create(actor, p.input())
		if err != nil {
			return nil, err
		}
		return ok("Promotion added", promo), nil

	case ActionUpdatePromotion:
		var p UpdatePromotionPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		promo, err := d.deps.Promotions.Update(actor, p.ID, p.input())
		if err != nil {
			return nil, err
		}
		return ok("Promotion updated", promo), nil

	case ActionApprovePromotion:
		var p PromotionIDPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		promo, err := d.deps.Promotions.Approve(actor, p.ID)
		if err != nil {
			return nil, err
		}
		return ok("Promotion approved", promo), nil

	case ActionCancelPromotion:
		var p PromotionIDPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		promo, err := d.deps.Promotions.Cancel(actor, p.ID)
		if err != nil {
			return nil, err
		}
		return ok("Promotion cancelled", promo), nil

	case ActionAdjustCredits:
		var p AdjustCreditsPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		bal, err := d.deps.Ledger.Adjust(ctx, actor, p.UserID, p.Type, *p.Amount, p.Reason)
		if err != nil {
			return nil, err
		}
		return ok("Credits updated", map[string]interface{}{"user_id": p.UserID, "new_balance": bal}), nil

	case ActionUpdateTransactionStatus:
		var p UpdateTransactionStatusPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		tx, err := d.deps.Payments.UpdateTransactionStatus(ctx, actor, p.Reference, p.Status, p.Note)
		if err != nil {
			return nil, err
		}
		return ok("Transaction updated", tx), nil
	}
	return nil, ErrUnknownAction
}

func (d *Dispatcher) webhookURL(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	cfg, err := d.deps.Settings.Load()
	if err != nil {
		return "", err
	}
	return cfg.WebhookURL, nil
}

func (p *PromotionPayload) input() service.PromotionInput {
	return service.PromotionInput{
		TokenName:       p.TokenName,
		TokenSymbol:     p.TokenSymbol,
		ContractAddress: p.ContractAddress,
		Chain:           p.Chain,
		LogoURL:         p.LogoURL,
		WebsiteURL:      p.WebsiteURL,
		Description:     p.Description,
		StartDate:       p.StartDate.Time,
		EndDate:         endOfDay(p.EndDate.Time),
		Cost:            p.Cost,
		AmountPaid:      p.AmountPaid,
	}
}
