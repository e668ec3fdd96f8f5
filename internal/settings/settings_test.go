package settings

import (
	"testing"

	"tokenguard/internal/repository"
	"tokenguard/internal/testutil"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(repository.NewSettingRepository(testutil.NewDB(t)))
}

func TestLoadDefaults(t *testing.T) {
	s := newService(t)
	cfg, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APITimeout != 120 || cfg.CacheDuration != 24 {
		t.Errorf("timeouts = %d/%d, want 120/24", cfg.APITimeout, cfg.CacheDuration)
	}
	if !cfg.PromotionsSidebar || cfg.AutoPublish || cfg.PaidMode {
		t.Errorf("toggles = sidebar:%v publish:%v paid:%v", cfg.PromotionsSidebar, cfg.AutoPublish, cfg.PaidMode)
	}
	if cfg.CreditsPerDollar.String() != "10" {
		t.Errorf("credits per dollar = %s, want 10", cfg.CreditsPerDollar)
	}
	if cfg.StandardAnalysisCost != 1 || cfg.PsychoAnalysisCost != 2 || cfg.FreeCreditsOnSignup != 3 {
		t.Errorf("costs = %d/%d/%d", cfg.StandardAnalysisCost, cfg.PsychoAnalysisCost, cfg.FreeCreditsOnSignup)
	}
}

func TestSaveGeneralCoercesAndClamps(t *testing.T) {
	s := newService(t)
	cfg, err := s.Save(GroupGeneral, map[string]string{
		KeyWebhookURL:          " https://hooks.example.com/analyze ",
		KeyAPITimeout:          "5000",
		KeyCacheDuration:       "abc",
		KeyAutoPublish:         "on",
		KeyRecaptchaSiteKey:    "<b>site</b>key",
		KeyMinWalletBalanceETH: "0.25",
		"unknown_key":          "ignored",
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if cfg.WebhookURL != "https://hooks.example.com/analyze" {
		t.Errorf("webhook url = %q", cfg.WebhookURL)
	}
	if cfg.APITimeout != 600 {
		t.Errorf("api timeout = %d, want 600", cfg.APITimeout)
	}
	if cfg.CacheDuration != 1 {
		t.Errorf("cache duration = %d, want 1", cfg.CacheDuration)
	}
	if !cfg.AutoPublish {
		t.Error("auto publish should be on")
	}
	// Checkbox missing from the submitted group is stored as false.
	if cfg.PromotionsSidebar {
		t.Error("promotions sidebar should be off")
	}
	if cfg.RecaptchaSiteKey != "sitekey" {
		t.Errorf("site key = %q", cfg.RecaptchaSiteKey)
	}
	if cfg.MinWalletBalanceETH != 0.25 {
		t.Errorf("min eth = %v", cfg.MinWalletBalanceETH)
	}
	if _, err := s.Get("unknown_key"); err == nil {
		t.Error("unknown key should not be readable")
	}
}

func TestPaymentTestModeAlwaysOff(t *testing.T) {
	s := newService(t)
	cfg, err := s.SavePaymentSettings(map[string]string{KeyPaymentTestMode: "1"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if cfg.PaymentTestMode {
		t.Error("payment test mode must stay off")
	}
	if err := s.Set(KeyPaymentTestMode, "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _ := s.Get(KeyPaymentTestMode); v != "0" {
		t.Errorf("stored test mode = %q, want 0", v)
	}
}

func TestSecretMaskKeepsStoredValue(t *testing.T) {
	s := newService(t)
	if _, err := s.SavePaymentSettings(map[string]string{KeyStripeSecretKey: "sk_live_123"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := s.SavePaymentSettings(map[string]string{KeyStripeSecretKey: SecretMask})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StripeSecretKey != "sk_live_123" {
		t.Errorf("secret = %q", cfg.StripeSecretKey)
	}
	if cfg.Masked().StripeSecretKey != SecretMask {
		t.Error("masked view should hide the secret")
	}
}

func TestMissingAddresses(t *testing.T) {
	s := newService(t)
	cfg, err := s.SavePaymentSettings(map[string]string{
		KeyLiveAddressBTC: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
		KeyLiveAddressETH: "not an address",
	})
	if err != nil {
		t.Fatal(err)
	}
	missing := MissingAddresses(cfg)
	if len(missing) != 5 {
		t.Fatalf("missing = %v, want 5 entries", missing)
	}
	for _, k := range missing {
		if k == KeyLiveAddressBTC {
			t.Error("btc address is configured")
		}
	}
}

func TestTogglePaidModeAndSeed(t *testing.T) {
	s := newService(t)
	if err := s.SeedDefaults(); err != nil {
		t.Fatal(err)
	}
	if err := s.TogglePaidMode(true); err != nil {
		t.Fatal(err)
	}
	// Seeding again must not overwrite stored values.
	if err := s.SeedDefaults(); err != nil {
		t.Fatal(err)
	}
	cfg, _ := s.Load()
	if !cfg.PaidMode {
		t.Error("paid mode should be on")
	}
	if _, err := s.Save("nope", nil); err == nil {
		t.Error("unknown group should fail")
	}
}
