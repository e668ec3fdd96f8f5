package domain

// Roles
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// Credit adjustment types accepted by the ledger.
const (
	AdjustAdd      = "add"
	AdjustSubtract = "subtract"
	AdjustSet      = "set"
)

// MaxBalance caps a credit balance and any single credit amount.
const MaxBalance int64 = 1_000_000_000

// Transaction statuses
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
)

// Transaction method tags. MethodAdminAdjustment marks manual credit changes.
const (
	MethodAdminAdjustment = "admin_adjustment"
	MethodStripe          = "stripe"
	MethodCrypto          = "crypto"
	MethodAnalysis        = "analysis"
	MethodSignupBonus     = "signup_bonus"
)

// Analysis modes
const (
	ModeStandard = "standard"
	ModePsycho   = "psycho"
)

// Analysis verdicts
const (
	VerdictScam    = "scam"
	VerdictLegit   = "legit"
	VerdictCaution = "caution"
	VerdictUnknown = "unknown"
)

// Promotion statuses. Expired is written by the expiry job; visibility never depends on it.
const (
	PromotionPending   = "pending"
	PromotionActive    = "active"
	PromotionCancelled = "cancelled"
	PromotionExpired   = "expired"
)

// Notification types pushed to the chat client.
const (
	NotifyCreditsUpdated   = "CREDITS_UPDATED"
	NotifyPaymentConfirmed = "PAYMENT_CONFIRMED"
	NotifyPaymentFailed    = "PAYMENT_FAILED"
)

// Chains supported by the analysis webhook.
var Chains = map[string]bool{
	"ethereum": true,
	"bsc":      true,
	"polygon":  true,
	"arbitrum": true,
	"base":     true,
	"solana":   true,
	"tron":     true,
	"bitcoin":  true,
}
