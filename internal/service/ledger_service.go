package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"tokenguard/internal/common"
	"tokenguard/internal/domain"
	"tokenguard/internal/models"
	"tokenguard/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidAdjustment   = errors.New("invalid adjustment type")
	ErrInvalidAmount       = errors.New("amount must be a non-negative integer")
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Actor is the authenticated caller of a privileged operation.
type Actor struct {
	UserID uint
	Role   string
	IP     string
}

func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }

// LedgerService owns every change to credit balances. Each change updates the
// account and appends its transaction row in one database transaction.
type LedgerService struct {
	db       *gorm.DB
	notifier *NotificationService
}

func NewLedgerService(db *gorm.DB, notifier *NotificationService) *LedgerService {
	return &LedgerService{db: db, notifier: notifier}
}

func (s *LedgerService) Balance(ctx context.Context, userID uint) (int64, error) {
	acct, err := repository.NewCreditRepository(s.db.WithContext(ctx)).GetOrCreate(userID)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// Account returns the full credit account, creating it when missing.
func (s *LedgerService) Account(ctx context.Context, userID uint) (*models.CreditAccount, error) {
	return repository.NewCreditRepository(s.db.WithContext(ctx)).GetOrCreate(userID)
}

// Adjust applies a manual admin change and returns the new balance.
// Subtract clamps at zero; the logged token delta is the change actually applied.
func (s *LedgerService) Adjust(ctx context.Context, actor Actor, userID uint, adjType string, amount int64, reason string) (int64, error) {
	if !actor.IsAdmin() {
		return 0, ErrUnauthorized
	}
	switch adjType {
	case domain.AdjustAdd, domain.AdjustSubtract, domain.AdjustSet:
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidAdjustment, adjType)
	}
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	if amount > domain.MaxBalance {
		return 0, fmt.Errorf("%w: at most %d", ErrInvalidAmount, domain.MaxBalance)
	}
	reason = common.Truncate(common.SanitizeText(reason), 500)

	var (
		newBalance int64
		delta      int64
		note       *models.Notification
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repository.NewUserRepository(tx).GetByID(userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		credits := repository.NewCreditRepository(tx)
		acct, err := credits.GetForUpdate(userID)
		if err != nil {
			return err
		}
		old := acct.Balance
		txNote := reason
		switch adjType {
		case domain.AdjustAdd:
			if acct.Balance, err = addCredits(old, amount); err != nil {
				return err
			}
			delta = amount
		case domain.AdjustSubtract:
			acct.Balance = old - amount
			if acct.Balance < 0 {
				acct.Balance = 0
			}
			delta = acct.Balance - old
			if -delta != amount {
				txNote = joinNote(reason, fmt.Sprintf("requested -%d, clamped at zero", amount))
			}
		case domain.AdjustSet:
			acct.Balance = amount
			// Set is logged with a zero delta; the note carries the change.
			delta = 0
			txNote = joinNote(reason, fmt.Sprintf("set from %d to %d", old, amount))
		}
		if err := credits.Save(acct); err != nil {
			return err
		}
		if err := repository.NewTransactionRepository(tx).Create(&models.Transaction{
			UserID:      userID,
			Reference:   "adj_" + uuid.NewString(),
			Amount:      decimal.Zero,
			Currency:    "USD",
			Tokens:      delta,
			Method:      domain.MethodAdminAdjustment,
			Status:      domain.TxStatusCompleted,
			Note:        txNote,
			CompletedAt: ptrTime(time.Now()),
		}); err != nil {
			return err
		}
		meta, _ := json.Marshal(map[string]interface{}{
			"type": adjType, "amount": amount, "old_balance": old, "new_balance": acct.Balance, "reason": reason,
		})
		adminID := actor.UserID
		if err := repository.NewAuditLogRepository(tx).Create(&models.AuditLog{
			UserID:     &adminID,
			Action:     "credits.adjust",
			Resource:   "user",
			ResourceID: strconv.FormatUint(uint64(userID), 10),
			IP:         actor.IP,
			Metadata:   string(meta),
		}); err != nil {
			return err
		}
		if s.notifier != nil {
			note = s.notifier.creditsUpdated(userID, acct.Balance, acct.Balance-old)
			if err := repository.NewNotificationRepository(tx).Create(note); err != nil {
				return err
			}
		}
		newBalance = acct.Balance
		return nil
	})
	if err != nil {
		return 0, err
	}
	if s.notifier != nil {
		s.notifier.Push(note)
	}
	log.WithFields(log.Fields{
		"admin_id": actor.UserID, "user_id": userID, "type": adjType, "amount": amount, "delta": delta, "balance": newBalance,
	}).Info("[ledger] credits adjusted")
	return newBalance, nil
}

// Charge debits cost credits for an analysis and returns the new balance.
func (s *LedgerService) Charge(ctx context.Context, userID uint, cost int64, note string) (int64, error) {
	if cost < 0 {
		return 0, ErrInvalidAmount
	}
	var newBalance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		credits := repository.NewCreditRepository(tx)
		acct, err := credits.GetForUpdate(userID)
		if err != nil {
			return err
		}
		if cost == 0 {
			newBalance = acct.Balance
			return nil
		}
		if acct.Balance < cost {
			return ErrInsufficientCredits
		}
		acct.Balance -= cost
		acct.TotalSpent += cost
		if err := credits.Save(acct); err != nil {
			return err
		}
		newBalance = acct.Balance
		return repository.NewTransactionRepository(tx).Create(&models.Transaction{
			UserID:      userID,
			Reference:   "ana_" + uuid.NewString(),
			Amount:      decimal.Zero,
			Currency:    "USD",
			Tokens:      -cost,
			Method:      domain.MethodAnalysis,
			Status:      domain.TxStatusCompleted,
			Note:        common.Truncate(note, 500),
			CompletedAt: ptrTime(time.Now()),
		})
	})
	return newBalance, err
}

// GrantSignupBonus credits the configured welcome credits once per new account.
func (s *LedgerService) GrantSignupBonus(ctx context.Context, userID uint, amount int64) error {
	if amount <= 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		credits := repository.NewCreditRepository(tx)
		acct, err := credits.GetForUpdate(userID)
		if err != nil {
			return err
		}
		if acct.Balance, err = addCredits(acct.Balance, amount); err != nil {
			return err
		}
		if err := credits.Save(acct); err != nil {
			return err
		}
		return repository.NewTransactionRepository(tx).Create(&models.Transaction{
			UserID:      userID,
			Reference:   "bonus_" + strconv.FormatUint(uint64(userID), 10),
			Amount:      decimal.Zero,
			Currency:    "USD",
			Tokens:      amount,
			Method:      domain.MethodSignupBonus,
			Status:      domain.TxStatusCompleted,
			Note:        "welcome credits",
			CompletedAt: ptrTime(time.Now()),
		})
	})
}

// SettlePurchase completes a pending purchase and credits its tokens.
// Already final transactions are returned unchanged with settled=false.
func (s *LedgerService) SettlePurchase(ctx context.Context, reference, providerRef string) (t *models.Transaction, settled bool, err error) {
	var note *models.Notification
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := repository.NewTransactionRepository(tx)
		t, err = txRepo.GetByReferenceForUpdate(reference)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return err
		}
		if t.Status != domain.TxStatusPending {
			return nil
		}
		credits := repository.NewCreditRepository(tx)
		acct, err := credits.GetForUpdate(t.UserID)
		if err != nil {
			return err
		}
		if acct.Balance, err = addCredits(acct.Balance, t.Tokens); err != nil {
			return err
		}
		acct.TotalPurchased += t.Tokens
		if err := credits.Save(acct); err != nil {
			return err
		}
		t.Status = domain.TxStatusCompleted
		t.CompletedAt = ptrTime(time.Now())
		if providerRef != "" {
			t.ProviderRef = providerRef
		}
		if err := txRepo.Update(t); err != nil {
			return err
		}
		if s.notifier != nil {
			note = s.notifier.paymentConfirmed(t.UserID, t.Tokens, acct.Balance, t.Reference)
			if err := repository.NewNotificationRepository(tx).Create(note); err != nil {
				return err
			}
		}
		settled = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if settled {
		if s.notifier != nil {
			s.notifier.Push(note)
		}
		log.WithFields(log.Fields{"reference": reference, "user_id": t.UserID, "tokens": t.Tokens}).Info("[ledger] purchase settled")
	}
	return t, settled, nil
}

// FailPurchase marks a pending purchase failed. Final transactions are left alone.
func (s *LedgerService) FailPurchase(ctx context.Context, reference, reason string) (*models.Transaction, bool, error) {
	var (
		t       *models.Transaction
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := repository.NewTransactionRepository(tx)
		var err error
		t, err = txRepo.GetByReferenceForUpdate(reference)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return err
		}
		if t.Status != domain.TxStatusPending {
			return nil
		}
		t.Status = domain.TxStatusFailed
		t.Note = joinNote(t.Note, common.Truncate(common.SanitizeText(reason), 255))
		changed = true
		return txRepo.Update(t)
	})
	if err != nil {
		return nil, false, err
	}
	if changed && s.notifier != nil {
		if err := s.notifier.NotifyPaymentFailed(t.UserID, t.Reference); err != nil {
			log.WithError(err).Warn("[ledger] payment failed notification")
		}
	}
	return t, changed, nil
}

// addCredits returns balance+amount, refusing results above domain.MaxBalance.
func addCredits(balance, amount int64) (int64, error) {
	if amount < 0 || amount > domain.MaxBalance-balance {
		return balance, fmt.Errorf("%w: balance would exceed %d", ErrInvalidAmount, domain.MaxBalance)
	}
	return balance + amount, nil
}

func joinNote(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " (" + b + ")"
}

func ptrTime(t time.Time) *time.Time {
	t = t.UTC()
	return &t
}
