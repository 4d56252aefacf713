package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"learnly/internal/domain"
	"learnly/internal/models"
	"learnly/internal/rates"
	"learnly/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidTransition  = errors.New("withdrawal is not in a state that allows this transition")
	ErrReasonRequired     = errors.New("a reason is required")
	ErrInvalidDestination = errors.New("incomplete payout account details")
)

// AccountDetails is the payout destination supplied at request time.
type AccountDetails struct {
	PayoutChannel string
	AccountName   string
	AccountNumber string
	BankCode      string
	MobileNumber  string
}

func (d AccountDetails) validate() error {
	switch d.PayoutChannel {
	case domain.PayoutChannelBank:
		if d.AccountName == "" || d.AccountNumber == "" || d.BankCode == "" {
			return ErrInvalidDestination
		}
	case domain.PayoutChannelMobileMoney:
		if d.AccountName == "" || d.MobileNumber == "" {
			return ErrInvalidDestination
		}
	default:
		return fmt.Errorf("unknown payout channel %q", d.PayoutChannel)
	}
	return nil
}

// BulkResult aggregates a per-item bulk operation. Bulk transitions are
// deliberately non-transactional across items: failures never roll back
// already-applied transitions.
type BulkResult struct {
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Errors    map[uint]string `json:"errors,omitempty"`
}

// WithdrawalService drives the per-withdrawal state machine. Every
// transition is a row-level conditional update plus one append-only audit
// row, applied in one transaction.
type WithdrawalService struct {
	db    *gorm.DB
	rates *rates.Table
}

func NewWithdrawalService(db *gorm.DB, table *rates.Table) *WithdrawalService {
	return &WithdrawalService{db: db, rates: table}
}

// Request freezes the affiliate's balance and creates a PENDING
// withdrawal. Frozen funds are not returned automatically on rejection or
// failure; that reconciliation is a manual step.
func (s *WithdrawalService) Request(affiliateID uint, amountUSDCents int64, currency string, details AccountDetails) (*models.Withdrawal, error) {
	if amountUSDCents <= 0 {
		return nil, fmt.Errorf("withdrawal amount must be positive")
	}
	if err := details.validate(); err != nil {
		return nil, err
	}
	currency = strings.ToUpper(currency)
	localCents, rate, err := s.rates.FromUSDCents(amountUSDCents, currency)
	if err != nil {
		return nil, err
	}

	w := &models.Withdrawal{
		Reference:        fmt.Sprintf("wd-%s", uuid.New().String()),
		AffiliateID:      affiliateID,
		AmountUSDCents:   amountUSDCents,
		AmountLocalCents: localCents,
		Currency:         currency,
		ExchangeRate:     rate,
		PayoutChannel:    details.PayoutChannel,
		AccountName:      details.AccountName,
		AccountNumber:    details.AccountNumber,
		BankCode:         details.BankCode,
		MobileNumber:     details.MobileNumber,
		Status:           domain.WithdrawalPending,
		RequestedAt:      time.Now(),
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := repository.NewAffiliateRepository(tx).FreezeBalance(affiliateID, amountUSDCents); err != nil {
			return err
		}
		return repository.NewWithdrawalRepository(tx).Create(w)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Approve moves PENDING -> APPROVED. No funds move.
func (s *WithdrawalService) Approve(id uint, adminEmail string) (*models.Withdrawal, error) {
	now := time.Now()
	return s.transition(id, domain.AuditApprove, adminEmail, "",
		[]string{domain.WithdrawalPending}, domain.WithdrawalApproved,
		map[string]interface{}{"approved_at": now})
}

// Reject moves PENDING -> REJECTED. Reason is mandatory; the frozen funds
// stay frozen.
func (s *WithdrawalService) Reject(id uint, reason, adminEmail string) (*models.Withdrawal, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}
	now := time.Now()
	return s.transition(id, domain.AuditReject, adminEmail, reason,
		[]string{domain.WithdrawalPending}, domain.WithdrawalRejected,
		map[string]interface{}{"rejected_at": now, "rejection_reason": reason})
}

// MarkProcessing moves APPROVED -> PROCESSING, used when a payout run has
// been submitted to a provider.
func (s *WithdrawalService) MarkProcessing(id uint, adminEmail string) (*models.Withdrawal, error) {
	now := time.Now()
	return s.transition(id, domain.AuditProcessing, adminEmail, "",
		[]string{domain.WithdrawalApproved}, domain.WithdrawalProcessing,
		map[string]interface{}{"processed_at": now})
}

// MarkPaid moves APPROVED or PROCESSING -> PAID, recording the provider's
// payout reference when supplied.
func (s *WithdrawalService) MarkPaid(id uint, providerReference, adminEmail string) (*models.Withdrawal, error) {
	now := time.Now()
	updates := map[string]interface{}{"paid_at": now}
	if providerReference != "" {
		updates["provider_reference"] = providerReference
	}
	return s.transition(id, domain.AuditMarkPaid, adminEmail, "",
		[]string{domain.WithdrawalApproved, domain.WithdrawalProcessing}, domain.WithdrawalPaid,
		updates)
}

// MarkFailed moves APPROVED or PROCESSING -> FAILED. Reason is mandatory;
// funds remain frozen pending manual review, never auto-retried.
func (s *WithdrawalService) MarkFailed(id uint, reason, adminEmail string) (*models.Withdrawal, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}
	now := time.Now()
	return s.transition(id, domain.AuditMarkFailed, adminEmail, reason,
		[]string{domain.WithdrawalApproved, domain.WithdrawalProcessing}, domain.WithdrawalFailed,
		map[string]interface{}{"failed_at": now, "failure_reason": reason})
}

// BulkApprove approves withdrawal-by-withdrawal and reports aggregates.
func (s *WithdrawalService) BulkApprove(ids []uint, adminEmail string) BulkResult {
	return s.bulk(ids, func(id uint) error {
		_, err := s.Approve(id, adminEmail)
		return err
	})
}

// BulkReject rejects withdrawal-by-withdrawal with one shared reason.
func (s *WithdrawalService) BulkReject(ids []uint, reason, adminEmail string) (BulkResult, error) {
	if strings.TrimSpace(reason) == "" {
		return BulkResult{}, ErrReasonRequired
	}
	return s.bulk(ids, func(id uint) error {
		_, err := s.Reject(id, reason, adminEmail)
		return err
	}), nil
}

func (s *WithdrawalService) bulk(ids []uint, op func(uint) error) BulkResult {
	res := BulkResult{Errors: make(map[uint]string)}
	for _, id := range ids {
		if err := op(id); err != nil {
			res.Failed++
			res.Errors[id] = err.Error()
			continue
		}
		res.Succeeded++
	}
	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res
}

// transition applies one state-machine edge: conditional status update
// plus the audit row, in a single transaction. The conditional update is
// the only exclusion mechanism, so concurrent conflicting transitions
// resolve to exactly one winner.
func (s *WithdrawalService) transition(id uint, action, adminEmail, reason string, allowed []string, to string, updates map[string]interface{}) (*models.Withdrawal, error) {
	var out *models.Withdrawal
	err := s.db.Transaction(func(tx *gorm.DB) error {
		withdrawals := repository.NewWithdrawalRepository(tx)
		w, err := withdrawals.GetByID(id)
		if err != nil {
			return err
		}
		previous := w.Status
		updates["status"] = to
		ok, err := withdrawals.Transition(id, allowed, updates)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, previous, to)
		}
		if err := repository.NewAuditLogRepository(tx).Create(&models.WithdrawalAuditLog{
			WithdrawalID:   id,
			Action:         action,
			PreviousStatus: previous,
			NewStatus:      to,
			Reason:         reason,
			AdminEmail:     adminEmail,
		}); err != nil {
			return err
		}
		out, err = withdrawals.GetByID(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("withdrawal transition",
		zap.Uint("withdrawal_id", id),
		zap.String("action", action),
		zap.String("new_status", to),
		zap.String("admin", adminEmail))
	return out, nil
}
