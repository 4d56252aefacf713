package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	"learnly/internal/domain"
	"learnly/internal/models"
	"learnly/internal/repository"
	"learnly/pkg/gateway"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrBatchNotDraft      = errors.New("batch is not in DRAFT")
	ErrBatchEmpty         = errors.New("batch has no withdrawals")
	ErrBatchNotExportable = errors.New("batch must be READY or PROCESSING to export")
)

// AddResult reports a per-id membership change: adds succeed or fail
// individually, never as one transaction.
type AddResult struct {
	Added  []uint          `json:"added"`
	Errors map[uint]string `json:"errors,omitempty"`
}

// ExportResult is the provider-ready payout file plus any warnings that
// require manual review before upload.
type ExportResult struct {
	Filename string
	Content  []byte
	Warnings []string
}

// BatchService groups approved withdrawals into provider payout runs:
// DRAFT -> READY -> PROCESSING -> {COMPLETED, PARTIALLY_COMPLETED, FAILED}.
type BatchService struct {
	db          *gorm.DB
	withdrawals *WithdrawalService
}

func NewBatchService(db *gorm.DB, withdrawals *WithdrawalService) *BatchService {
	return &BatchService{db: db, withdrawals: withdrawals}
}

// Create opens a DRAFT batch for a single provider.
func (s *BatchService) Create(provider string) (*models.WithdrawalBatch, error) {
	if _, err := gateway.ParseName(provider); err != nil {
		return nil, err
	}
	b := &models.WithdrawalBatch{
		BatchReference: fmt.Sprintf("batch-%s", uuid.New().String()),
		Provider:       provider,
		Status:         domain.BatchDraft,
		Currency:       domain.BaseCurrency,
	}
	if err := repository.NewBatchRepository(s.db).Create(b); err != nil {
		return nil, err
	}
	return b, nil
}

var errNotAssignable = errors.New("withdrawal is not APPROVED or already belongs to a batch")

// AddWithdrawals adds APPROVED, unbatched withdrawals to a DRAFT batch.
// Partial success is reported per id.
func (s *BatchService) AddWithdrawals(batchID uint, ids []uint) (AddResult, error) {
	batches := repository.NewBatchRepository(s.db)
	b, err := batches.GetByID(batchID)
	if err != nil {
		return AddResult{}, err
	}
	if b.Status != domain.BatchDraft {
		return AddResult{}, ErrBatchNotDraft
	}

	withdrawals := repository.NewWithdrawalRepository(s.db)
	res := AddResult{Errors: make(map[uint]string)}
	for _, id := range ids {
		w, err := withdrawals.GetByID(id)
		if err != nil {
			res.Errors[id] = "withdrawal not found"
			continue
		}
		if err := s.addMember(batchID, id, w.AmountUSDCents, b.Provider); err != nil {
			res.Errors[id] = err.Error()
			continue
		}
		res.Added = append(res.Added, id)
	}
	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}

// addMember stamps one withdrawal and bumps the batch totals in a single
// transaction. The totals update re-checks that the batch is still DRAFT,
// so a finalize racing past the caller's status read rolls the membership
// stamp back instead of mutating a frozen batch.
func (s *BatchService) addMember(batchID, withdrawalID uint, amountUSDCents int64, provider string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		ok, err := repository.NewWithdrawalRepository(tx).AssignToBatch(withdrawalID, batchID, domain.WithdrawalApproved, provider)
		if err != nil {
			return err
		}
		if !ok {
			return errNotAssignable
		}
		ok, err = repository.NewBatchRepository(tx).AddTotalsIfDraft(batchID, amountUSDCents)
		if err != nil {
			return err
		}
		if !ok {
			return ErrBatchNotDraft
		}
		return nil
	})
}

// Finalize freezes membership: DRAFT -> READY. An empty batch cannot be
// finalized and stays in DRAFT.
func (s *BatchService) Finalize(batchID uint) (*models.WithdrawalBatch, error) {
	batches := repository.NewBatchRepository(s.db)
	b, err := batches.GetByID(batchID)
	if err != nil {
		return nil, err
	}
	if b.TotalWithdrawals == 0 {
		return nil, ErrBatchEmpty
	}
	now := time.Now()
	ok, err := batches.TransitionStatus(batchID, domain.BatchDraft, domain.BatchReady,
		map[string]interface{}{"finalized_at": now})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBatchNotDraft
	}
	return batches.GetByID(batchID)
}

// MarkProcessing records that the payout run was handed to the provider:
// READY -> PROCESSING.
func (s *BatchService) MarkProcessing(batchID uint) (*models.WithdrawalBatch, error) {
	batches := repository.NewBatchRepository(s.db)
	now := time.Now()
	ok, err := batches.TransitionStatus(batchID, domain.BatchReady, domain.BatchProcessing,
		map[string]interface{}{"processed_at": now})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("batch is not READY")
	}
	return batches.GetByID(batchID)
}

// ExportCSV produces the provider-ready payout file for a READY or
// PROCESSING batch. Withdrawals with incomplete account details reject the
// export; duplicate payout destinations are surfaced as warnings and never
// silently merged.
func (s *BatchService) ExportCSV(batchID uint) (*ExportResult, error) {
	batches := repository.NewBatchRepository(s.db)
	b, err := batches.GetByID(batchID)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.BatchReady && b.Status != domain.BatchProcessing {
		return nil, ErrBatchNotExportable
	}
	members, err := repository.NewWithdrawalRepository(s.db).ListByBatch(batchID)
	if err != nil {
		return nil, err
	}

	var invalid []string
	for _, w := range members {
		details := AccountDetails{
			PayoutChannel: w.PayoutChannel,
			AccountName:   w.AccountName,
			AccountNumber: w.AccountNumber,
			BankCode:      w.BankCode,
			MobileNumber:  w.MobileNumber,
		}
		if err := details.validate(); err != nil {
			invalid = append(invalid, w.Reference)
		}
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDestination, invalid)
	}

	warnings := duplicateDestinationWarnings(members)

	content, err := renderPayoutCSV(gateway.Name(b.Provider), members)
	if err != nil {
		return nil, err
	}
	zap.L().Info("batch exported",
		zap.Uint("batch_id", batchID),
		zap.Int("withdrawals", len(members)),
		zap.Int("warnings", len(warnings)))
	return &ExportResult{
		Filename: fmt.Sprintf("%s-%s.csv", b.Provider, b.BatchReference),
		Content:  content,
		Warnings: warnings,
	}, nil
}

// duplicateDestinationWarnings flags the same account or mobile number
// appearing on more than one withdrawal in the batch. These require manual
// review before the file is uploaded.
func duplicateDestinationWarnings(members []models.Withdrawal) []string {
	byDest := make(map[string][]string)
	for i := range members {
		dest := members[i].Destination()
		if dest == "" {
			continue
		}
		byDest[dest] = append(byDest[dest], members[i].Reference)
	}
	var warnings []string
	for dest, refs := range byDest {
		if len(refs) > 1 {
			warnings = append(warnings, fmt.Sprintf(
				"destination %s is used by %d withdrawals: %v", maskDestination(dest), len(refs), refs))
		}
	}
	return warnings
}

func maskDestination(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// renderPayoutCSV writes one row per withdrawal in the destination
// provider's upload format. Field order and headers differ per provider.
func renderPayoutCSV(provider gateway.Name, members []models.Withdrawal) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	switch provider {
	case gateway.Paystack:
		if err := w.Write([]string{"Transfer Reference", "Recipient Name", "Bank Code", "Account Number", "Amount", "Currency", "Narration"}); err != nil {
			return nil, err
		}
		for _, m := range members {
			if err := w.Write([]string{
				m.Reference, m.AccountName, m.BankCode, m.Destination(),
				formatCents(m.AmountLocalCents), m.Currency, "Affiliate payout",
			}); err != nil {
				return nil, err
			}
		}
	case gateway.Kora:
		if err := w.Write([]string{"reference", "destination_type", "account_name", "bank_code", "account_number", "amount", "currency", "narration"}); err != nil {
			return nil, err
		}
		for _, m := range members {
			destType := "bank_account"
			if m.PayoutChannel == domain.PayoutChannelMobileMoney {
				destType = "mobile_money"
			}
			if err := w.Write([]string{
				m.Reference, destType, m.AccountName, m.BankCode, m.Destination(),
				formatCents(m.AmountLocalCents), m.Currency, "Affiliate payout",
			}); err != nil {
				return nil, err
			}
		}
	default:
		if err := w.Write([]string{"reference", "channel", "account_name", "destination", "amount_usd", "currency"}); err != nil {
			return nil, err
		}
		for _, m := range members {
			if err := w.Write([]string{
				m.Reference, m.PayoutChannel, m.AccountName, m.Destination(),
				formatCents(m.AmountUSDCents), domain.BaseCurrency,
			}); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatCents(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}

// MarkAllPaid marks every APPROVED/PROCESSING member PAID via the
// withdrawal state machine, aggregating failures without rolling back
// successes, then derives the batch's terminal status from its members.
func (s *BatchService) MarkAllPaid(batchID uint, adminEmail string) (BulkResult, error) {
	batches := repository.NewBatchRepository(s.db)
	b, err := batches.GetByID(batchID)
	if err != nil {
		return BulkResult{}, err
	}
	if b.Status != domain.BatchReady && b.Status != domain.BatchProcessing {
		return BulkResult{}, ErrBatchNotExportable
	}
	members, err := repository.NewWithdrawalRepository(s.db).ListByBatch(batchID)
	if err != nil {
		return BulkResult{}, err
	}

	res := BulkResult{Errors: make(map[uint]string)}
	for _, m := range members {
		if m.Status != domain.WithdrawalApproved && m.Status != domain.WithdrawalProcessing {
			continue
		}
		if _, err := s.withdrawals.MarkPaid(m.ID, "", adminEmail); err != nil {
			res.Failed++
			res.Errors[m.ID] = err.Error()
			continue
		}
		res.Succeeded++
	}
	if len(res.Errors) == 0 {
		res.Errors = nil
	}

	if err := s.deriveTerminalStatus(batchID); err != nil {
		return res, err
	}
	return res, nil
}

// deriveTerminalStatus recomputes the batch status from member terminal
// states; member transitions are the authoritative record.
func (s *BatchService) deriveTerminalStatus(batchID uint) error {
	members, err := repository.NewWithdrawalRepository(s.db).ListByBatch(batchID)
	if err != nil {
		return err
	}
	paid := 0
	for _, m := range members {
		if m.Status == domain.WithdrawalPaid {
			paid++
		}
	}
	status := domain.BatchFailed
	switch {
	case paid == len(members) && len(members) > 0:
		status = domain.BatchCompleted
	case paid > 0:
		status = domain.BatchPartiallyCompleted
	}
	now := time.Now()
	return repository.NewBatchRepository(s.db).SetStatus(batchID, status,
		map[string]interface{}{"completed_at": now})
}
