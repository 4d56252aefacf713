package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"learnly/config"
	"learnly/internal/auth"
	"learnly/internal/domain"
	"learnly/internal/models"
	"learnly/internal/rates"
	"learnly/internal/repository"
	"learnly/pkg/gateway"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrMissingReference   = errors.New("payment reference is required")
	ErrVerificationFailed = errors.New("transaction could not be verified with any provider")
	ErrNoCustomerEmail    = errors.New("no customer email on verified transaction")
)

// ReconcileResult is what the verification entrypoint returns to the
// caller. TempCredential is only set when this call provisioned the
// account; it is never recoverable afterwards.
type ReconcileResult struct {
	Payment             *models.Payment
	Email               string
	UserID              uint
	IsNewAccount        bool
	TempCredential      string
	CredentialExpiresIn time.Duration
	AlreadyCompleted    bool
}

// ReconcileService owns every write to Payment.status. It is safe to call
// Reconcile concurrently for the same reference: a unique constraint on
// provider_reference plus a conditional completing update guarantee at
// most one caller performs the transition and dispatches attribution.
type ReconcileService struct {
	db       *gorm.DB
	cfg      *config.Config
	registry *gateway.Registry
	rates    *rates.Table
	outbox   *repository.OutboxRepository

	// onEnqueue pokes the outbox worker after a commit; nil in tests.
	onEnqueue func()
}

func NewReconcileService(db *gorm.DB, cfg *config.Config, registry *gateway.Registry, table *rates.Table, outbox *repository.OutboxRepository) *ReconcileService {
	return &ReconcileService{db: db, cfg: cfg, registry: registry, rates: table, outbox: outbox}
}

// SetEnqueueHook installs the worker poke called after attribution events
// are committed.
func (s *ReconcileService) SetEnqueueHook(fn func()) { s.onEnqueue = fn }

// Reconcile verifies a payment reference against the configured providers
// and, exactly once per reference, completes the payment, provisions the
// buyer's account if needed and enqueues referral attribution.
func (s *ReconcileService) Reconcile(ctx context.Context, reference, referralCode, referralType string) (*ReconcileResult, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, ErrMissingReference
	}

	existing := s.lookupPayment(reference)

	var preferred gateway.Name
	if existing != nil {
		preferred, _ = gateway.ParseName(existing.Provider)
	}
	provider, verified, sawFailed := s.verify(ctx, reference, preferred)
	if verified == nil {
		if sawFailed && existing != nil {
			s.failPayment(existing.ID)
		}
		return nil, ErrVerificationFailed
	}

	email := s.resolveEmail(verified, existing)
	if email == "" {
		return nil, ErrNoCustomerEmail
	}
	account, err := s.ensureAccount(email)
	if err != nil {
		return nil, err
	}

	res := &ReconcileResult{
		Email:               email,
		UserID:              account.user.ID,
		IsNewAccount:        account.isNew,
		TempCredential:      account.tempCredential,
		CredentialExpiresIn: s.cfg.Referral.TempCredentialTTL,
	}

	payment, won, err := s.completePayment(existing, reference, provider, verified, account.user.ID, referralCode, referralType)
	if err != nil {
		return nil, err
	}
	res.Payment = payment
	res.AlreadyCompleted = !won
	if won && s.onEnqueue != nil {
		s.onEnqueue()
	}
	return res, nil
}

// lookupPayment implements the three-tier idempotent lookup: provider
// reference, then our checkout reference, then recent pending payments
// whose metadata mentions the value.
func (s *ReconcileService) lookupPayment(reference string) *models.Payment {
	repo := repository.NewPaymentRepository(s.db)
	if p, err := repo.GetByProviderReference(reference); err == nil {
		return p
	}
	if p, err := repo.GetByReference(reference); err == nil {
		return p
	}
	if p, err := repo.FindRecentPendingByMetadata(reference, s.cfg.Referral.PendingLookbackWindow); err == nil {
		return p
	}
	return nil
}

// verify probes providers preference-first and stops at the first
// normalized success. A provider error is not proof the transaction does
// not exist elsewhere, so the walk continues past failures. The third
// return reports whether any provider answered with a terminal failed
// status, which lets the caller settle a known pending payment.
func (s *ReconcileService) verify(ctx context.Context, reference string, preferred gateway.Name) (gateway.Name, *gateway.VerifyResult, bool) {
	sawFailed := false
	for _, p := range s.registry.VerifyOrder(preferred) {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Providers.CallTimeout)
		result, err := p.VerifyTransaction(callCtx, reference)
		cancel()
		if err != nil {
			continue
		}
		if result.Success && result.Status == gateway.StatusSuccess {
			return p.Name(), result, false
		}
		if result.Status == gateway.StatusFailed {
			sawFailed = true
		}
	}
	return "", nil, sawFailed
}

// failPayment moves a pending payment to FAILED after a provider reported
// the transaction as terminally failed. The conditional update never
// touches completed payments.
func (s *ReconcileService) failPayment(id uint) {
	ok, err := repository.NewPaymentRepository(s.db).FailIfPending(id)
	if err != nil {
		zap.L().Warn("failing payment", zap.Uint("payment_id", id), zap.Error(err))
		return
	}
	if ok {
		zap.L().Info("payment marked failed", zap.Uint("payment_id", id))
	}
}

func (s *ReconcileService) resolveEmail(verified *gateway.VerifyResult, existing *models.Payment) string {
	if verified.CustomerEmail != "" {
		return verified.CustomerEmail
	}
	if v, ok := verified.Metadata["email"].(string); ok && v != "" {
		return v
	}
	if existing != nil && existing.Metadata != "" {
		var meta map[string]interface{}
		if err := json.Unmarshal([]byte(existing.Metadata), &meta); err == nil {
			if v, ok := meta["email"].(string); ok {
				return v
			}
		}
	}
	return ""
}

type accountResult struct {
	user           *models.User
	isNew          bool
	tempCredential string
}

// ensureAccount finds the account for the email or provisions one with a
// temporary credential. Safe against a racing duplicate: the loser of the
// unique-email insert re-reads the winner's row.
func (s *ReconcileService) ensureAccount(email string) (*accountResult, error) {
	users := repository.NewUserRepository(s.db)
	if u, err := users.GetByEmail(email); err == nil {
		return &accountResult{user: u}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	tempPassword, err := auth.GenerateTempPassword()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	expires := time.Now().Add(s.cfg.Referral.TempCredentialTTL)
	u := &models.User{
		Email:                   email,
		PasswordHash:            string(hash),
		Role:                    domain.RoleLearner,
		MustResetPassword:       true,
		TempCredentialExpiresAt: &expires,
	}
	if err := users.Create(u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			winner, ferr := users.GetByEmail(email)
			if ferr != nil {
				return nil, ferr
			}
			return &accountResult{user: winner}, nil
		}
		return nil, err
	}
	return &accountResult{user: u, isNew: true, tempCredential: tempPassword}, nil
}

// completePayment is the sole write authority for Payment.status. It
// returns the payment and whether this caller performed the completing
// transition; the winner also enqueues the attribution event in the same
// transaction.
func (s *ReconcileService) completePayment(existing *models.Payment, reference string, provider gateway.Name, verified *gateway.VerifyResult, userID uint, referralCode, referralType string) (*models.Payment, bool, error) {
	baseUSD, err := s.rates.ToUSDCents(verified.AmountMinor, verified.Currency)
	if err != nil {
		return nil, false, err
	}
	paidAt := verified.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	if existing == nil {
		existing = &models.Payment{
			Reference:         reference,
			ProviderReference: reference,
			Provider:          string(provider),
			AmountCents:       verified.AmountMinor,
			Currency:          verified.Currency,
			Status:            domain.PaymentPending,
			PaymentType:       domain.PaymentTypeMembership,
			Metadata:          marshalMetadata(verified.Metadata),
		}
		if err := s.db.Create(existing).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Racing caller inserted it first; fall through to the CAS.
				winner, ferr := repository.NewPaymentRepository(s.db).GetByProviderReference(reference)
				if ferr != nil {
					return nil, false, ferr
				}
				existing = winner
			} else {
				return nil, false, err
			}
		}
	}

	won := false
	err = s.db.Transaction(func(tx *gorm.DB) error {
		payments := repository.NewPaymentRepository(tx)
		ok, err := payments.CompleteIfPending(existing.ID, baseUSD, paidAt)
		if err != nil {
			return err
		}
		won = ok
		if !ok {
			return nil
		}
		if userID != 0 {
			if err := tx.Model(&models.Payment{}).Where("id = ?", existing.ID).Update("user_id", userID).Error; err != nil {
				return err
			}
		}
		code, hint, hasAddon := resolveReferralHint(referralCode, referralType, existing, verified)
		if code == "" {
			return nil
		}
		payload, err := json.Marshal(AttributionRequest{
			ReferredUserID: userID,
			ReferralCode:   code,
			LinkTypeHint:   hint,
			PaymentID:      existing.ID,
			HasDcsAddon:    hasAddon,
		})
		if err != nil {
			return err
		}
		return repository.NewOutboxRepository(tx).Enqueue(tx, domain.EventReferralAttribution, string(payload))
	})
	if err != nil {
		return nil, false, err
	}

	fresh, err := repository.NewPaymentRepository(s.db).GetByID(existing.ID)
	if err != nil {
		return nil, false, err
	}
	if won {
		zap.L().Info("payment completed",
			zap.String("provider_reference", fresh.ProviderReference),
			zap.String("provider", fresh.Provider),
			zap.Int64("base_usd_cents", fresh.BaseUSDCents))
	}
	return fresh, won, nil
}

// resolveReferralHint prefers the caller-supplied code, then checkout
// metadata stored on the payment, then provider-returned metadata.
func resolveReferralHint(code, hint string, payment *models.Payment, verified *gateway.VerifyResult) (string, string, bool) {
	merged := make(map[string]interface{})
	for k, v := range verified.Metadata {
		merged[k] = v
	}
	if payment != nil && payment.Metadata != "" {
		var stored map[string]interface{}
		if err := json.Unmarshal([]byte(payment.Metadata), &stored); err == nil {
			for k, v := range stored {
				merged[k] = v
			}
		}
	}
	if code == "" {
		code = stringValue(merged["referral_code"])
	}
	if hint == "" {
		hint = stringValue(merged["referral_type"])
	}
	return code, hint, boolValue(merged["has_digital_cashflow_addon"])
}

func marshalMetadata(m map[string]interface{}) string {
	if len(m) == 0 {
		return ""
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(raw)
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

func boolValue(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1"
	case float64:
		return t != 0
	}
	return false
}

// InitializeCheckout creates the pending payment row for a new checkout.
func (s *ReconcileService) InitializeCheckout(userID *uint, reference, provider string, amountCents int64, currency, paymentType string, metadata map[string]interface{}) (*models.Payment, error) {
	if _, err := gateway.ParseName(provider); err != nil {
		return nil, err
	}
	if amountCents <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	p := &models.Payment{
		UserID:            userID,
		Reference:         reference,
		ProviderReference: reference,
		Provider:          provider,
		AmountCents:       amountCents,
		Currency:          strings.ToUpper(currency),
		Status:            domain.PaymentPending,
		PaymentType:       paymentType,
		Metadata:          marshalMetadata(metadata),
	}
	if p.PaymentType == "" {
		p.PaymentType = domain.PaymentTypeMembership
	}
	if err := repository.NewPaymentRepository(s.db).Create(p); err != nil {
		return nil, err
	}
	return p, nil
}
