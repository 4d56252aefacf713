package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learnly/config"
	"learnly/internal/domain"
	"learnly/internal/models"
	"learnly/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AttributionRequest is the outbox payload for one attribution run.
type AttributionRequest struct {
	ReferredUserID uint   `json:"referred_user_id"`
	ReferralCode   string `json:"referral_code"`
	LinkTypeHint   string `json:"link_type_hint"`
	PaymentID      uint   `json:"payment_id"`
	HasDcsAddon    bool   `json:"has_dcs_addon"`
}

// AttributionService resolves a referral code to a referrer and credits
// the deterministic commission schedule. It runs only after the payment
// is durably completed; its failures are retried by the outbox worker and
// never surfaced to the buyer.
type AttributionService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewAttributionService(db *gorm.DB, cfg *config.Config) *AttributionService {
	return &AttributionService{db: db, cfg: cfg}
}

// errAlreadyAttributed signals a redelivered event whose payment was
// attributed by an earlier delivery.
var errAlreadyAttributed = errors.New("payment already attributed")

// Attribute runs one attribution. A stale or malformed code is not an
// error: the run aborts silently, matching the best-effort contract.
// Datastore failures return an error so the worker retries. The outbox
// delivers at least once, so the run is idempotent per payment: the
// unique referral-per-payment constraint turns a redelivery into a no-op
// instead of a second credit.
func (s *AttributionService) Attribute(ctx context.Context, req AttributionRequest) error {
	if req.ReferralCode == "" || req.ReferredUserID == 0 || req.PaymentID == 0 {
		return nil
	}
	referrerID, ok, err := s.resolveReferrer(req.ReferralCode)
	if err != nil {
		return err
	}
	if !ok {
		zap.L().Info("attribution skipped: unknown referral code",
			zap.String("referral_code", req.ReferralCode))
		return nil
	}
	if referrerID == req.ReferredUserID {
		zap.L().Info("attribution skipped: self referral",
			zap.Uint("user_id", referrerID))
		return nil
	}

	profile, err := s.ensureProfile(referrerID, req.ReferralCode)
	if err != nil {
		return err
	}

	linkType := domain.LinkTypeLearner
	if req.LinkTypeHint == "dcs" || req.LinkTypeHint == "affiliate" {
		linkType = domain.LinkTypeDcs
	}
	purchaseType := domain.PurchaseTypeLearner
	if req.HasDcsAddon {
		purchaseType = domain.PurchaseTypeLearnerDcs
	}

	var totalCents int64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		referral := &models.Referral{
			ReferrerID:          referrerID,
			ReferredID:          req.ReferredUserID,
			PaymentID:           req.PaymentID,
			ReferralCode:        req.ReferralCode,
			LinkType:            linkType,
			InitialPurchaseType: purchaseType,
			Status:              domain.ReferralCompleted,
			CompletedAt:         &now,
		}
		if err := repository.NewReferralRepository(tx).CreateReferral(referral); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errAlreadyAttributed
			}
			return err
		}

		commissions := repository.NewCommissionRepository(tx)
		for _, c := range commissionSchedule(linkType, profile.UserID, referral.ID, req.PaymentID) {
			if err := commissions.Create(c); err != nil {
				return err
			}
			totalCents += c.CommissionAmountCents
		}
		return repository.NewAffiliateRepository(tx).CreditEarnings(profile.UserID, totalCents)
	})
	if errors.Is(err, errAlreadyAttributed) {
		zap.L().Info("attribution skipped: payment already attributed",
			zap.Uint("payment_id", req.PaymentID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("attribution for payment %d: %w", req.PaymentID, err)
	}

	s.markLinkConverted(referrerID, req.ReferredUserID)

	zap.L().Info("referral attributed",
		zap.Uint("referrer_id", referrerID),
		zap.Uint("referred_id", req.ReferredUserID),
		zap.String("link_type", linkType),
		zap.Int64("commission_cents", totalCents))
	return nil
}

// resolveReferrer tries the referral-code table first, then falls back to
// an affiliate profile keyed by the same code string.
func (s *AttributionService) resolveReferrer(code string) (uint, bool, error) {
	referrals := repository.NewReferralRepository(s.db)
	if rc, err := referrals.GetActiveCode(code); err == nil {
		return rc.UserID, true, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, err
	}
	affiliates := repository.NewAffiliateRepository(s.db)
	if p, err := affiliates.GetByCode(code); err == nil {
		return p.UserID, true, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, err
	}
	return 0, false, nil
}

// ensureProfile lazily creates the affiliate profile with zeroed counters
// and the two deterministic promotional links.
func (s *AttributionService) ensureProfile(userID uint, code string) (*models.AffiliateProfile, error) {
	affiliates := repository.NewAffiliateRepository(s.db)
	if p, err := affiliates.GetByUserID(userID); err == nil {
		return p, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	p := &models.AffiliateProfile{
		UserID:       userID,
		ReferralCode: code,
		LearnerLink:  fmt.Sprintf("%s/r/%s", s.cfg.Referral.LinkBase, code),
		DcsLink:      fmt.Sprintf("%s/r/%s?type=dcs", s.cfg.Referral.LinkBase, code),
	}
	if err := affiliates.Create(p); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return affiliates.GetByUserID(userID)
		}
		return nil, err
	}
	return p, nil
}

// commissionSchedule is deterministic: learner_initial is always earned;
// the dcs_addon bonus is earned for the dcs link, not for what the buyer
// bought.
func commissionSchedule(linkType string, affiliateID, referralID, paymentID uint) []*models.Commission {
	out := []*models.Commission{{
		AffiliateID:           affiliateID,
		ReferralID:            referralID,
		PaymentID:             paymentID,
		CommissionType:        domain.CommissionLearnerInitial,
		BaseAmountCents:       domain.CommissionBaseCents,
		CommissionRate:        decimal.RequireFromString(domain.CommissionLearnerRate),
		CommissionAmountCents: domain.CommissionLearnerCents,
		CommissionCurrency:    domain.BaseCurrency,
		Status:                domain.CommissionAvailable,
	}}
	if linkType == domain.LinkTypeDcs {
		out = append(out, &models.Commission{
			AffiliateID:           affiliateID,
			ReferralID:            referralID,
			PaymentID:             paymentID,
			CommissionType:        domain.CommissionDcsAddon,
			BaseAmountCents:       domain.CommissionBaseCents,
			CommissionRate:        decimal.RequireFromString("0.20"),
			CommissionAmountCents: domain.CommissionDcsBonusCents,
			CommissionCurrency:    domain.BaseCurrency,
			Status:                domain.CommissionAvailable,
		})
	}
	return out
}

// markLinkConverted marks the referrer's most recent unconverted click as
// converted by the new user. Best effort: no session correlation exists,
// and a miss only costs click analytics, never money.
func (s *AttributionService) markLinkConverted(referrerID, convertedBy uint) {
	affiliates := repository.NewAffiliateRepository(s.db)
	link, err := affiliates.LatestUnconvertedLink(referrerID)
	if err != nil {
		return
	}
	if err := affiliates.MarkConverted(link.ID, convertedBy); err != nil {
		zap.L().Warn("link conversion marking failed",
			zap.Uint("link_id", link.ID), zap.Error(err))
	}
}
