package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"learnly/internal/domain"
	"learnly/internal/models"
)

func TestAttributeLearnerLink(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	referrer := createReferrer(t, db, "referrer@example.com", "ABC123")
	buyer := createUser(t, db, "buyer@example.com", domain.RoleLearner)

	svc := NewAttributionService(db, cfg)
	err := svc.Attribute(context.Background(), AttributionRequest{
		ReferredUserID: buyer.ID,
		ReferralCode:   "ABC123",
		PaymentID:      1,
	})
	if err != nil {
		t.Fatalf("attribute: %v", err)
	}

	var commissions []models.Commission
	db.Where("affiliate_id = ?", referrer.ID).Find(&commissions)
	if len(commissions) != 1 {
		t.Fatalf("commission count = %d, want 1", len(commissions))
	}
	c := commissions[0]
	if c.CommissionType != domain.CommissionLearnerInitial {
		t.Errorf("commission type = %s, want %s", c.CommissionType, domain.CommissionLearnerInitial)
	}
	if c.CommissionAmountCents != 800 {
		t.Errorf("commission amount = %d, want 800", c.CommissionAmountCents)
	}
	if c.BaseAmountCents != 1000 {
		t.Errorf("base amount = %d, want 1000", c.BaseAmountCents)
	}
}

func TestAttributeDcsLinkEarnsAddonBonus(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	referrer := createReferrer(t, db, "referrer@example.com", "ABC123")
	buyer := createUser(t, db, "buyer@example.com", domain.RoleLearner)

	svc := NewAttributionService(db, cfg)
	// The buyer did NOT purchase the addon; the bonus follows the link.
	err := svc.Attribute(context.Background(), AttributionRequest{
		ReferredUserID: buyer.ID,
		ReferralCode:   "ABC123",
		LinkTypeHint:   "dcs",
		PaymentID:      1,
		HasDcsAddon:    false,
	})
	if err != nil {
		t.Fatalf("attribute: %v", err)
	}

	var commissions []models.Commission
	db.Where("affiliate_id = ?", referrer.ID).Order("commission_type").Find(&commissions)
	if len(commissions) != 2 {
		t.Fatalf("commission count = %d, want 2", len(commissions))
	}
	byType := make(map[string]int64)
	for _, c := range commissions {
		byType[c.CommissionType] = c.CommissionAmountCents
	}
	if byType[domain.CommissionLearnerInitial] != 800 {
		t.Errorf("learner_initial = %d, want 800", byType[domain.CommissionLearnerInitial])
	}
	if byType[domain.CommissionDcsAddon] != 200 {
		t.Errorf("dcs_addon = %d, want 200", byType[domain.CommissionDcsAddon])
	}

	var referral models.Referral
	db.Where("referred_id = ?", buyer.ID).First(&referral)
	if referral.InitialPurchaseType != domain.PurchaseTypeLearner {
		t.Errorf("purchase type = %s, want %s", referral.InitialPurchaseType, domain.PurchaseTypeLearner)
	}
}

func TestAttributeCreatesProfileWithDeterministicLinks(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	referrer := createReferrer(t, db, "referrer@example.com", "ABC123")
	buyer := createUser(t, db, "buyer@example.com", domain.RoleLearner)

	svc := NewAttributionService(db, cfg)
	if err := svc.Attribute(context.Background(), AttributionRequest{
		ReferredUserID: buyer.ID,
		ReferralCode:   "ABC123",
		PaymentID:      1,
	}); err != nil {
		t.Fatalf("attribute: %v", err)
	}

	var profile models.AffiliateProfile
	if err := db.Where("user_id = ?", referrer.ID).First(&profile).Error; err != nil {
		t.Fatalf("profile not created: %v", err)
	}
	if profile.LearnerLink != "https://learnly.test/r/ABC123" {
		t.Errorf("learner link = %s", profile.LearnerLink)
	}
	if profile.DcsLink != "https://learnly.test/r/ABC123?type=dcs" {
		t.Errorf("dcs link = %s", profile.DcsLink)
	}
}

func TestAttributeSkipsSelfReferral(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	referrer := createReferrer(t, db, "referrer@example.com", "ABC123")

	svc := NewAttributionService(db, cfg)
	if err := svc.Attribute(context.Background(), AttributionRequest{
		ReferredUserID: referrer.ID,
		ReferralCode:   "ABC123",
		PaymentID:      1,
	}); err != nil {
		t.Fatalf("self referral must be a silent skip, got %v", err)
	}

	var count int64
	db.Model(&models.Referral{}).Count(&count)
	if count != 0 {
		t.Errorf("referral rows = %d, want 0", count)
	}
	db.Model(&models.Commission{}).Count(&count)
	if count != 0 {
		t.Errorf("commission rows = %d, want 0", count)
	}
}

func TestAttributeSkipsUnknownCode(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	buyer := createUser(t, db, "buyer@example.com", domain.RoleLearner)

	svc := NewAttributionService(db, cfg)
	if err := svc.Attribute(context.Background(), AttributionRequest{
		ReferredUserID: buyer.ID,
		ReferralCode:   "NOSUCH",
		PaymentID:      1,
	}); err != nil {
		t.Fatalf("unknown code must be a silent skip, got %v", err)
	}

	var count int64
	db.Model(&models.Commission{}).Count(&count)
	if count != 0 {
		t.Errorf("commission rows = %d, want 0", count)
	}
}

func TestAttributeResolvesCodeFromAffiliateProfile(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	// No referral_codes row; the code exists only on the profile.
	referrer := createUser(t, db, "referrer@example.com", domain.RoleAffiliate)
	createProfile(t, db, referrer.ID, "PROF99", 0)
	buyer := createUser(t, db, "buyer@example.com", domain.RoleLearner)

	svc := NewAttributionService(db, cfg)
	if err := svc.Attribute(context.Background(), AttributionRequest{
		ReferredUserID: buyer.ID,
		ReferralCode:   "PROF99",
		PaymentID:      1,
	}); err != nil {
		t.Fatalf("attribute: %v", err)
	}

	var referral models.Referral
	if err := db.Where("referrer_id = ?", referrer.ID).First(&referral).Error; err != nil {
		t.Fatalf("referral not created via profile fallback: %v", err)
	}
}

func TestAttributeAccumulatesEarnings(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	referrer := createReferrer(t, db, "referrer@example.com", "ABC123")
	svc := NewAttributionService(db, cfg)

	const n = 5
	for i := 0; i < n; i++ {
		buyer := createUser(t, db, fmt.Sprintf("buyer%d@example.com", i), domain.RoleLearner)
		hint := ""
		if i%2 == 0 {
			hint = "dcs"
		}
		if err := svc.Attribute(context.Background(), AttributionRequest{
			ReferredUserID: buyer.ID,
			ReferralCode:   "ABC123",
			LinkTypeHint:   hint,
			PaymentID:      uint(i + 1),
		}); err != nil {
			t.Fatalf("attribute %d: %v", i, err)
		}
	}

	// 3 dcs referrals at 1000 plus 2 learner referrals at 800.
	want := int64(3*1000 + 2*800)
	var profile models.AffiliateProfile
	db.Where("user_id = ?", referrer.ID).First(&profile)
	if profile.TotalEarningsCents != want {
		t.Errorf("earnings = %d, want %d", profile.TotalEarningsCents, want)
	}
	if profile.AvailableBalanceCents != want {
		t.Errorf("available balance = %d, want %d", profile.AvailableBalanceCents, want)
	}
	if profile.LifetimeReferrals != n {
		t.Errorf("lifetime referrals = %d, want %d", profile.LifetimeReferrals, n)
	}

	// The ledger must balance: profile totals equal the commission sum.
	var sum int64
	db.Model(&models.Commission{}).Where("affiliate_id = ?", referrer.ID).
		Select("COALESCE(SUM(commission_amount_cents), 0)").Scan(&sum)
	if sum != profile.TotalEarningsCents {
		t.Errorf("commission sum %d != profile earnings %d", sum, profile.TotalEarningsCents)
	}
}

func TestAttributeRedeliveryDoesNotDoubleCredit(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	referrer := createReferrer(t, db, "referrer@example.com", "ABC123")
	buyer := createUser(t, db, "buyer@example.com", domain.RoleLearner)

	svc := NewAttributionService(db, cfg)
	req := AttributionRequest{
		ReferredUserID: buyer.ID,
		ReferralCode:   "ABC123",
		LinkTypeHint:   "dcs",
		PaymentID:      42,
	}
	// The outbox delivers at least once; a crash between the handler's
	// commit and the processed mark redelivers the same event.
	for i := 0; i < 3; i++ {
		if err := svc.Attribute(context.Background(), req); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	var referrals int64
	db.Model(&models.Referral{}).Where("payment_id = ?", 42).Count(&referrals)
	if referrals != 1 {
		t.Errorf("referral rows = %d, want 1", referrals)
	}
	var commissions int64
	db.Model(&models.Commission{}).Where("affiliate_id = ?", referrer.ID).Count(&commissions)
	if commissions != 2 {
		t.Errorf("commission rows = %d, want 2", commissions)
	}
	var profile models.AffiliateProfile
	db.Where("user_id = ?", referrer.ID).First(&profile)
	if profile.TotalEarningsCents != 1000 {
		t.Errorf("earnings = %d, want a single 1000 credit", profile.TotalEarningsCents)
	}
	if profile.LifetimeReferrals != 1 {
		t.Errorf("lifetime referrals = %d, want 1", profile.LifetimeReferrals)
	}
}

func TestAttributeSkipsZeroPaymentID(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	createReferrer(t, db, "referrer@example.com", "ABC123")
	buyer := createUser(t, db, "buyer@example.com", domain.RoleLearner)

	svc := NewAttributionService(db, cfg)
	if err := svc.Attribute(context.Background(), AttributionRequest{
		ReferredUserID: buyer.ID,
		ReferralCode:   "ABC123",
	}); err != nil {
		t.Fatalf("zero payment id must be a silent skip, got %v", err)
	}
	var count int64
	db.Model(&models.Referral{}).Count(&count)
	if count != 0 {
		t.Errorf("referral rows = %d, want 0", count)
	}
}

func TestAttributeMarksLatestClickConverted(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	referrer := createReferrer(t, db, "referrer@example.com", "ABC123")
	buyer := createUser(t, db, "buyer@example.com", domain.RoleLearner)

	old := models.AffiliateLink{AffiliateID: referrer.ID, Code: "ABC123", LinkType: domain.LinkTypeLearner, ClickedAt: time.Now().Add(-time.Hour)}
	recent := models.AffiliateLink{AffiliateID: referrer.ID, Code: "ABC123", LinkType: domain.LinkTypeDcs, ClickedAt: time.Now()}
	db.Create(&old)
	db.Create(&recent)

	svc := NewAttributionService(db, cfg)
	if err := svc.Attribute(context.Background(), AttributionRequest{
		ReferredUserID: buyer.ID,
		ReferralCode:   "ABC123",
		PaymentID:      1,
	}); err != nil {
		t.Fatalf("attribute: %v", err)
	}

	var gotRecent models.AffiliateLink
	db.First(&gotRecent, recent.ID)
	if !gotRecent.Converted || gotRecent.ConvertedBy == nil || *gotRecent.ConvertedBy != buyer.ID {
		t.Errorf("most recent click not marked converted: %+v", gotRecent)
	}
	var gotOld models.AffiliateLink
	db.First(&gotOld, old.ID)
	if gotOld.Converted {
		t.Error("older click must stay unconverted")
	}
}
