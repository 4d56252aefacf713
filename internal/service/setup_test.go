package service

import (
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"learnly/config"
	"learnly/internal/database"
	"learnly/internal/domain"
	"learnly/internal/models"
	"learnly/internal/rates"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	zap.ReplaceGlobals(zap.NewNop())
	os.Exit(m.Run())
}

var testDBSeq int64

// newTestDB opens a fresh named in-memory sqlite database per test so
// tests never share state.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Providers: config.ProvidersConfig{
			VerifyOrder: []string{"paystack", "kora", "stripe"},
			CallTimeout: time.Second,
		},
		Referral: config.ReferralConfig{
			LinkBase:              "https://learnly.test",
			TempCredentialTTL:     24 * time.Hour,
			PendingLookbackWindow: time.Hour,
		},
		Outbox: config.OutboxConfig{
			PollInterval: time.Second,
			MaxAttempts:  3,
			RetryBackoff: 0,
		},
	}
}

func testRates(t *testing.T) *rates.Table {
	t.Helper()
	table, err := rates.Load("")
	if err != nil {
		t.Fatalf("load rates: %v", err)
	}
	return table
}

func createUser(t *testing.T, db *gorm.DB, email, role string) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", Role: role}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

// createReferrer sets up a user with an active referral code.
func createReferrer(t *testing.T, db *gorm.DB, email, code string) *models.User {
	t.Helper()
	u := createUser(t, db, email, domain.RoleAffiliate)
	if err := db.Create(&models.ReferralCode{UserID: u.ID, Code: code, IsActive: true}).Error; err != nil {
		t.Fatalf("create referral code %s: %v", code, err)
	}
	return u
}

func createProfile(t *testing.T, db *gorm.DB, userID uint, code string, balanceCents int64) *models.AffiliateProfile {
	t.Helper()
	p := &models.AffiliateProfile{
		UserID:                userID,
		ReferralCode:          code,
		TotalEarningsCents:    balanceCents,
		AvailableBalanceCents: balanceCents,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create affiliate profile: %v", err)
	}
	return p
}
