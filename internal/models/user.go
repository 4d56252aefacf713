package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the minimal account record owned by this core. Full profile
// management lives in the catalog service; reconciliation only needs to
// find-or-provision an account by email.
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Email        string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	Role         string `gorm:"size:20;not null;default:'LEARNER'" json:"role"`

	// Set when the account was provisioned with a temporary credential
	// during payment verification. The credential is invalid after
	// TempCredentialExpiresAt regardless of the hash still matching.
	MustResetPassword       bool       `gorm:"default:false" json:"must_reset_password"`
	TempCredentialExpiresAt *time.Time `json:"temp_credential_expires_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }
