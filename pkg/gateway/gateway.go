package gateway

import (
	"context"
	"fmt"
	"time"
)

// Name is the closed set of supported payment providers. Dispatch always
// goes through ParseName / Registry, never raw strings.
type Name string

const (
	Paystack Name = "paystack"
	Kora     Name = "kora"
	Stripe   Name = "stripe"
)

func ParseName(s string) (Name, error) {
	switch Name(s) {
	case Paystack, Kora, Stripe:
		return Name(s), nil
	}
	return "", fmt.Errorf("gateway: unsupported provider %q", s)
}

// Status is the normalized transaction status. Providers report their own
// vocabulary ("success", "successful", "succeeded"); adapters map it here
// so calling code never sees provider-specific strings.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
	StatusUnknown Status = "unknown"
)

// VerifyResult is the normalized outcome of a transaction verification.
type VerifyResult struct {
	Success       bool
	Status        Status
	AmountMinor   int64
	Currency      string
	PaidAt        time.Time
	CustomerEmail string
	Metadata      map[string]interface{}
}

// PayoutRequest describes a single payout to a bank account or mobile
// money wallet.
type PayoutRequest struct {
	Reference     string
	AmountMinor   int64
	Currency      string
	Channel       string // bank | mobile_money
	AccountName   string
	AccountNumber string
	BankCode      string
	MobileNumber  string
	Narration     string
}

type PayoutResult struct {
	Success           bool
	ProviderReference string
}

// Provider is the uniform contract over payment providers. Implementations
// never panic and never leak transport errors as untyped values: every
// HTTP or parse failure comes back as a *ProviderError.
type Provider interface {
	Name() Name
	VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error)
	InitiatePayout(ctx context.Context, req PayoutRequest) (*PayoutResult, error)
	ValidateWebhookSignature(payload []byte, signature string) bool
}

// ProviderError is the typed failure every adapter converts transport and
// protocol errors into.
type ProviderError struct {
	Provider   Name
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: http %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func newProviderError(p Name, op string, code int, err error) *ProviderError {
	return &ProviderError{Provider: p, Op: op, StatusCode: code, Err: err}
}
