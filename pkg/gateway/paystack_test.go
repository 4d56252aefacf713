package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestPaystackVerifySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/TXN-100" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Errorf("auth header = %s", got)
		}
		w.Write([]byte(`{
			"status": true,
			"message": "Verification successful",
			"data": {
				"status": "success",
				"amount": 1000,
				"currency": "USD",
				"paid_at": "2026-08-01T10:30:00Z",
				"customer": {"email": "buyer@example.com"},
				"metadata": {"referral_code": "ABC123"}
			}
		}`))
	}))
	defer srv.Close()

	p := NewPaystackProvider(srv.URL, "sk_test", time.Second)
	res, err := p.VerifyTransaction(context.Background(), "TXN-100")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.Success || res.Status != StatusSuccess {
		t.Errorf("result = %+v", res)
	}
	if res.AmountMinor != 1000 || res.Currency != "USD" {
		t.Errorf("amount = %d %s", res.AmountMinor, res.Currency)
	}
	if res.CustomerEmail != "buyer@example.com" {
		t.Errorf("email = %s", res.CustomerEmail)
	}
	if res.Metadata["referral_code"] != "ABC123" {
		t.Errorf("metadata = %v", res.Metadata)
	}
	if res.PaidAt.IsZero() {
		t.Error("paid_at not parsed")
	}
}

func TestPaystackVerifyStatusNormalization(t *testing.T) {
	cases := []struct {
		raw  string
		want Status
	}{
		{"success", StatusSuccess},
		{"failed", StatusFailed},
		{"reversed", StatusFailed},
		{"abandoned", StatusPending},
		{"processing", StatusPending},
		{"something-new", StatusUnknown},
	}
	for _, tc := range cases {
		if got := normalizePaystackStatus(tc.raw); got != tc.want {
			t.Errorf("normalizePaystackStatus(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestPaystackVerifyAbandonedIsNotSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": true, "data": {"status": "abandoned", "amount": 1000, "currency": "USD"}}`))
	}))
	defer srv.Close()

	p := NewPaystackProvider(srv.URL, "sk_test", time.Second)
	res, err := p.VerifyTransaction(context.Background(), "TXN-1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Success {
		t.Error("abandoned transaction reported as success")
	}
	if res.Status != StatusPending {
		t.Errorf("status = %s, want %s", res.Status, StatusPending)
	}
}

func TestPaystackVerifyHTTPErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status": false, "message": "Transaction reference not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewPaystackProvider(srv.URL, "sk_test", time.Second)
	_, err := p.VerifyTransaction(context.Background(), "TXN-missing")
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %T, want *ProviderError", err)
	}
	if perr.Provider != Paystack || perr.StatusCode != http.StatusNotFound {
		t.Errorf("provider error = %+v", perr)
	}
}

func TestPaystackVerifyMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway timeout</html>`))
	}))
	defer srv.Close()

	p := NewPaystackProvider(srv.URL, "sk_test", time.Second)
	_, err := p.VerifyTransaction(context.Background(), "TXN-1")
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %T, want *ProviderError", err)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	cases := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short ascii", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"ascii cut", "hello world", 5, "hello..."},
		{"boundary on rune start", "a₦b", 4, "a₦..."},
		{"cut inside rune", "a₦b", 2, "a..."},
		{"cut inside first rune", "₦", 1, "..."},
	}
	for _, tc := range cases {
		got := truncate([]byte(tc.in), tc.n)
		if got != tc.want {
			t.Errorf("%s: truncate(%q, %d) = %q, want %q", tc.name, tc.in, tc.n, got, tc.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("%s: truncate produced invalid UTF-8: %q", tc.name, got)
		}
	}
}

func TestPaystackErrorSnippetIsValidUTF8(t *testing.T) {
	body := strings.Repeat("₦", 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, body, http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewPaystackProvider(srv.URL, "sk_test", time.Second)
	_, err := p.VerifyTransaction(context.Background(), "TXN-1")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !utf8.ValidString(err.Error()) {
		t.Errorf("error message contains a split rune: %q", err.Error())
	}
}

func TestPaystackWebhookSignature(t *testing.T) {
	p := NewPaystackProvider("", "sk_test", time.Second)
	payload := []byte(`{"event":"charge.success","data":{"reference":"TXN-100"}}`)

	mac := hmac.New(sha512.New, []byte("sk_test"))
	mac.Write(payload)
	valid := hex.EncodeToString(mac.Sum(nil))

	if !p.ValidateWebhookSignature(payload, valid) {
		t.Error("valid signature rejected")
	}
	if p.ValidateWebhookSignature(payload, "deadbeef") {
		t.Error("invalid signature accepted")
	}
	if p.ValidateWebhookSignature([]byte(`{"tampered":true}`), valid) {
		t.Error("tampered payload accepted")
	}
}

func TestPaystackInitiatePayout(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/transferrecipient":
			w.Write([]byte(`{"status": true, "data": {"recipient_code": "RCP_123"}}`))
		case "/transfer":
			w.Write([]byte(`{"status": true, "data": {"transfer_code": "TRF_456", "reference": "wd-1"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	p := NewPaystackProvider(srv.URL, "sk_test", time.Second)
	res, err := p.InitiatePayout(context.Background(), PayoutRequest{
		Reference:     "wd-1",
		AmountMinor:   155000,
		Currency:      "NGN",
		Channel:       "bank",
		AccountName:   "Jane Doe",
		AccountNumber: "0123456789",
		BankCode:      "058",
	})
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if !res.Success || res.ProviderReference != "TRF_456" {
		t.Errorf("result = %+v", res)
	}
	if len(paths) != 2 {
		t.Errorf("calls = %v, want recipient then transfer", paths)
	}
}

func TestPaystackPayoutDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": false}`))
	}))
	defer srv.Close()

	p := NewPaystackProvider(srv.URL, "sk_test", time.Second)
	_, err := p.InitiatePayout(context.Background(), PayoutRequest{Reference: "wd-1", Channel: "bank"})
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %T, want *ProviderError", err)
	}
	if perr.Op != "payout_recipient" {
		t.Errorf("op = %s", perr.Op)
	}
}
