package gateway

import (
	"context"
	"testing"
)

type stubProvider struct{ name Name }

func (s *stubProvider) Name() Name { return s.name }
func (s *stubProvider) VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error) {
	return &VerifyResult{}, nil
}
func (s *stubProvider) InitiatePayout(ctx context.Context, req PayoutRequest) (*PayoutResult, error) {
	return &PayoutResult{}, nil
}
func (s *stubProvider) ValidateWebhookSignature(payload []byte, signature string) bool { return true }

func TestParseName(t *testing.T) {
	for _, valid := range []string{"paystack", "kora", "stripe"} {
		if _, err := ParseName(valid); err != nil {
			t.Errorf("ParseName(%q) = %v", valid, err)
		}
	}
	for _, invalid := range []string{"", "Paystack", "flutterwave", "PAYSTACK"} {
		if _, err := ParseName(invalid); err == nil {
			t.Errorf("ParseName(%q) accepted", invalid)
		}
	}
}

func TestRegistryVerifyOrder(t *testing.T) {
	paystack := &stubProvider{name: Paystack}
	kora := &stubProvider{name: Kora}
	stripe := &stubProvider{name: Stripe}
	r := NewRegistry([]Name{Paystack, Kora, Stripe}, paystack, kora, stripe)

	names := func(ps []Provider) []Name {
		var out []Name
		for _, p := range ps {
			out = append(out, p.Name())
		}
		return out
	}

	got := names(r.VerifyOrder(""))
	want := []Name{Paystack, Kora, Stripe}
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}

	// The preferred provider moves to the front without duplication.
	got = names(r.VerifyOrder(Kora))
	want = []Name{Kora, Paystack, Stripe}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("preferred order = %v, want %v", got, want)
		}
	}
	if len(got) != 3 {
		t.Fatalf("preferred provider duplicated: %v", got)
	}
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry([]Name{Paystack}, &stubProvider{name: Paystack})
	if _, ok := r.Get(Paystack); !ok {
		t.Error("registered provider not found")
	}
	if _, ok := r.Get(Stripe); ok {
		t.Error("unregistered provider found")
	}
}

func TestProviderErrorMessage(t *testing.T) {
	err := newProviderError(Paystack, "verify", 404, context.DeadlineExceeded)
	if err.Error() != "paystack verify: http 404: context deadline exceeded" {
		t.Errorf("message = %s", err.Error())
	}
	if err.Unwrap() != context.DeadlineExceeded {
		t.Error("unwrap mismatch")
	}
}
