package gateway

import (
	"context"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

// StripeProvider verifies card payments through the Stripe SDK. The client
// is constructed per adapter instance; no global stripe.Key.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api, webhookSecret: webhookSecret}
}

func (p *StripeProvider) Name() Name { return Stripe }

func normalizeStripeStatus(s stripe.PaymentIntentStatus) Status {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSuccess
	case stripe.PaymentIntentStatusCanceled:
		return StatusFailed
	case stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresCapture,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresPaymentMethod:
		return StatusPending
	}
	return StatusUnknown
}

func (p *StripeProvider) VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.api.PaymentIntents.Get(reference, params)
	if err != nil {
		perr := newProviderError(Stripe, "verify", stripeErrorCode(err), err)
		logEvent(Stripe, "verify_transaction", StatusUnknown, perr, zap.String("reference", reference))
		return nil, perr
	}
	status := normalizeStripeStatus(pi.Status)
	metadata := make(map[string]interface{}, len(pi.Metadata))
	for k, v := range pi.Metadata {
		metadata[k] = v
	}
	res := &VerifyResult{
		Success:       status == StatusSuccess,
		Status:        status,
		AmountMinor:   pi.Amount,
		Currency:      strings.ToUpper(string(pi.Currency)),
		CustomerEmail: pi.ReceiptEmail,
		Metadata:      metadata,
	}
	if res.CustomerEmail == "" && pi.LatestCharge != nil && pi.LatestCharge.BillingDetails != nil {
		res.CustomerEmail = pi.LatestCharge.BillingDetails.Email
	}
	if status == StatusSuccess {
		res.PaidAt = time.Unix(pi.Created, 0)
	}
	logEvent(Stripe, "verify_transaction", status, nil,
		zap.String("reference", reference),
		zap.Int64("amount_minor", res.AmountMinor),
		zap.String("currency", res.Currency))
	return res, nil
}

// InitiatePayout sends a payout from the Stripe balance to the connected
// bank account. Stripe payouts do not target arbitrary third-party
// accounts, so batch exports remain the path for affiliate bank runs.
func (p *StripeProvider) InitiatePayout(ctx context.Context, req PayoutRequest) (*PayoutResult, error) {
	params := &stripe.PayoutParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(strings.ToLower(req.Currency)),
	}
	params.Context = ctx
	params.AddMetadata("reference", req.Reference)
	po, err := p.api.Payouts.New(params)
	if err != nil {
		perr := newProviderError(Stripe, "payout", stripeErrorCode(err), err)
		logEvent(Stripe, "initiate_payout", StatusFailed, perr, zap.String("reference", req.Reference))
		return nil, perr
	}
	logEvent(Stripe, "initiate_payout", StatusPending, nil,
		zap.String("reference", req.Reference),
		zap.String("payout_id", po.ID))
	return &PayoutResult{Success: true, ProviderReference: po.ID}, nil
}

// ValidateWebhookSignature verifies the Stripe-Signature header using the
// SDK's constant-time check.
func (p *StripeProvider) ValidateWebhookSignature(payload []byte, signature string) bool {
	_, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	return err == nil
}

func stripeErrorCode(err error) int {
	if se, ok := err.(*stripe.Error); ok {
		return se.HTTPStatusCode
	}
	return 0
}
