package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// PaystackProvider verifies transactions and initiates transfers via the
// Paystack REST API (bearer secret key).
type PaystackProvider struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewPaystackProvider(baseURL, secretKey string, timeout time.Duration) *PaystackProvider {
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PaystackProvider{
		baseURL:   baseURL,
		secretKey: secretKey,
		client:    &http.Client{Timeout: timeout},
	}
}

func (p *PaystackProvider) Name() Name { return Paystack }

type paystackVerifyResp struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status   string `json:"status"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		PaidAt   string `json:"paid_at"`
		Customer struct {
			Email string `json:"email"`
		} `json:"customer"`
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"data"`
}

// normalizePaystackStatus maps Paystack's vocabulary onto the shared enum.
func normalizePaystackStatus(s string) Status {
	switch s {
	case "success":
		return StatusSuccess
	case "failed", "reversed":
		return StatusFailed
	case "abandoned", "ongoing", "pending", "queued", "processing":
		return StatusPending
	}
	return StatusUnknown
}

func (p *PaystackProvider) VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error) {
	var out paystackVerifyResp
	code, err := p.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &out)
	if err != nil {
		perr := newProviderError(Paystack, "verify", code, err)
		logEvent(Paystack, "verify_transaction", StatusUnknown, perr, zap.String("reference", reference))
		return nil, perr
	}
	status := normalizePaystackStatus(out.Data.Status)
	res := &VerifyResult{
		Success:       out.Status && status == StatusSuccess,
		Status:        status,
		AmountMinor:   out.Data.Amount,
		Currency:      out.Data.Currency,
		CustomerEmail: out.Data.Customer.Email,
		Metadata:      out.Data.Metadata,
	}
	if out.Data.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, out.Data.PaidAt); err == nil {
			res.PaidAt = t
		}
	}
	logEvent(Paystack, "verify_transaction", status, nil,
		zap.String("reference", reference),
		zap.Int64("amount_minor", res.AmountMinor),
		zap.String("currency", res.Currency))
	return res, nil
}

type paystackRecipientResp struct {
	Status bool `json:"status"`
	Data   struct {
		RecipientCode string `json:"recipient_code"`
	} `json:"data"`
}

type paystackTransferResp struct {
	Status bool `json:"status"`
	Data   struct {
		TransferCode string `json:"transfer_code"`
		Reference    string `json:"reference"`
	} `json:"data"`
}

// InitiatePayout creates a transfer recipient and a transfer. Paystack has
// no single-call payout; the recipient step is repeated per payout since
// recipients are cheap and idempotent on their side.
func (p *PaystackProvider) InitiatePayout(ctx context.Context, req PayoutRequest) (*PayoutResult, error) {
	recipientType := "nuban"
	account := req.AccountNumber
	if req.Channel == "mobile_money" {
		recipientType = "mobile_money"
		account = req.MobileNumber
	}
	var rec paystackRecipientResp
	code, err := p.do(ctx, http.MethodPost, "/transferrecipient", map[string]interface{}{
		"type":           recipientType,
		"name":           req.AccountName,
		"account_number": account,
		"bank_code":      req.BankCode,
		"currency":       req.Currency,
	}, &rec)
	if err != nil || !rec.Status {
		if err == nil {
			err = fmt.Errorf("recipient creation declined")
		}
		perr := newProviderError(Paystack, "payout_recipient", code, err)
		logEvent(Paystack, "initiate_payout", StatusFailed, perr,
			zap.String("reference", req.Reference),
			zap.String("destination", maskAccount(account)))
		return nil, perr
	}
	var tr paystackTransferResp
	code, err = p.do(ctx, http.MethodPost, "/transfer", map[string]interface{}{
		"source":    "balance",
		"amount":    req.AmountMinor,
		"currency":  req.Currency,
		"reference": req.Reference,
		"recipient": rec.Data.RecipientCode,
		"reason":    req.Narration,
	}, &tr)
	if err != nil || !tr.Status {
		if err == nil {
			err = fmt.Errorf("transfer declined")
		}
		perr := newProviderError(Paystack, "payout_transfer", code, err)
		logEvent(Paystack, "initiate_payout", StatusFailed, perr,
			zap.String("reference", req.Reference),
			zap.String("destination", maskAccount(account)))
		return nil, perr
	}
	logEvent(Paystack, "initiate_payout", StatusPending, nil,
		zap.String("reference", req.Reference),
		zap.String("transfer_code", tr.Data.TransferCode),
		zap.String("destination", maskAccount(account)))
	return &PayoutResult{Success: true, ProviderReference: tr.Data.TransferCode}, nil
}

// ValidateWebhookSignature checks the x-paystack-signature header:
// HMAC-SHA512 of the raw body keyed by the secret key.
func (p *PaystackProvider) ValidateWebhookSignature(payload []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(p.secretKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// do performs one authenticated call and decodes the JSON response into
// out. Non-2xx responses and malformed JSON are returned as errors, never
// panics.
func (p *PaystackProvider) do(ctx context.Context, method, path string, body interface{}, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("unexpected response: %s", truncate(raw, 200))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("malformed response: %w", err)
	}
	return resp.StatusCode, nil
}

// truncate caps an error snippet at n bytes, backing off to the previous
// rune boundary so a multi-byte character is never split.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	return string(b[:n]) + "..."
}
