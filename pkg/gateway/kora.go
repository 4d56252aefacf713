package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// KoraProvider verifies charges and disburses payouts via the Korapay
// merchant API (bearer secret key).
type KoraProvider struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	client        *http.Client
}

func NewKoraProvider(baseURL, secretKey, webhookSecret string, timeout time.Duration) *KoraProvider {
	if baseURL == "" {
		baseURL = "https://api.korapay.com"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &KoraProvider{
		baseURL:       baseURL,
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		client:        &http.Client{Timeout: timeout},
	}
}

func (p *KoraProvider) Name() Name { return Kora }

type koraChargeResp struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status   string `json:"status"`
		Amount   json.Number `json:"amount"`
		Currency string `json:"currency"`
		Customer struct {
			Email string `json:"email"`
		} `json:"customer"`
		Metadata    map[string]interface{} `json:"metadata"`
		CompletedAt string                 `json:"completed_at"`
	} `json:"data"`
}

// normalizeKoraStatus maps Kora's vocabulary ("success" is reported as
// both "success" and "successful" across endpoints) onto the shared enum.
func normalizeKoraStatus(s string) Status {
	switch s {
	case "success", "successful":
		return StatusSuccess
	case "failed", "expired":
		return StatusFailed
	case "pending", "processing":
		return StatusPending
	}
	return StatusUnknown
}

func (p *KoraProvider) VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error) {
	var out koraChargeResp
	code, err := p.do(ctx, http.MethodGet, "/merchant/api/v1/charges/"+reference, nil, &out)
	if err != nil {
		perr := newProviderError(Kora, "verify", code, err)
		logEvent(Kora, "verify_transaction", StatusUnknown, perr, zap.String("reference", reference))
		return nil, perr
	}
	status := normalizeKoraStatus(out.Data.Status)
	// Kora reports amounts in major units.
	amountMajor, _ := out.Data.Amount.Float64()
	res := &VerifyResult{
		Success:       out.Status && status == StatusSuccess,
		Status:        status,
		AmountMinor:   int64(amountMajor*100 + 0.5),
		Currency:      out.Data.Currency,
		CustomerEmail: out.Data.Customer.Email,
		Metadata:      out.Data.Metadata,
	}
	if out.Data.CompletedAt != "" {
		if t, err := time.Parse(time.RFC3339, out.Data.CompletedAt); err == nil {
			res.PaidAt = t
		}
	}
	logEvent(Kora, "verify_transaction", status, nil,
		zap.String("reference", reference),
		zap.Int64("amount_minor", res.AmountMinor),
		zap.String("currency", res.Currency))
	return res, nil
}

type koraDisburseResp struct {
	Status bool `json:"status"`
	Data   struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

func (p *KoraProvider) InitiatePayout(ctx context.Context, req PayoutRequest) (*PayoutResult, error) {
	destType := "bank_account"
	destination := map[string]interface{}{
		"type":     destType,
		"amount":   req.AmountMinor / 100,
		"currency": req.Currency,
		"narration": req.Narration,
		"bank_account": map[string]string{
			"bank":    req.BankCode,
			"account": req.AccountNumber,
		},
		"customer": map[string]string{"name": req.AccountName},
	}
	masked := maskAccount(req.AccountNumber)
	if req.Channel == "mobile_money" {
		destination["type"] = "mobile_money"
		delete(destination, "bank_account")
		destination["mobile_money"] = map[string]string{"operator": req.BankCode, "mobile_number": req.MobileNumber}
		masked = maskAccount(req.MobileNumber)
	}
	var out koraDisburseResp
	code, err := p.do(ctx, http.MethodPost, "/merchant/api/v1/transactions/disburse", map[string]interface{}{
		"reference":   req.Reference,
		"destination": destination,
	}, &out)
	if err != nil || !out.Status {
		if err == nil {
			err = fmt.Errorf("disbursement declined")
		}
		perr := newProviderError(Kora, "payout", code, err)
		logEvent(Kora, "initiate_payout", StatusFailed, perr,
			zap.String("reference", req.Reference),
			zap.String("destination", masked))
		return nil, perr
	}
	logEvent(Kora, "initiate_payout", normalizeKoraStatus(out.Data.Status), nil,
		zap.String("reference", req.Reference),
		zap.String("destination", masked))
	return &PayoutResult{Success: true, ProviderReference: out.Data.Reference}, nil
}

// ValidateWebhookSignature checks the x-korapay-signature header:
// HMAC-SHA256 of the raw body keyed by the webhook secret.
func (p *KoraProvider) ValidateWebhookSignature(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(p.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (p *KoraProvider) do(ctx context.Context, method, path string, body interface{}, out interface{}) (int, error) {
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
