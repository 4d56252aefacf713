package handler

import (
	"errors"
	"net/http"

	"learnly/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PaymentHandler struct {
	reconcile *service.ReconcileService
}

func NewPaymentHandler(reconcile *service.ReconcileService) *PaymentHandler {
	return &PaymentHandler{reconcile: reconcile}
}

// InitializeCheckout creates the pending payment row for a new checkout.
func (h *PaymentHandler) InitializeCheckout(c *gin.Context) {
	var req struct {
		Email       string                 `json:"email"`
		AmountCents int64                  `json:"amount_cents" binding:"required,min=1"`
		Currency    string                 `json:"currency" binding:"required,len=3"`
		Provider    string                 `json:"provider" binding:"required"`
		PaymentType string                 `json:"payment_type"`
		Metadata    map[string]interface{} `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Metadata == nil {
		req.Metadata = map[string]interface{}{}
	}
	if req.Email != "" {
		req.Metadata["email"] = req.Email
	}
	reference := "chk-" + uuid.New().String()
	p, err := h.reconcile.InitializeCheckout(nil, reference, req.Provider, req.AmountCents, req.Currency, req.PaymentType, req.Metadata)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Verify is the verification entrypoint: the client (redirect callback or
// poll) submits a reference, we reconcile it against the providers.
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req struct {
		Reference    string `json:"reference" binding:"required"`
		ReferralCode string `json:"referral_code"`
		ReferralType string `json:"referral_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "reference is required"})
		return
	}
	res, err := h.reconcile.Reconcile(c.Request.Context(), req.Reference, req.ReferralCode, req.ReferralType)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrMissingReference):
			status = http.StatusBadRequest
		case errors.Is(err, service.ErrVerificationFailed):
			status = http.StatusPaymentRequired
		}
		c.JSON(status, gin.H{"success": false, "message": err.Error()})
		return
	}
	resp := gin.H{
		"success":     true,
		"message":     "payment verified",
		"email":       res.Email,
		"user_id":     res.UserID,
		"is_new_user": res.IsNewAccount,
		"payment":     res.Payment,
	}
	if res.IsNewAccount {
		resp["temp_credential"] = res.TempCredential
		resp["credential_expires_in"] = int(res.CredentialExpiresIn.Seconds())
	}
	c.JSON(http.StatusOK, resp)
}
