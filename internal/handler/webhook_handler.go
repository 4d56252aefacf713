package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"learnly/internal/service"
	"learnly/pkg/gateway"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// signatureHeaders maps each provider to the header its webhooks sign.
var signatureHeaders = map[gateway.Name]string{
	gateway.Paystack: "x-paystack-signature",
	gateway.Kora:     "x-korapay-signature",
	gateway.Stripe:   "Stripe-Signature",
}

type WebhookHandler struct {
	registry  *gateway.Registry
	reconcile *service.ReconcileService
}

func NewWebhookHandler(registry *gateway.Registry, reconcile *service.ReconcileService) *WebhookHandler {
	return &WebhookHandler{registry: registry, reconcile: reconcile}
}

// Handle validates the provider signature and re-enters the idempotent
// reconcile path with the referenced transaction. A webhook racing a
// client poll is safe: at most one of them completes the payment.
func (h *WebhookHandler) Handle(c *gin.Context) {
	name, err := gateway.ParseName(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}
	provider, ok := h.registry.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "provider not configured"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<16))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if !provider.ValidateWebhookSignature(body, c.GetHeader(signatureHeaders[name])) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	reference := extractReference(body)
	if reference == "" {
		// Acknowledge so the provider stops retrying an event we cannot use.
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if _, err := h.reconcile.Reconcile(c.Request.Context(), reference, "", ""); err != nil {
		zap.L().Warn("webhook reconcile failed",
			zap.String("provider", string(name)),
			zap.String("reference", reference),
			zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// extractReference digs the transaction reference out of the webhook
// payload; providers nest it differently.
func extractReference(body []byte) string {
	var payload struct {
		Reference string `json:"reference"`
		Data      struct {
			Reference string `json:"reference"`
			Object    struct {
				ID string `json:"id"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Data.Reference != "" {
		return payload.Data.Reference
	}
	if payload.Data.Object.ID != "" {
		return payload.Data.Object.ID
	}
	return payload.Reference
}
