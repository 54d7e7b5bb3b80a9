package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"curalink/config"
	"curalink/internal/domain"
	"curalink/internal/service"

	"github.com/gin-gonic/gin"
)

type PaymentWebhookHandler struct {
	paymentSvc *service.PaymentService
	cfg        *config.Config
}

func NewPaymentWebhookHandler(paymentSvc *service.PaymentService, cfg *config.Config) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{paymentSvc: paymentSvc, cfg: cfg}
}

// Handle receives the gateway's server-to-server callback. Expects JSON:
// { "booking_id": "...", "reference": "...", "status": "COMPLETED" } with an
// X-Webhook-Signature header over the raw body. The reconciliation path is
// the same one the redirect return uses, so gateway retries are harmless.
func (h *PaymentWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if h.cfg.Payment.WebhookSecret != "" {
		sig := c.GetHeader("X-Webhook-Signature")
		if !h.verifySignature(body, sig) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}
	var payload struct {
		BookingID string `json:"booking_id"`
		Reference string `json:"reference"`
		Status    string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if payload.BookingID == "" || payload.Reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "booking_id and reference required"})
		return
	}
	if payload.Status != "COMPLETED" && payload.Status != "completed" {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if _, err := h.paymentSvc.Verify(c.Request.Context(), payload.BookingID, payload.Reference); err != nil {
		// an expired draft is final; anything else the gateway should retry
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *PaymentWebhookHandler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.cfg.Payment.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
