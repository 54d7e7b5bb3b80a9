package handler

import (
	"net/http"
	"time"

	"curalink/internal/middleware"
	"curalink/internal/service"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	paymentSvc *service.PaymentService
}

func NewPaymentHandler(paymentSvc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

type initiateRequest struct {
	ProviderID  uint      `json:"provider_id" binding:"required"`
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
	Type        string    `json:"type" binding:"required"`
	FeeCents    int64     `json:"fee_cents" binding:"required"`
	Reason      string    `json:"reason"`
	Method      string    `json:"method" binding:"required"`
}

// Initiate stores a draft booking and returns the signed redirect payload.
// Nothing is written to the consultation table yet.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.paymentSvc.Initiate(c.Request.Context(), middleware.GetUserID(c), service.InitiateInput{
		ProviderID:  req.ProviderID,
		ScheduledAt: req.ScheduledAt,
		Type:        req.Type,
		FeeCents:    req.FeeCents,
		Reason:      req.Reason,
		Method:      req.Method,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Verify is the redirect return from the gateway. The gateway is re-queried
// before anything durable is created, and repeats are idempotent.
func (h *PaymentHandler) Verify(c *gin.Context) {
	bookingID := c.Query("booking_id")
	reference := c.Query("reference")
	consultation, err := h.paymentSvc.Verify(c.Request.Context(), bookingID, reference)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consultation": consultation})
}
