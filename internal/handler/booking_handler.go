package handler

import (
	"net/http"
	"strconv"
	"time"

	"curalink/internal/middleware"
	"curalink/internal/service"

	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	consultSvc *service.ConsultationService
}

func NewBookingHandler(consultSvc *service.ConsultationService) *BookingHandler {
	return &BookingHandler{consultSvc: consultSvc}
}

func paramID(c *gin.Context) uint {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	return uint(id)
}

type bookingRequest struct {
	ProviderID  uint      `json:"provider_id" binding:"required"`
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
	Type        string    `json:"type" binding:"required"`
	FeeCents    int64     `json:"fee_cents" binding:"required"`
	Reason      string    `json:"reason"`
}

// Create books a consultation directly (payment collected out of band).
func (h *BookingHandler) Create(c *gin.Context) {
	var req bookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	consultation, err := h.consultSvc.Book(middleware.GetUserID(c), service.BookingInput{
		ProviderID:  req.ProviderID,
		ScheduledAt: req.ScheduledAt,
		Type:        req.Type,
		FeeCents:    req.FeeCents,
		Reason:      req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"consultation": consultation})
}

// List returns the caller's consultations, patient or provider side.
func (h *BookingHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, err := h.consultSvc.ListForUser(middleware.GetUserID(c), middleware.GetRole(c), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"consultations": list})
}

func (h *BookingHandler) Get(c *gin.Context) {
	consultation, err := h.consultSvc.Get(paramID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	userID := middleware.GetUserID(c)
	if consultation.ParticipantRole(userID) == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "not part of this consultation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"consultation": consultation})
}

func (h *BookingHandler) Approve(c *gin.Context) {
	consultation, err := h.consultSvc.Approve(middleware.GetUserID(c), paramID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consultation": consultation})
}

func (h *BookingHandler) Reject(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}
	consultation, err := h.consultSvc.Reject(middleware.GetUserID(c), paramID(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consultation": consultation})
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	if err := h.consultSvc.Cancel(middleware.GetUserID(c), paramID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cancelled"})
}

func (h *BookingHandler) Rate(c *gin.Context) {
	var req struct {
		Rating int `json:"rating" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating is required"})
		return
	}
	if err := h.consultSvc.Rate(middleware.GetUserID(c), paramID(c), req.Rating); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "rated"})
}

// ReRequest books a fresh consultation from an expired one, reusing its
// terms. Only available during the expiry hold window.
func (h *BookingHandler) ReRequest(c *gin.Context) {
	consultation, err := h.consultSvc.ReRequest(middleware.GetUserID(c), paramID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"consultation": consultation})
}
