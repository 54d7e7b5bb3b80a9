package handler

import (
	"net/http"

	"curalink/internal/middleware"
	"curalink/internal/service"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessionSvc *service.SessionService
}

func NewSessionHandler(sessionSvc *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

// Start opens the session channel. Provider only, approved consultations
// only, and at most once per consultation.
func (h *SessionHandler) Start(c *gin.Context) {
	ch, err := h.sessionSvc.Start(middleware.GetUserID(c), paramID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": ch})
}

// Join reports whether the caller may enter the session yet. Patients poll
// this before the provider has started.
func (h *SessionHandler) Join(c *gin.Context) {
	allowed, err := h.sessionSvc.JoinAllowed(middleware.GetUserID(c), paramID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"join_permitted": allowed})
}

// Channel returns the session view and records the caller's join.
func (h *SessionHandler) Channel(c *gin.Context) {
	view, err := h.sessionSvc.AccessChannel(middleware.GetUserID(c), paramID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CallTimer stamps the start of the metered call window. First caller wins;
// repeats are no-ops returning the stamped channel.
func (h *SessionHandler) CallTimer(c *gin.Context) {
	ch, err := h.sessionSvc.StartCallTimer(middleware.GetUserID(c), paramID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": ch})
}

// Token issues a short-lived media credential for audio and video sessions.
func (h *SessionHandler) Token(c *gin.Context) {
	grant, err := h.sessionSvc.RequestToken(middleware.GetUserID(c), paramID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grant)
}

// End closes the session. Either party may end; the consultation moves to
// completed.
func (h *SessionHandler) End(c *gin.Context) {
	if err := h.sessionSvc.End(middleware.GetUserID(c), paramID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session ended"})
}
