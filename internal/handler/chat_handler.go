package handler

import (
	"net/http"
	"strconv"
	"time"

	"curalink/internal/middleware"
	"curalink/internal/service"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatSvc *service.ChatService
}

func NewChatHandler(chatSvc *service.ChatService) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc}
}

// Send posts a message over HTTP. The WebSocket path is preferred; this
// exists for attachments and clients without a live socket.
func (h *ChatHandler) Send(c *gin.Context) {
	var req struct {
		Type     string `json:"type" binding:"required"`
		Content  string `json:"content"`
		FileURL  string `json:"file_url"`
		FileName string `json:"file_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := h.chatSvc.Send(middleware.GetUserID(c), paramID(c), service.SendInput{
		Type:     req.Type,
		Content:  req.Content,
		FileURL:  req.FileURL,
		FileName: req.FileName,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// History returns messages oldest-first, filtered by the caller's clear
// point. Pagination walks backward via the before cursor.
func (h *ChatHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	var before *time.Time
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before cursor"})
			return
		}
		before = &t
	}
	list, err := h.chatSvc.History(middleware.GetUserID(c), paramID(c), before, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": list})
}

// MarkRead marks all of the other party's messages read and resets the
// caller's unread counter.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	n, err := h.chatSvc.MarkRead(middleware.GetUserID(c), paramID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

// Clear hides the conversation history for the caller only. The other
// party's view is untouched.
func (h *ChatHandler) Clear(c *gin.Context) {
	if err := h.chatSvc.ClearHistory(middleware.GetUserID(c), paramID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "history cleared"})
}
