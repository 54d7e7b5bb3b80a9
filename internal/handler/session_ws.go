package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"curalink/config"
	"curalink/internal/auth"
	"curalink/internal/repository"
	"curalink/internal/service"
	"curalink/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var sessionUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// UpgradeSessionWS upgrades to WebSocket for a session; query: token,
// consultation_id. The caller must be a participant and the session must
// already be started. Joining and leaving emit presence events to the room.
func UpgradeSessionWS(
	cfg *config.JWTConfig,
	sessionHub *ws.SessionHub,
	consultRepo *repository.ConsultationRepository,
	sessionSvc *service.SessionService,
	chatSvc *service.ChatService,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		consultationIDStr := c.Query("consultation_id")
		if token == "" || consultationIDStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token and consultation_id required"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		var consultationID uint
		if _, err := fmt.Sscanf(consultationIDStr, "%d", &consultationID); err != nil || consultationID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid consultation_id"})
			return
		}
		consultation, err := consultRepo.GetByID(consultationID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "consultation not found"})
			return
		}
		role := consultation.ParticipantRole(claims.UserID)
		if role == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "not part of this consultation"})
			return
		}
		if !consultation.SessionStarted {
			c.JSON(http.StatusForbidden, gin.H{"error": "session has not been started"})
			return
		}
		// records the join and stamps entered_session_at when both sides
		// have now joined
		if _, err := sessionSvc.AccessChannel(claims.UserID, consultationID); err != nil {
			respondError(c, err)
			return
		}
		conn, err := sessionUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := &ws.Client{
			UserID: claims.UserID,
			Role:   role,
			Send:   make(chan []byte, 256),
		}
		room := sessionHub.GetOrCreateRoom(consultationID, consultation.PatientID, consultation.ProviderID)
		room.Join(client)
		room.BroadcastExcept(client, gin.H{
			"type":    ws.EventPresence,
			"user_id": claims.UserID,
			"role":    role,
			"online":  true,
		})
		defer func() {
			room.Leave(client)
			client.Close()
			room.Broadcast(gin.H{
				"type":    ws.EventPresence,
				"user_id": claims.UserID,
				"role":    role,
				"online":  false,
			})
		}()

		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(wsPongWait))
			return nil
		})
		go writeLoop(conn, client)

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var frame struct {
				Type     string `json:"type"`
				Kind     string `json:"kind"`
				Content  string `json:"content"`
				FileURL  string `json:"file_url"`
				FileName string `json:"file_name"`
			}
			if json.Unmarshal(raw, &frame) != nil {
				continue
			}
			switch frame.Type {
			case ws.EventMessage:
				kind := frame.Kind
				if kind == "" {
					kind = "text"
				}
				// Send persists and broadcasts in one step, so every
				// member sees messages in persist order
				_, _ = chatSvc.Send(claims.UserID, consultationID, service.SendInput{
					Type:     kind,
					Content:  frame.Content,
					FileURL:  frame.FileURL,
					FileName: frame.FileName,
				})
			case ws.EventTyping:
				room.BroadcastExcept(client, gin.H{
					"type":    ws.EventTyping,
					"user_id": claims.UserID,
					"role":    role,
				})
			case ws.EventRead:
				_, _ = chatSvc.MarkRead(claims.UserID, consultationID)
			}
		}
	}
}

func writeLoop(conn *websocket.Conn, client *ws.Client) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
