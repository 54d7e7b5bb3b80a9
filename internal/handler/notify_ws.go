package handler

import (
	"net/http"
	"time"

	"curalink/config"
	"curalink/internal/auth"
	"curalink/internal/ws"

	"github.com/gin-gonic/gin"
)

// UpgradeNotifyWS upgrades to WebSocket for live notification delivery;
// query: token. The socket is write-only from the server side.
func UpgradeNotifyWS(cfg *config.JWTConfig, hub *ws.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		conn, err := sessionUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := &ws.Client{
			UserID: claims.UserID,
			Role:   claims.Role,
			Send:   make(chan []byte, 64),
		}
		hub.Register(client)
		defer func() {
			hub.Unregister(client)
			client.Close()
		}()

		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(wsPongWait))
			return nil
		})
		go writeLoop(conn, client)

		// inbound frames are ignored; the read loop only notices the close
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}
}
