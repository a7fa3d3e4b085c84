package ws

import (
	"net/http"

	"taskmanager/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// SubjectExtractor resolves a token to its subject.
type SubjectExtractor interface {
	ExtractSubject(token string) (string, error)
}

// HandleWS upgrades authenticated requests (token in the query string) to an
// event stream. An empty or "*" allowedOrigin accepts any origin.
func HandleWS(hub *Hub, tokens SubjectExtractor, allowedOrigin string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "token required"})
			return
		}

		subject, err := tokens.ExtractSubject(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade error", "error", err)
			return
		}

		client := NewClient(subject, conn, hub)
		go client.Run()
	}
}
