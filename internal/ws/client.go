package ws

import (
	"encoding/json"
	"time"

	"taskmanager/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second

	sendBuffer = 64
)

type Client struct {
	Subject string
	conn    *websocket.Conn
	hub     *Hub
	send    chan []byte
}

func NewClient(subject string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		Subject: subject,
		conn:    conn,
		hub:     hub,
		send:    make(chan []byte, sendBuffer),
	}
}

// Run queues the ready handshake, subscribes to the hub and blocks until
// the connection closes.
func (c *Client) Run() {
	ready, _ := json.Marshal(envelope{Type: MsgReady})
	c.send <- ready

	if !c.hub.register(c) {
		_ = c.conn.Close()
		return
	}

	go c.writePump()
	c.readPump()
}

// read
// Subscribers never send commands; reads only drive pong handling and
// detect disconnects.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws read error", "subject", c.Subject, "error", err)
			}
			return
		}
	}
}

// write
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("ws write error", "subject", c.Subject, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
