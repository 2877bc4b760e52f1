package ws

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/huddle-chat/huddle/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

// Client represents a single websocket connection. Its user identity
// is resolved from the session before the upgrade; presence is only
// announced once the client sends its first online frame.
type Client struct {
	ID        string
	Identity  domain.Identity
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	readLimit int64
}

// NewClient creates a new Client with a server-assigned connection id.
// readLimit caps inbound frame size; non-positive means the default.
func NewClient(hub *Hub, conn *websocket.Conn, identity domain.Identity, readLimit int64) *Client {
	if readLimit <= 0 {
		readLimit = domain.MaxMessageSize
	}
	return &Client{
		ID:        uuid.NewString(),
		Identity:  identity,
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 1024),
		readLimit: readLimit,
	}
}

// ReadPump pumps frames from the websocket connection into the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var frame domain.Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		c.dispatch(frame)
	}
}

// dispatch routes one inbound frame. Malformed payloads are dropped;
// peers never see another client's protocol mistakes.
func (c *Client) dispatch(frame domain.Frame) {
	switch frame.Type {
	case domain.FrameOnline:
		c.hub.MarkOnline(c.Identity.UserID, c.ID)

	case domain.FrameAway:
		c.hub.MarkAway(c.Identity.UserID, c.ID)

	case domain.FrameJoin, domain.FrameLeave:
		var p domain.ScopePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return
		}
		if err := p.Scope.Validate(); err != nil {
			return
		}
		if frame.Type == domain.FrameJoin {
			c.hub.Join(c.ID, p.Scope)
		} else {
			c.hub.Leave(c.ID, p.Scope)
		}

	case domain.FrameMessage:
		var p domain.SendPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return
		}
		if err := p.Scope.Validate(); err != nil {
			return
		}
		if strings.TrimSpace(p.Text) == "" {
			return
		}
		// Sending counts as activity.
		c.hub.MarkOnline(c.Identity.UserID, c.ID)
		c.hub.HandleSend(context.Background(), c, p)
	}
}

// WritePump pumps frames from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
