package domain

import (
	"encoding/json"
	"time"
)

// Message is a persisted chat message as seen by the fan-out layer. The
// id is assigned by the store on save and treated as opaque afterwards.
type Message struct {
	ID         int64     `json:"id"`
	Scope      Scope     `json:"scope"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	Quoted     string    `json:"quoted,omitempty"` // text snapshot, not a live link
	Removed    bool      `json:"removed,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// FrameType defines the type of a websocket frame.
type FrameType string

const (
	// Client -> server
	FrameOnline  FrameType = "online"
	FrameAway    FrameType = "away"
	FrameJoin    FrameType = "join"
	FrameLeave   FrameType = "leave"
	FrameMessage FrameType = "message"

	// Server -> client
	FramePresenceUpdate FrameType = "presence_update"
	FrameMessageRemoved FrameType = "message_removed"
	FrameSendFailed     FrameType = "send_failed"
)

// Frame is the envelope for everything crossing the websocket.
type Frame struct {
	Type    FrameType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PresenceSnapshot lists which users are currently online or away. A
// user absent from both is offline.
type PresenceSnapshot struct {
	Online []string `json:"online"`
	Away   []string `json:"away"`
}

// ScopePayload carries the target of a join or leave frame.
type ScopePayload struct {
	Scope Scope `json:"scope"`
}

// SendPayload carries an outgoing chat message from a client.
type SendPayload struct {
	Scope  Scope  `json:"scope"`
	Text   string `json:"text"`
	Quoted string `json:"quoted,omitempty"`
}

// RemovedPayload announces redaction of a previously delivered message.
type RemovedPayload struct {
	ID    int64 `json:"id"`
	Scope Scope `json:"scope"`
}

// SendFailedPayload is delivered only to the client whose send failed.
type SendFailedPayload struct {
	Reason string `json:"reason"`
}
