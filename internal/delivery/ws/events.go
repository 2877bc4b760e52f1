package ws

import (
	"encoding/json"

	"github.com/huddle-chat/huddle/internal/domain"
)

// encodeFrame marshals a typed frame with its payload. Payload types
// are all local structs, so marshalling cannot fail in practice.
func encodeFrame(t domain.FrameType, payload any) []byte {
	raw, _ := json.Marshal(payload)
	data, _ := json.Marshal(domain.Frame{Type: t, Payload: raw})
	return data
}

func presenceFrame(snap domain.PresenceSnapshot) []byte {
	return encodeFrame(domain.FramePresenceUpdate, snap)
}

func messageFrame(msg *domain.Message) []byte {
	return encodeFrame(domain.FrameMessage, msg)
}

func removedFrame(scope domain.Scope, id int64) []byte {
	return encodeFrame(domain.FrameMessageRemoved, domain.RemovedPayload{ID: id, Scope: scope})
}

func sendFailedFrame(reason string) []byte {
	return encodeFrame(domain.FrameSendFailed, domain.SendFailedPayload{Reason: reason})
}
