package ws

import "github.com/huddle-chat/huddle/internal/domain"

// Sender delivers encoded frames to live connections. The hub
// implements it on its event loop; tests substitute a recorder.
type Sender interface {
	// SendTo delivers to one connection. Unknown connection ids are
	// ignored: an in-flight publish targeting a since-disconnected
	// connection is silently dropped.
	SendTo(connID string, data []byte)
	// SendAll delivers to every connection.
	SendAll(data []byte)
	// ConnsOf returns the connection ids currently associated with a
	// user id.
	ConnsOf(userID string) []string
}

// MessageFanout delivers one published message to exactly the scope's
// audience. Delivery is at-most-once per eligible connection per
// publish; there is no queueing or retry. Publish order equals
// delivery order within a scope because the hub invokes it from a
// single loop.
type MessageFanout struct {
	router *RoomRouter
	sender Sender
}

// NewMessageFanout creates a fanout over the given router and sender.
func NewMessageFanout(router *RoomRouter, sender Sender) *MessageFanout {
	return &MessageFanout{router: router, sender: sender}
}

// Publish delivers a validated, persisted message to its scope's
// audience. A scope with no current audience is a no-op, not an error.
func (f *MessageFanout) Publish(msg *domain.Message) {
	f.deliver(msg.Scope, messageFrame(msg))
}

// PublishRemoval propagates an externally-issued removal to the same
// audience the original message would reach now.
func (f *MessageFanout) PublishRemoval(scope domain.Scope, id int64) {
	f.deliver(scope, removedFrame(scope, id))
}

func (f *MessageFanout) deliver(scope domain.Scope, data []byte) {
	switch scope.Kind {
	case domain.ScopeKindGlobal:
		// No explicit join required.
		f.sender.SendAll(data)
	case domain.ScopeKindDirect:
		// Direct messages are addressed by identity, not room
		// membership: every connection of either endpoint receives it.
		seen := make(map[string]struct{})
		for _, userID := range []string{scope.UserA, scope.UserB} {
			for _, connID := range f.sender.ConnsOf(userID) {
				if _, dup := seen[connID]; dup {
					continue
				}
				seen[connID] = struct{}{}
				f.sender.SendTo(connID, data)
			}
		}
	default:
		for _, connID := range f.router.MembersOf(scope) {
			f.sender.SendTo(connID, data)
		}
	}
}
