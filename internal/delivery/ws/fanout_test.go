package ws

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/huddle-chat/huddle/internal/domain"
)

// recordingSender captures deliveries without a hub.
type recordingSender struct {
	conns   map[string][]string // userID -> connIDs
	sent    map[string][][]byte // connID -> frames, in order
	sentAll [][]byte
}

func newRecordingSender() *recordingSender {
	return &recordingSender{
		conns: make(map[string][]string),
		sent:  make(map[string][][]byte),
	}
}

func (s *recordingSender) SendTo(connID string, data []byte) {
	s.sent[connID] = append(s.sent[connID], data)
}

func (s *recordingSender) SendAll(data []byte) {
	s.sentAll = append(s.sentAll, data)
}

func (s *recordingSender) ConnsOf(userID string) []string {
	return s.conns[userID]
}

func testMessage(scope domain.Scope, text string) *domain.Message {
	return &domain.Message{ID: 1, Scope: scope, SenderID: "alice", SenderName: "Alice", Body: text}
}

func TestFanout_ChannelScopeMembersOnly(t *testing.T) {
	router := NewRoomRouter()
	sender := newRecordingSender()
	fanout := NewMessageFanout(router, sender)

	scope := domain.ChannelScope("teamX", "general")
	router.Join("cA", scope)
	router.Join("cB", scope)
	// cC never joined

	fanout.Publish(testMessage(scope, "hi"))

	for _, connID := range []string{"cA", "cB"} {
		if len(sender.sent[connID]) != 1 {
			t.Errorf("%s received %d frames, want 1", connID, len(sender.sent[connID]))
		}
	}
	if len(sender.sent["cC"]) != 0 {
		t.Error("non-member received the message")
	}
	if len(sender.sentAll) != 0 {
		t.Error("channel publish must not broadcast")
	}
}

func TestFanout_OrderPreservedPerScope(t *testing.T) {
	router := NewRoomRouter()
	sender := newRecordingSender()
	fanout := NewMessageFanout(router, sender)

	scope := domain.ChannelScope("teamX", "general")
	router.Join("cA", scope)
	router.Join("cB", scope)

	want := []string{"one", "two", "three", "four"}
	for _, text := range want {
		fanout.Publish(testMessage(scope, text))
	}

	for _, connID := range []string{"cA", "cB"} {
		var got []string
		for _, data := range sender.sent[connID] {
			got = append(got, decodeBody(t, data))
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%s received %v, want %v", connID, got, want)
		}
	}
}

func TestFanout_DirectScopeByIdentity(t *testing.T) {
	router := NewRoomRouter()
	sender := newRecordingSender()
	fanout := NewMessageFanout(router, sender)

	sender.conns["alice"] = []string{"cA1", "cA2"}
	sender.conns["bob"] = []string{"cB"}
	sender.conns["carol"] = []string{"cC"}

	// Router membership is irrelevant for direct scopes.
	router.Join("cC", domain.DirectScope("alice", "bob"))

	fanout.Publish(testMessage(domain.DirectScope("bob", "alice"), "psst"))

	for _, connID := range []string{"cA1", "cA2", "cB"} {
		if len(sender.sent[connID]) != 1 {
			t.Errorf("%s received %d frames, want 1", connID, len(sender.sent[connID]))
		}
	}
	if len(sender.sent["cC"]) != 0 {
		t.Error("direct message leaked to a router member outside the pair")
	}
}

func TestFanout_DirectScopeSelfMessage(t *testing.T) {
	router := NewRoomRouter()
	sender := newRecordingSender()
	fanout := NewMessageFanout(router, sender)

	sender.conns["alice"] = []string{"cA"}

	// A pair whose endpoints collapse must still deliver exactly once.
	fanout.Publish(testMessage(domain.DirectScope("alice", "alice"), "note"))

	if len(sender.sent["cA"]) != 1 {
		t.Errorf("self direct message delivered %d times, want 1", len(sender.sent["cA"]))
	}
}

func TestFanout_GlobalScopeBroadcasts(t *testing.T) {
	router := NewRoomRouter()
	sender := newRecordingSender()
	fanout := NewMessageFanout(router, sender)

	fanout.Publish(testMessage(domain.GlobalScope(), "announcement"))

	if len(sender.sentAll) != 1 {
		t.Fatalf("global publish used SendAll %d times, want 1", len(sender.sentAll))
	}
}

func TestFanout_EmptyScopeNoOp(t *testing.T) {
	router := NewRoomRouter()
	sender := newRecordingSender()
	fanout := NewMessageFanout(router, sender)

	// No members anywhere; must not panic, must deliver nothing.
	fanout.Publish(testMessage(domain.ChannelScope("teamX", "ghost-town"), "hello?"))

	if len(sender.sent) != 0 || len(sender.sentAll) != 0 {
		t.Error("publish to empty scope delivered frames")
	}
}

func TestFanout_RemovalReachesScope(t *testing.T) {
	router := NewRoomRouter()
	sender := newRecordingSender()
	fanout := NewMessageFanout(router, sender)

	scope := domain.GroupScope("g1")
	router.Join("cA", scope)

	fanout.PublishRemoval(scope, 42)

	frames := sender.sent["cA"]
	if len(frames) != 1 {
		t.Fatalf("received %d frames, want 1", len(frames))
	}
	var frame domain.Frame
	if err := json.Unmarshal(frames[0], &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if frame.Type != domain.FrameMessageRemoved {
		t.Errorf("frame type = %s, want %s", frame.Type, domain.FrameMessageRemoved)
	}
	var p domain.RemovedPayload
	if err := json.Unmarshal(frame.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.ID != 42 || p.Scope != scope {
		t.Errorf("payload = %+v", p)
	}
}

func decodeBody(t *testing.T, data []byte) string {
	t.Helper()
	var frame domain.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	var msg domain.Message
	if err := json.Unmarshal(frame.Payload, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	return msg.Body
}
