package ws

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/huddle-chat/huddle/internal/domain"
)

// Store is the slice of the persistence collaborator the hub depends
// on. Calls into it happen off the event loop, so arbitrary delay or
// failure never corrupts in-memory presence or room state.
type Store interface {
	SaveMessage(ctx context.Context, msg *domain.Message) (int64, error)
	TouchLogout(ctx context.Context, userID string) error
}

// Hub owns all live connections and the presence/fan-out state. Every
// mutation of the registry, watchdog, router and client maps runs on
// the single goroutine inside Run, so those structures need no locks
// and publish order equals delivery order per scope.
type Hub struct {
	log   zerolog.Logger
	store Store

	clients *ClientDirectory

	registry *ConnectionRegistry
	watchdog *InactivityWatchdog
	router   *RoomRouter
	fanout   *MessageFanout

	register   chan *Client
	unregister chan *Client
	ops        chan func()
}

// NewHub creates a hub. awayTimeout is the watchdog's silence window.
func NewHub(log zerolog.Logger, store Store, awayTimeout time.Duration) *Hub {
	h := &Hub{
		log:        log,
		store:      store,
		clients:    NewClientDirectory(),
		registry:   NewConnectionRegistry(),
		router:     NewRoomRouter(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ops:        make(chan func(), 256),
	}
	h.watchdog = NewInactivityWatchdog(awayTimeout, h.onWatchdogExpiry)
	h.fanout = NewMessageFanout(h.router, h)
	return h
}

// Run drains the hub's channels until ctx is cancelled. All state
// transitions happen here, in arrival order.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case op := <-h.ops:
			op()
		}
	}
}

// do runs op on the event loop. Ops from one goroutine execute in the
// order they were enqueued.
func (h *Hub) do(op func()) {
	h.ops <- op
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// MarkOnline records activity for userID over connID, (re)arms the
// watchdog and broadcasts the presence snapshot to every connection.
// Idempotent; fired on every user interaction.
func (h *Hub) MarkOnline(userID, connID string) {
	h.do(func() {
		snap := h.registry.MarkOnline(userID, connID)
		h.watchdog.Arm(userID)
		h.SendAll(presenceFrame(snap))
	})
}

// MarkAway demotes userID on explicit client signal and broadcasts the
// snapshot. The watchdog is disarmed; there is nothing left to demote.
func (h *Hub) MarkAway(userID, connID string) {
	h.do(func() {
		h.watchdog.Disarm(userID)
		snap := h.registry.MarkAway(userID, connID)
		h.SendAll(presenceFrame(snap))
	})
}

// Join subscribes a connection to a scope. Dropped silently when the
// connection is already gone.
func (h *Hub) Join(connID string, scope domain.Scope) {
	h.do(func() {
		if _, ok := h.clients.Get(connID); !ok {
			return
		}
		h.router.Join(connID, scope)
	})
}

// Leave unsubscribes a connection from a scope. Never an error, even
// when the scope was not joined.
func (h *Hub) Leave(connID string, scope domain.Scope) {
	h.do(func() {
		h.router.Leave(connID, scope)
	})
}

// Publish fans a persisted message out to its scope's audience.
func (h *Hub) Publish(msg *domain.Message) {
	h.do(func() {
		h.fanout.Publish(msg)
	})
}

// PublishRemoval propagates a redaction issued by the CRUD layer.
func (h *Hub) PublishRemoval(scope domain.Scope, id int64) {
	h.do(func() {
		h.fanout.PublishRemoval(scope, id)
	})
}

// HandleSend persists an outgoing message and, once the store has
// assigned its id, publishes it. Runs on the sender's read pump, not
// the event loop: a slow or failing store blocks only the sender. On
// failure the sender alone is notified and no state changes.
func (h *Hub) HandleSend(ctx context.Context, c *Client, p domain.SendPayload) {
	msg := &domain.Message{
		Scope:      p.Scope,
		SenderID:   c.Identity.UserID,
		SenderName: c.Identity.DisplayName,
		Body:       p.Text,
		Quoted:     p.Quoted,
		CreatedAt:  time.Now().UTC(),
	}
	id, err := h.store.SaveMessage(ctx, msg)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", c.Identity.UserID).Msg("message store failed")
		// Report through the loop: SendTo ignores connections that were
		// dropped in the meantime, and only the loop may touch c.send
		// once the client is registered.
		h.do(func() { h.SendTo(c.ID, sendFailedFrame("failed to send")) })
		return
	}
	msg.ID = id
	h.Publish(msg)
}

// PresenceSnapshot returns the current presence sets. Safe to call
// from any goroutine; blocks until the loop serves it.
func (h *Hub) PresenceSnapshot() domain.PresenceSnapshot {
	reply := make(chan domain.PresenceSnapshot, 1)
	h.do(func() { reply <- h.registry.Snapshot() })
	return <-reply
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	h.do(func() { reply <- h.clients.Len() })
	return <-reply
}

// onWatchdogExpiry runs on a timer goroutine; the demotion itself is
// re-entered into the loop and applied only if the arming is still
// current and the user is still online.
func (h *Hub) onWatchdogExpiry(userID string, gen uint64) {
	h.do(func() {
		if !h.watchdog.Expired(userID, gen) {
			return
		}
		connID, ok := h.registry.OnlineConn(userID)
		if !ok {
			return
		}
		snap := h.registry.MarkAway(userID, connID)
		h.SendAll(presenceFrame(snap))
	})
}

// addClient runs on the loop. The new connection gets one presence
// snapshot for initial sync; nothing is broadcast because the user is
// still unannounced.
func (h *Hub) addClient(c *Client) {
	h.clients.Add(c)
	h.log.Debug().Str("conn_id", c.ID).Str("user_id", c.Identity.UserID).Msg("client registered")

	select {
	case c.send <- presenceFrame(h.registry.Snapshot()):
	default:
	}
}

// removeClient runs on the loop. It tears down every trace of the
// connection: room memberships, presence entries, watchdog timers.
func (h *Hub) removeClient(c *Client) {
	if _, ok := h.clients.Get(c.ID); !ok {
		return // already unregistered
	}
	h.clients.Remove(c)
	close(c.send)

	h.router.Drop(c.ID)
	snap, affected := h.registry.Disconnect(c.ID)
	for _, userID := range affected {
		h.watchdog.Disarm(userID)
	}
	if len(affected) > 0 {
		h.SendAll(presenceFrame(snap))
	}

	if !h.clients.HasUser(c.Identity.UserID) {
		go h.touchLogout(c.Identity.UserID)
	}
	h.log.Debug().Str("conn_id", c.ID).Str("user_id", c.Identity.UserID).Msg("client unregistered")
}

func (h *Hub) touchLogout(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.store.TouchLogout(ctx, userID); err != nil {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("record logout failed")
	}
}

// SendTo implements Sender. A connection that stopped draining its
// buffer is dropped, mirroring the slow-consumer policy of the
// broadcast path.
func (h *Hub) SendTo(connID string, data []byte) {
	c, ok := h.clients.Get(connID)
	if !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		h.log.Warn().Str("conn_id", connID).Msg("send buffer full, dropping client")
		h.removeClient(c)
	}
}

// SendAll implements Sender.
func (h *Hub) SendAll(data []byte) {
	for _, c := range h.clients.All() {
		h.SendTo(c.ID, data)
	}
}

// ConnsOf implements Sender.
func (h *Hub) ConnsOf(userID string) []string {
	return h.clients.ConnsOf(userID)
}

// ClientDirectory indexes live clients by connection id and by user
// id. Mutated only from the hub loop.
type ClientDirectory struct {
	byConn map[string]*Client
	byUser map[string]map[string]struct{} // userID -> connIDs
}

// NewClientDirectory creates an empty directory.
func NewClientDirectory() *ClientDirectory {
	return &ClientDirectory{
		byConn: make(map[string]*Client),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Add indexes a client under its connection and user ids.
func (d *ClientDirectory) Add(c *Client) {
	d.byConn[c.ID] = c
	userID := c.Identity.UserID
	if _, ok := d.byUser[userID]; !ok {
		d.byUser[userID] = make(map[string]struct{})
	}
	d.byUser[userID][c.ID] = struct{}{}
}

// Remove drops a client from both indexes.
func (d *ClientDirectory) Remove(c *Client) {
	delete(d.byConn, c.ID)
	userID := c.Identity.UserID
	if conns, ok := d.byUser[userID]; ok {
		delete(conns, c.ID)
		if len(conns) == 0 {
			delete(d.byUser, userID)
		}
	}
}

// Get looks a client up by connection id.
func (d *ClientDirectory) Get(connID string) (*Client, bool) {
	c, ok := d.byConn[connID]
	return c, ok
}

// HasUser reports whether the user has at least one live connection.
func (d *ClientDirectory) HasUser(userID string) bool {
	return len(d.byUser[userID]) > 0
}

// ConnsOf returns the connection ids for a user, sorted.
func (d *ClientDirectory) ConnsOf(userID string) []string {
	conns := d.byUser[userID]
	if len(conns) == 0 {
		return nil
	}
	out := make([]string, 0, len(conns))
	for connID := range conns {
		out = append(out, connID)
	}
	sort.Strings(out)
	return out
}

// All returns the current clients. The slice is a copy, so callers may
// drop clients while iterating.
func (d *ClientDirectory) All() []*Client {
	out := make([]*Client, 0, len(d.byConn))
	for _, c := range d.byConn {
		out = append(out, c)
	}
	return out
}

// Len returns the number of connected clients.
func (d *ClientDirectory) Len() int {
	return len(d.byConn)
}
