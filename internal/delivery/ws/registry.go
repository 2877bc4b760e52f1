package ws

import (
	"sort"

	"github.com/huddle-chat/huddle/internal/domain"
)

// ConnectionRegistry is the authoritative record of which users are
// online or away. A user id lives in at most one of the two sets; a
// user in neither is offline. Each entry remembers the connection that
// last reported activity, so simultaneous connections for one user
// collapse last-writer-wins.
//
// The registry is not safe for concurrent use. The hub mutates it only
// from its event loop.
type ConnectionRegistry struct {
	online map[string]string // userID -> connID that last reported activity
	away   map[string]string // userID -> connID recorded at demotion
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		online: make(map[string]string),
		away:   make(map[string]string),
	}
}

// MarkOnline records activity from userID over connID and returns the
// resulting snapshot. Idempotent: this is the steady-state call, fired
// on every user interaction.
func (r *ConnectionRegistry) MarkOnline(userID, connID string) domain.PresenceSnapshot {
	delete(r.away, userID)
	r.online[userID] = connID
	return r.Snapshot()
}

// MarkAway demotes userID to away and returns the resulting snapshot.
// Triggered by watchdog expiry or an explicit client signal.
func (r *ConnectionRegistry) MarkAway(userID, connID string) domain.PresenceSnapshot {
	delete(r.online, userID)
	r.away[userID] = connID
	return r.Snapshot()
}

// Disconnect removes every user whose registry entry references connID
// from both sets, returning the snapshot and the affected user ids.
// Under the last-writer model a user with another live connection is
// still dropped to offline; that limitation is inherited deliberately.
func (r *ConnectionRegistry) Disconnect(connID string) (domain.PresenceSnapshot, []string) {
	var affected []string
	for userID, c := range r.online {
		if c == connID {
			delete(r.online, userID)
			affected = append(affected, userID)
		}
	}
	for userID, c := range r.away {
		if c == connID {
			delete(r.away, userID)
			affected = append(affected, userID)
		}
	}
	sort.Strings(affected)
	return r.Snapshot(), affected
}

// OnlineConn returns the connection recorded for an online user.
func (r *ConnectionRegistry) OnlineConn(userID string) (string, bool) {
	connID, ok := r.online[userID]
	return connID, ok
}

// Snapshot returns the current presence sets, sorted for deterministic
// output. Used for the broadcast after every mutation and for initial
// sync of a newly-connecting client.
func (r *ConnectionRegistry) Snapshot() domain.PresenceSnapshot {
	snap := domain.PresenceSnapshot{
		Online: make([]string, 0, len(r.online)),
		Away:   make([]string, 0, len(r.away)),
	}
	for userID := range r.online {
		snap.Online = append(snap.Online, userID)
	}
	for userID := range r.away {
		snap.Away = append(snap.Away, userID)
	}
	sort.Strings(snap.Online)
	sort.Strings(snap.Away)
	return snap
}
