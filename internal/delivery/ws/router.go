package ws

import (
	"sort"

	"github.com/huddle-chat/huddle/internal/domain"
)

// RoomRouter maps scopes to the connections that joined them. Scopes
// have no lifecycle of their own: a member set appears on first join
// and is forgotten when the last joiner leaves.
//
// The router does not enforce the "one channel at a time" UI pattern;
// that policy lives in the client, not here. Not safe for concurrent
// use; the hub owns it from its event loop.
type RoomRouter struct {
	members map[domain.Scope]map[string]struct{} // scope -> connIDs
	joined  map[string]map[domain.Scope]struct{} // connID -> scopes, for disconnect cleanup
}

// NewRoomRouter creates an empty router.
func NewRoomRouter() *RoomRouter {
	return &RoomRouter{
		members: make(map[domain.Scope]map[string]struct{}),
		joined:  make(map[string]map[domain.Scope]struct{}),
	}
}

// Join adds connID to the scope's member set. Joining twice is a no-op.
func (rt *RoomRouter) Join(connID string, scope domain.Scope) {
	if _, ok := rt.members[scope]; !ok {
		rt.members[scope] = make(map[string]struct{})
	}
	rt.members[scope][connID] = struct{}{}

	if _, ok := rt.joined[connID]; !ok {
		rt.joined[connID] = make(map[domain.Scope]struct{})
	}
	rt.joined[connID][scope] = struct{}{}
}

// Leave removes connID from the scope. Leaving a scope that was never
// joined, or leaving twice, is a no-op, never an error.
func (rt *RoomRouter) Leave(connID string, scope domain.Scope) {
	if set, ok := rt.members[scope]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(rt.members, scope)
		}
	}
	if scopes, ok := rt.joined[connID]; ok {
		delete(scopes, scope)
		if len(scopes) == 0 {
			delete(rt.joined, connID)
		}
	}
}

// MembersOf returns the connection ids currently joined to the scope,
// sorted. Nil when the scope has no members.
func (rt *RoomRouter) MembersOf(scope domain.Scope) []string {
	set, ok := rt.members[scope]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for connID := range set {
		out = append(out, connID)
	}
	sort.Strings(out)
	return out
}

// Drop removes connID from every scope it joined. Called on disconnect.
func (rt *RoomRouter) Drop(connID string) {
	for scope := range rt.joined[connID] {
		if set, ok := rt.members[scope]; ok {
			delete(set, connID)
			if len(set) == 0 {
				delete(rt.members, scope)
			}
		}
	}
	delete(rt.joined, connID)
}
