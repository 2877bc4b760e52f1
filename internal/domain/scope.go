package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ScopeKind identifies the addressing variant of a Scope.
type ScopeKind string

const (
	ScopeKindChannel ScopeKind = "channel"
	ScopeKindGroup   ScopeKind = "group"
	ScopeKindDirect  ScopeKind = "direct"
	ScopeKindGlobal  ScopeKind = "global"
)

// Scope is an addressable broadcast target: a team channel, a private
// group, an unordered direct-message pair, or the global room. The zero
// value is invalid. Scope is comparable and used as a map key by the
// room router.
type Scope struct {
	Kind    ScopeKind `json:"kind"`
	Team    string    `json:"team,omitempty"`
	Channel string    `json:"channel,omitempty"`
	Group   string    `json:"group,omitempty"`
	UserA   string    `json:"user_a,omitempty"`
	UserB   string    `json:"user_b,omitempty"`
}

// ChannelScope addresses a channel within a team.
func ChannelScope(team, channel string) Scope {
	return Scope{Kind: ScopeKindChannel, Team: team, Channel: channel}
}

// GroupScope addresses a private group by its id.
func GroupScope(groupID string) Scope {
	return Scope{Kind: ScopeKindGroup, Group: groupID}
}

// DirectScope addresses the conversation between two users. The pair is
// unordered: DirectScope(a, b) and DirectScope(b, a) are the same scope.
func DirectScope(a, b string) Scope {
	if b < a {
		a, b = b, a
	}
	return Scope{Kind: ScopeKindDirect, UserA: a, UserB: b}
}

// GlobalScope addresses every connected client.
func GlobalScope() Scope {
	return Scope{Kind: ScopeKindGlobal}
}

// Key returns the canonical string form of the scope, used as the
// storage key for message history.
func (s Scope) Key() string {
	switch s.Kind {
	case ScopeKindChannel:
		return fmt.Sprintf("channel/%s/%s", s.Team, s.Channel)
	case ScopeKindGroup:
		return "group/" + s.Group
	case ScopeKindDirect:
		return fmt.Sprintf("direct/%s/%s", s.UserA, s.UserB)
	case ScopeKindGlobal:
		return "global"
	}
	return ""
}

// Validate checks that the scope's fields match its kind. Name segments
// may not contain '/' because they participate in the storage key.
func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeKindChannel:
		if s.Team == "" || s.Channel == "" {
			return errors.New("channel scope requires team and channel")
		}
		if strings.ContainsRune(s.Team, '/') || strings.ContainsRune(s.Channel, '/') {
			return errors.New("channel scope names may not contain '/'")
		}
	case ScopeKindGroup:
		if s.Group == "" {
			return errors.New("group scope requires a group id")
		}
		if strings.ContainsRune(s.Group, '/') {
			return errors.New("group id may not contain '/'")
		}
	case ScopeKindDirect:
		if s.UserA == "" || s.UserB == "" {
			return errors.New("direct scope requires two user ids")
		}
		if s.UserB < s.UserA {
			return errors.New("direct scope pair is not normalized")
		}
	case ScopeKindGlobal:
	default:
		return fmt.Errorf("unknown scope kind %q", s.Kind)
	}
	return nil
}

// Includes reports whether userID is one of the direct pair's
// endpoints. Always false for non-direct scopes.
func (s Scope) Includes(userID string) bool {
	return s.Kind == ScopeKindDirect && (s.UserA == userID || s.UserB == userID)
}
