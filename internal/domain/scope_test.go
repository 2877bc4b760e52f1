package domain

import "testing"

func TestScopeKeys(t *testing.T) {
	cases := []struct {
		name  string
		scope Scope
		want  string
	}{
		{"channel", ChannelScope("acme", "general"), "channel/acme/general"},
		{"group", GroupScope("g42"), "group/g42"},
		{"direct", DirectScope("alice", "bob"), "direct/alice/bob"},
		{"global", GlobalScope(), "global"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.scope.Key(); got != tc.want {
				t.Errorf("Key() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDirectScopeNormalizesOrder(t *testing.T) {
	a := DirectScope("zoe", "adam")
	b := DirectScope("adam", "zoe")
	if a != b {
		t.Errorf("direct scopes differ: %+v vs %+v", a, b)
	}
	if a.UserA != "adam" || a.UserB != "zoe" {
		t.Errorf("pair not normalized: %q, %q", a.UserA, a.UserB)
	}
}

func TestScopeValidate(t *testing.T) {
	valid := []Scope{
		ChannelScope("acme", "general"),
		GroupScope("g1"),
		DirectScope("a", "b"),
		GlobalScope(),
	}
	for _, s := range valid {
		if err := s.Validate(); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", s.Key(), err)
		}
	}

	invalid := []Scope{
		{Kind: ScopeKindChannel, Team: "acme"},
		{Kind: ScopeKindChannel, Channel: "general"},
		{Kind: ScopeKindChannel, Team: "ac/me", Channel: "general"},
		{Kind: ScopeKindGroup},
		{Kind: ScopeKindDirect, UserA: "a"},
		{Kind: ScopeKindDirect, UserA: "zoe", UserB: "adam"},
		{Kind: "room", Team: "x"},
	}
	for _, s := range invalid {
		if err := s.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", s)
		}
	}
}

func TestScopeIncludes(t *testing.T) {
	s := DirectScope("alice", "bob")
	if !s.Includes("alice") || !s.Includes("bob") {
		t.Error("direct scope must include both endpoints")
	}
	if s.Includes("carol") {
		t.Error("direct scope must exclude outsiders")
	}
	if ChannelScope("t", "c").Includes("alice") {
		t.Error("Includes is only meaningful for direct scopes")
	}
}
