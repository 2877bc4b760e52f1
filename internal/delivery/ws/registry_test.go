package ws

import (
	"reflect"
	"testing"
)

func TestRegistry_OnlineAwayExclusive(t *testing.T) {
	r := NewConnectionRegistry()

	// Any interleaving of MarkOnline/MarkAway keeps the user in at
	// most one set.
	calls := []func(){
		func() { r.MarkOnline("alice", "c1") },
		func() { r.MarkAway("alice", "c1") },
		func() { r.MarkAway("alice", "c1") },
		func() { r.MarkOnline("alice", "c1") },
		func() { r.MarkOnline("alice", "c1") },
	}
	for i, call := range calls {
		call()
		snap := r.Snapshot()
		inOnline := contains(snap.Online, "alice")
		inAway := contains(snap.Away, "alice")
		if inOnline && inAway {
			t.Fatalf("after call %d: alice in both online and away", i)
		}
		if !inOnline && !inAway {
			t.Fatalf("after call %d: alice dropped from both sets", i)
		}
	}
}

func TestRegistry_MarkOnlineIdempotent(t *testing.T) {
	r := NewConnectionRegistry()

	first := r.MarkOnline("alice", "c1")
	second := r.MarkOnline("alice", "c1")

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated MarkOnline changed the snapshot: %v vs %v", first, second)
	}
}

func TestRegistry_LastWriterWins(t *testing.T) {
	r := NewConnectionRegistry()

	r.MarkOnline("alice", "c1")
	r.MarkOnline("alice", "c2") // second device takes over the entry

	connID, ok := r.OnlineConn("alice")
	if !ok || connID != "c2" {
		t.Errorf("expected entry to reference c2, got %q (ok=%v)", connID, ok)
	}

	// Disconnect of the superseded connection must not touch alice.
	snap, affected := r.Disconnect("c1")
	if len(affected) != 0 {
		t.Errorf("disconnect of stale conn affected %v", affected)
	}
	if !contains(snap.Online, "alice") {
		t.Error("alice should still be online")
	}
}

func TestRegistry_DisconnectClearsBothSets(t *testing.T) {
	r := NewConnectionRegistry()

	r.MarkOnline("alice", "c1")
	r.MarkAway("bob", "c1")
	r.MarkOnline("carol", "c2")

	snap, affected := r.Disconnect("c1")

	if !reflect.DeepEqual(affected, []string{"alice", "bob"}) {
		t.Errorf("affected = %v, want [alice bob]", affected)
	}
	if contains(snap.Online, "alice") || contains(snap.Away, "alice") {
		t.Error("alice still present after disconnect")
	}
	if contains(snap.Online, "bob") || contains(snap.Away, "bob") {
		t.Error("bob still present after disconnect")
	}
	if !contains(snap.Online, "carol") {
		t.Error("carol should be unaffected")
	}
}

func TestRegistry_SnapshotSorted(t *testing.T) {
	r := NewConnectionRegistry()

	r.MarkOnline("zoe", "c1")
	r.MarkOnline("adam", "c2")
	r.MarkAway("mia", "c3")

	snap := r.Snapshot()
	if !reflect.DeepEqual(snap.Online, []string{"adam", "zoe"}) {
		t.Errorf("online = %v, want [adam zoe]", snap.Online)
	}
	if !reflect.DeepEqual(snap.Away, []string{"mia"}) {
		t.Errorf("away = %v, want [mia]", snap.Away)
	}
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
