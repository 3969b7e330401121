package app

import (
	"testing"

	"github.com/dkeye/Relay/internal/core/coretest"
)

func TestRegistryLastJoinWins(t *testing.T) {
	reg := NewRegistry()
	a := coretest.NewConn("a")
	b := coretest.NewConn("b")

	if old := reg.Register("u1", a); old != nil {
		t.Fatalf("first register superseded %v", old.ID())
	}
	old := reg.Register("u1", b)
	if old == nil || old.ID() != "a" {
		t.Fatalf("expected a to be superseded, got %v", old)
	}

	conn, ok := reg.Lookup("u1")
	if !ok || conn.ID() != "b" {
		t.Fatalf("lookup u1: got %v %v, want b", conn, ok)
	}

	if _, err := reg.Deliver("u1", []byte(`{"type":"x"}`)); err != nil {
		t.Fatal(err)
	}
	if n := len(a.Events(t)); n != 0 {
		t.Fatalf("superseded connection got %d frames", n)
	}
	if n := len(b.Events(t)); n != 1 {
		t.Fatalf("current connection got %d frames, want 1", n)
	}
}

func TestRegistryRemoveSupersededIsNoop(t *testing.T) {
	reg := NewRegistry()
	a := coretest.NewConn("a")
	b := coretest.NewConn("b")
	reg.Register("u1", a)
	reg.Register("u1", b)

	if _, ok := reg.Remove(a.ID()); ok {
		t.Fatal("removing a superseded connection must not report an identity")
	}
	if conn, ok := reg.Lookup("u1"); !ok || conn.ID() != "b" {
		t.Fatal("superseded removal dropped the current entry")
	}

	id, ok := reg.Remove(b.ID())
	if !ok || id != "u1" {
		t.Fatalf("remove b: got %q %v", id, ok)
	}
	if _, ok := reg.Lookup("u1"); ok {
		t.Fatal("u1 still routable after removal")
	}
	if _, ok := reg.Remove(b.ID()); ok {
		t.Fatal("second remove must be a no-op")
	}
}

func TestRegistryConnectionChangesIdentity(t *testing.T) {
	reg := NewRegistry()
	a := coretest.NewConn("a")
	reg.Register("u1", a)
	reg.Register("u2", a)

	if _, ok := reg.Lookup("u1"); ok {
		t.Fatal("u1 should no longer route to a")
	}
	if conn, ok := reg.Lookup("u2"); !ok || conn.ID() != "a" {
		t.Fatal("u2 should route to a")
	}
	if reg.Online() != 1 {
		t.Fatalf("online = %d, want 1", reg.Online())
	}
}

func TestRegistryDeliverMiss(t *testing.T) {
	reg := NewRegistry()
	conn, err := reg.Deliver("nobody", []byte(`{}`))
	if conn != nil || err != nil {
		t.Fatalf("miss should return nil, nil; got %v, %v", conn, err)
	}
}
