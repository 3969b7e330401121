package app

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dkeye/Relay/internal/core/coretest"
	"github.com/dkeye/Relay/internal/domain"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRouter(policy Policy) *Router {
	rt := NewRouter(NewRegistry(), policy)
	rt.Now = func() time.Time { return fixedNow }
	return rt
}

func TestRouteDropOnMiss(t *testing.T) {
	rt := newTestRouter(nil)
	sender := coretest.NewConn("s")
	rt.Registry.Register("u1", sender)

	if got := rt.Route(domain.EventCallEnded, "u1", "ghost", nil); got != Offline {
		t.Fatalf("route to unknown identity = %s, want offline", got)
	}
	if n := len(sender.Events(t)); n != 0 {
		t.Fatalf("sender received %d frames, want none", n)
	}
}

func TestRouteStampsEnvelope(t *testing.T) {
	rt := newTestRouter(nil)
	target := coretest.NewConn("t")
	rt.Registry.Register("u2", target)

	payload := map[string]any{"from": "spoofed", "answer": map[string]string{"sdp": "y"}}
	if got := rt.Route(domain.EventCallAccepted, "u1", "u2", payload); got != Delivered {
		t.Fatalf("route = %s, want delivered", got)
	}

	events := target.Events(t)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e["type"] != "call-accepted" {
		t.Errorf("type = %v", e["type"])
	}
	if e["from"] != "u1" {
		t.Errorf("from = %v, want server attributed u1", e["from"])
	}
	if e["sentAt"] != fixedNow.Format(time.RFC3339) {
		t.Errorf("sentAt = %v", e["sentAt"])
	}
	answer, _ := e["answer"].(map[string]any)
	if answer["sdp"] != "y" {
		t.Errorf("answer = %v", e["answer"])
	}
}

func TestPrivateMessageForwardsStoredFields(t *testing.T) {
	rt := newTestRouter(nil)
	target := coretest.NewConn("t")
	rt.Registry.Register("u2", target)

	rt.PrivateMessage("u1", "u2", domain.ChatMessage{
		"_id":         json.RawMessage(`"m42"`),
		"read":        json.RawMessage(`false`),
		"content":     json.RawMessage(`"hi"`),
		"sender":      json.RawMessage(`{"_id":"u1","name":"A"}`),
		"receiver":    json.RawMessage(`{"_id":"u2","name":"B"}`),
		"createdAt":   json.RawMessage(`"2020-01-01T00:00:00Z"`),
		"recipientId": json.RawMessage(`"u2"`),
	})

	msgs := target.OfType(t, "private message")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	if m["_id"] != "m42" || m["read"] != false || m["content"] != "hi" {
		t.Errorf("stored fields not forwarded: %v", m)
	}
	if m["createdAt"] != fixedNow.Format(time.RFC3339) {
		t.Errorf("createdAt = %v, want server clock", m["createdAt"])
	}
	if _, ok := m["recipientId"]; ok {
		t.Errorf("recipientId echoed to the recipient: %v", m)
	}
	sender, _ := m["sender"].(map[string]any)
	if sender["name"] != "A" {
		t.Errorf("sender not forwarded verbatim: %v", m["sender"])
	}
}

func TestPrivateMessageLeavesInputUntouched(t *testing.T) {
	rt := newTestRouter(nil)
	rt.Registry.Register("u2", coretest.NewConn("t"))

	msg := domain.ChatMessage{"content": json.RawMessage(`""`), "recipientId": json.RawMessage(`"u2"`)}
	if got := rt.PrivateMessage("u1", "u2", msg); got != Delivered {
		t.Fatalf("empty content = %s, want delivered", got)
	}
	if _, ok := msg["recipientId"]; !ok || len(msg) != 2 {
		t.Fatalf("caller's message was modified: %v", msg)
	}
}

func TestBroadcast(t *testing.T) {
	rt := newTestRouter(KickPolicy{})
	pub, fan, slow := coretest.NewConn("p"), coretest.NewConn("f"), coretest.NewConn("s")
	rt.Registry.Register("u1", pub)
	rt.Registry.Register("u2", fan)
	rt.Registry.Register("u3", slow)
	slow.SetFull(true)

	n := rt.Broadcast(domain.EventPostLiked, "u1", map[string]any{"postId": "p1", "from": "spoofed"})
	if n != 2 {
		t.Fatalf("delivered = %d, want 2", n)
	}
	for name, conn := range map[string]*coretest.Conn{"u1": pub, "u2": fan} {
		got := conn.OfType(t, "postLiked")
		if len(got) != 1 || got[0]["postId"] != "p1" || got[0]["from"] != "u1" {
			t.Errorf("%s postLiked = %v", name, got)
		}
	}
	if !slow.Closed() {
		t.Error("kick policy should close the connection that refused the broadcast")
	}
}

func TestBroadcastNobodyOnline(t *testing.T) {
	rt := newTestRouter(nil)
	if n := rt.Broadcast(domain.EventMessage, "u1", nil); n != 0 {
		t.Fatalf("delivered = %d, want 0", n)
	}
}

func TestRouteBackpressure(t *testing.T) {
	t.Run("drop", func(t *testing.T) {
		rt := newTestRouter(DropPolicy{})
		target := coretest.NewConn("t")
		target.SetFull(true)
		rt.Registry.Register("u2", target)

		if got := rt.Route(domain.EventCallEnded, "u1", "u2", nil); got != Dropped {
			t.Fatalf("route = %s, want dropped", got)
		}
		if target.Closed() {
			t.Fatal("drop policy must not close the connection")
		}
	})

	t.Run("kick", func(t *testing.T) {
		rt := newTestRouter(KickPolicy{})
		target := coretest.NewConn("t")
		target.SetFull(true)
		rt.Registry.Register("u2", target)

		if got := rt.Route(domain.EventCallEnded, "u1", "u2", nil); got != Dropped {
			t.Fatalf("route = %s, want dropped", got)
		}
		if !target.Closed() {
			t.Fatal("kick policy should close the slow connection")
		}
	})
}

func TestEncodeEventRejectsNonObject(t *testing.T) {
	if _, err := EncodeEvent(domain.EventCallEnded, "u1", fixedNow, []int{1, 2}); err == nil {
		t.Fatal("expected an error for an array payload")
	}
}

func TestPolicyFromString(t *testing.T) {
	if _, ok := PolicyFromString("kick").(KickPolicy); !ok {
		t.Error("kick should map to KickPolicy")
	}
	if _, ok := PolicyFromString("whatever").(DropPolicy); !ok {
		t.Error("unknown values should fall back to DropPolicy")
	}
}
