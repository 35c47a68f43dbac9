package core

import (
	"fmt"
	"testing"
	"time"
)

func TestChatLogEvictsOldestAtCapacity(t *testing.T) {
	room := NewRoom("r", "alice", "https://example.com", 100)

	for i := 1; i <= 101; i++ {
		room.AppendChat(ChatMessage{
			ID:     fmt.Sprintf("m%d", i),
			Author: "alice",
			Body:   fmt.Sprintf("message %d", i),
			Kind:   MessageUser,
			SentAt: time.Now(),
		})
	}

	history := room.ChatHistory()
	if len(history) != 100 {
		t.Fatalf("expected 100 messages, got %d", len(history))
	}
	if history[0].ID != "m2" {
		t.Fatalf("expected oldest message evicted, first is %s", history[0].ID)
	}
	if history[99].ID != "m101" {
		t.Fatalf("expected newest message last, got %s", history[99].ID)
	}
	for i := 1; i < len(history); i++ {
		if history[i-1].SentAt.After(history[i].SentAt) {
			t.Fatal("history out of insertion order")
		}
	}
}

func TestRoomClosesExactlyOnceOnLastLeave(t *testing.T) {
	room := NewRoom("r", "alice", "https://example.com", 100)
	if !room.AddMember(Member{ConnID: "a", Name: "alice"}) {
		t.Fatal("add alice failed")
	}
	if !room.AddMember(Member{ConnID: "b", Name: "bob"}) {
		t.Fatal("add bob failed")
	}

	_, removed, closed := room.RemoveMember("a")
	if !removed || closed {
		t.Fatalf("first leave: removed=%v closed=%v", removed, closed)
	}
	m, removed, closed := room.RemoveMember("b")
	if !removed || !closed {
		t.Fatalf("last leave: removed=%v closed=%v", removed, closed)
	}
	if m.Name != "bob" {
		t.Fatalf("unexpected member %+v", m)
	}

	// A closed room refuses new members; the registry must build a new one.
	if room.AddMember(Member{ConnID: "c", Name: "carol"}) {
		t.Fatal("closed room accepted a member")
	}
}

func TestRemoveUnknownMemberIsNoop(t *testing.T) {
	room := NewRoom("r", "alice", "https://example.com", 100)
	room.AddMember(Member{ConnID: "a", Name: "alice"})

	if _, removed, closed := room.RemoveMember("ghost"); removed || closed {
		t.Fatalf("unexpected removal: removed=%v closed=%v", removed, closed)
	}
	if room.MemberCount() != 1 {
		t.Fatalf("expected 1 member, got %d", room.MemberCount())
	}
}
