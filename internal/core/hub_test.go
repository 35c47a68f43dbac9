package core

import "testing"

func TestHubBroadcastReachesAllSubscribers(t *testing.T) {
	hub := NewBroadcastHub()
	chA := hub.Register("a")
	chB := hub.Register("b")
	hub.Subscribe("room1", "a")
	hub.Subscribe("room1", "b")

	hub.Broadcast("room1", &Event{Kind: EventLoadingState, Room: "room1", Loading: true})

	for _, ch := range []<-chan *Event{chA, chB} {
		ev := mustEvent(t, ch, EventLoadingState)
		if !ev.Loading {
			t.Fatalf("unexpected event %+v", ev)
		}
	}
}

func TestHubBroadcastExceptSkipsSender(t *testing.T) {
	hub := NewBroadcastHub()
	chA := hub.Register("a")
	chB := hub.Register("b")
	hub.Subscribe("room1", "a")
	hub.Subscribe("room1", "b")

	hub.BroadcastExcept("room1", "a", &Event{Kind: EventMousePosition, User: "bob", X: 5})

	ev := mustEvent(t, chB, EventMousePosition)
	if ev.User != "bob" || ev.X != 5 {
		t.Fatalf("unexpected event %+v", ev)
	}
	select {
	case got := <-chA:
		t.Fatalf("sender received its own broadcast: %+v", got)
	default:
	}
}

func TestHubUnicastReachesOneConnection(t *testing.T) {
	hub := NewBroadcastHub()
	chA := hub.Register("a")
	chB := hub.Register("b")
	hub.Subscribe("room1", "a")
	hub.Subscribe("room1", "b")

	hub.Unicast("a", &Event{Kind: EventRoomURL, URL: "https://example.com"})

	ev := mustEvent(t, chA, EventRoomURL)
	if ev.URL != "https://example.com" {
		t.Fatalf("unexpected event %+v", ev)
	}
	select {
	case got := <-chB:
		t.Fatalf("unicast leaked to another connection: %+v", got)
	default:
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewBroadcastHub()
	chA := hub.Register("a")
	hub.Subscribe("room1", "a")
	hub.Unsubscribe("room1", "a")

	hub.Broadcast("room1", &Event{Kind: EventLoadingState})

	select {
	case got := <-chA:
		t.Fatalf("received event after unsubscribe: %+v", got)
	default:
	}
}

func TestHubDeregisterClosesChannel(t *testing.T) {
	hub := NewBroadcastHub()
	ch := hub.Register("a")
	hub.Subscribe("room1", "a")
	hub.Deregister("a")

	if _, open := <-ch; open {
		t.Fatal("expected closed channel after deregister")
	}

	// Broadcasting to the room afterwards must not panic.
	hub.Broadcast("room1", &Event{Kind: EventLoadingState})
}
