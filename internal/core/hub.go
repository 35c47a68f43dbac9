package core

import "sync"

// eventBuffer sizes each connection's outbound channel. Frames that do not
// fit are dropped; the next sample supersedes them.
const eventBuffer = 32

// BroadcastHub fans room events out to connected participants.
//
// Membership changes are atomic with respect to in-flight broadcasts: a
// broadcast either fully precedes or fully follows a subscribe/unsubscribe,
// so a connection never sees a partial or duplicate delivery of one event.
type BroadcastHub struct {
	mu    sync.RWMutex
	conns map[string]chan *Event
	rooms map[string]map[string]struct{}
}

// NewBroadcastHub constructs an empty hub.
func NewBroadcastHub() *BroadcastHub {
	return &BroadcastHub{
		conns: make(map[string]chan *Event),
		rooms: make(map[string]map[string]struct{}),
	}
}

// Register creates the outbound event channel for a connection. The channel
// is closed by Deregister.
func (h *BroadcastHub) Register(connID string) <-chan *Event {
	ch := make(chan *Event, eventBuffer)
	h.mu.Lock()
	h.conns[connID] = ch
	h.mu.Unlock()
	return ch
}

// Deregister removes a connection from every room and closes its channel.
func (h *BroadcastHub) Deregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.conns[connID]
	if !ok {
		return
	}
	delete(h.conns, connID)
	for roomID, members := range h.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	close(ch)
}

// Subscribe adds a registered connection to a room's broadcast set.
func (h *BroadcastHub) Subscribe(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[connID]; !ok {
		return
	}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[roomID] = members
	}
	members[connID] = struct{}{}
}

// Unsubscribe removes a connection from a room's broadcast set.
func (h *BroadcastHub) Unsubscribe(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// Broadcast delivers an event to every member of a room, best effort.
func (h *BroadcastHub) Broadcast(roomID string, ev *Event) {
	h.BroadcastExcept(roomID, "", ev)
}

// BroadcastExcept delivers an event to every member of a room except one
// connection, best effort.
func (h *BroadcastHub) BroadcastExcept(roomID, exceptConnID string, ev *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID := range h.rooms[roomID] {
		if connID == exceptConnID {
			continue
		}
		h.send(connID, ev)
	}
}

// Unicast delivers an event to exactly one connection, best effort.
func (h *BroadcastHub) Unicast(connID string, ev *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.send(connID, ev)
}

// send assumes the hub lock is held.
func (h *BroadcastHub) send(connID string, ev *Event) {
	ch, ok := h.conns[connID]
	if !ok {
		return
	}
	select {
	case ch <- ev:
	default:
		// Drop if slow consumer.
	}
}
