package core

import (
	"sync"
	"time"
)

// Member is one connected participant of a room.
type Member struct {
	ConnID   string
	Name     string
	JoinedAt time.Time
}

// MessageKind distinguishes participant chat from server annotations.
type MessageKind string

const (
	// MessageUser is a participant-authored chat message.
	MessageUser MessageKind = "user"
	// MessageSystem is a server annotation, e.g. a navigation notice.
	MessageSystem MessageKind = "system"
)

// ChatMessage is one entry of a room's bounded chat log.
type ChatMessage struct {
	ID     string
	Author string
	Body   string
	Kind   MessageKind
	SentAt time.Time
}

// Room groups participants around one shared browser session.
type Room struct {
	ID          string
	CreatedAt   time.Time
	CreatorName string

	session *SessionController

	mu         sync.Mutex
	closed     bool
	members    map[string]Member
	chat       []ChatMessage
	chatLimit  int
	currentURL string
}

// NewRoom constructs a room with no members. The first member is recorded by
// the registry immediately after creation.
func NewRoom(id, creatorName, initialURL string, chatLimit int) *Room {
	return &Room{
		ID:          id,
		CreatedAt:   time.Now(),
		CreatorName: creatorName,
		members:     make(map[string]Member),
		chatLimit:   chatLimit,
		currentURL:  initialURL,
	}
}

// Session returns the room's session controller.
func (r *Room) Session() *SessionController {
	return r.session
}

// AddMember inserts a member. Returns false if the room has already been
// closed by the departure of its last member; the caller must retry against
// a fresh room.
func (r *Room) AddMember(m Member) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.members[m.ConnID] = m
	return true
}

// RemoveMember deletes a member and closes the room if it became empty.
// Exactly one caller observes closed=true for a given room.
func (r *Room) RemoveMember(connID string) (m Member, removed, closed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[connID]
	if !ok {
		return Member{}, false, false
	}
	delete(r.members, connID)
	if len(r.members) == 0 && !r.closed {
		r.closed = true
		return m, true, true
	}
	return m, true, false
}

// Members returns a snapshot of the current member list.
func (r *Room) Members() []Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	return out
}

// MemberCount reports the number of connected participants.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// AppendChat appends a message, evicting the oldest entry once the log is at
// capacity.
func (r *Room) AppendChat(msg ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat = append(r.chat, msg)
	if r.chatLimit > 0 && len(r.chat) > r.chatLimit {
		overflow := len(r.chat) - r.chatLimit
		r.chat = append(r.chat[:0:0], r.chat[overflow:]...)
	}
}

// ChatHistory returns a copy of the chat log in insertion order.
func (r *Room) ChatHistory() []ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ChatMessage(nil), r.chat...)
}

// SetCurrentURL records the last known location of the shared page.
func (r *Room) SetCurrentURL(url string) {
	r.mu.Lock()
	r.currentURL = url
	r.mu.Unlock()
}

// CurrentURL returns the last known location of the shared page.
func (r *Room) CurrentURL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentURL
}
