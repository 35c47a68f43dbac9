package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/johna108/comic-sync/internal/browser"
)

// RegistryConfig tunes room creation.
type RegistryConfig struct {
	DefaultURL string
	ChatLimit  int
	Session    SessionConfig
}

// RoomRegistry is the single source of truth mapping room codes to rooms and
// their session controllers. Its mutex guards only the room map; no engine
// or network call happens while it is held.
type RoomRegistry struct {
	hub    *BroadcastHub
	engine browser.Engine
	cfg    RegistryConfig
	log    *zerolog.Logger

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRoomRegistry constructs an empty registry.
func NewRoomRegistry(engine browser.Engine, hub *BroadcastHub, cfg RegistryConfig, logger *zerolog.Logger) *RoomRegistry {
	return &RoomRegistry{
		hub:    hub,
		engine: engine,
		cfg:    cfg,
		log:    logger,
		rooms:  make(map[string]*Room),
	}
}

// JoinOrCreate adds a member to a room, creating the room and starting its
// session when a creator targets an unknown room code. Joiners targeting an
// unknown code get ErrRoomNotFound; concurrent creators are serialized so
// exactly one session is ever started per room code.
func (r *RoomRegistry) JoinOrCreate(roomID string, m Member, isCreator bool, initialURL string) (*Room, error) {
	for {
		r.mu.Lock()
		room, ok := r.rooms[roomID]
		if !ok {
			if !isCreator {
				r.mu.Unlock()
				return nil, ErrRoomNotFound
			}
			url := initialURL
			if url == "" {
				url = r.cfg.DefaultURL
			}
			room = NewRoom(roomID, m.Name, url, r.cfg.ChatLimit)
			sessCfg := r.cfg.Session
			sessCfg.StartURL = url
			room.session = NewSessionController(room, r.engine, r.hub, sessCfg, r.log)
			r.rooms[roomID] = room
			r.mu.Unlock()

			r.log.Info().Str("room", roomID).Str("creator", m.Name).Str("url", url).Msg("room created")
			room.session.Start()
		} else {
			r.mu.Unlock()
		}

		if room.AddMember(m) {
			return room, nil
		}
		// Lost a race with the teardown of this room's last member;
		// look the code up again.
	}
}

// Leave removes a member. When the last member departs, the session is
// stopped and the room deleted synchronously; there is no grace period and
// no idle sweep.
func (r *RoomRegistry) Leave(roomID, connID string) {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	r.mu.Unlock()
	if !ok {
		return
	}

	m, removed, closed := room.RemoveMember(connID)
	if !removed {
		return
	}
	r.hub.Unsubscribe(roomID, connID)

	if closed {
		// Stop signals the loops and returns; releasing the page
		// happens off the registry's critical path.
		room.session.Stop()
		r.mu.Lock()
		if r.rooms[roomID] == room {
			delete(r.rooms, roomID)
		}
		r.mu.Unlock()
		r.log.Info().Str("room", roomID).Msg("room cleaned up")
		return
	}

	r.hub.Broadcast(roomID, &Event{Kind: EventUserLeft, Room: roomID, User: m.Name})
	r.hub.Broadcast(roomID, &Event{Kind: EventRoomUsers, Room: roomID, Members: room.Members()})
	r.log.Debug().Str("room", roomID).Str("user", m.Name).Msg("member left")
}

// Room looks a room up by code.
func (r *RoomRegistry) Room(roomID string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	return room, ok
}

// PostChat appends a participant message to the room's chat log and
// broadcasts the stored, id-assigned message.
func (r *RoomRegistry) PostChat(roomID, author, body string) (ChatMessage, error) {
	return r.appendChat(roomID, author, body, MessageUser)
}

// AppendSystemMessage records a server annotation in the chat log, used to
// attribute navigation actions to the acting participant.
func (r *RoomRegistry) AppendSystemMessage(roomID, text string) {
	if _, err := r.appendChat(roomID, "System", text, MessageSystem); err != nil {
		r.log.Debug().Str("room", roomID).Msg("system message for unknown room dropped")
	}
}

func (r *RoomRegistry) appendChat(roomID, author, body string, kind MessageKind) (ChatMessage, error) {
	room, ok := r.Room(roomID)
	if !ok {
		return ChatMessage{}, fmt.Errorf("post chat: %w", ErrRoomNotFound)
	}
	msg := ChatMessage{
		ID:     uuid.NewString(),
		Author: author,
		Body:   body,
		Kind:   kind,
		SentAt: time.Now(),
	}
	room.AppendChat(msg)
	r.hub.Broadcast(roomID, &Event{Kind: EventChatMessage, Room: roomID, Message: &msg})
	return msg, nil
}

// RoomInfo is the API view of one room.
type RoomInfo struct {
	RoomCode   string
	UserCount  int
	ContentURL string
}

// Info returns the API view of a room, or ok=false if absent.
func (r *RoomRegistry) Info(roomID string) (RoomInfo, bool) {
	room, ok := r.Room(roomID)
	if !ok {
		return RoomInfo{}, false
	}
	return RoomInfo{
		RoomCode:   room.ID,
		UserCount:  room.MemberCount(),
		ContentURL: room.CurrentURL(),
	}, true
}

// Stats reports the number of rooms and of sessions that are not terminal.
func (r *RoomRegistry) Stats() (rooms, activeSessions int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.rooms {
		switch room.session.State() {
		case Starting, Ready:
			activeSessions++
		}
	}
	return len(r.rooms), activeSessions
}

// Close stops every session and empties the registry. Used on shutdown.
func (r *RoomRegistry) Close() {
	r.mu.Lock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.rooms = make(map[string]*Room)
	r.mu.Unlock()

	for _, room := range rooms {
		room.session.Stop()
	}
}
