package proto

import (
	"encoding/json"

	"github.com/johna108/comic-sync/internal/browser"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Client-to-server event names.
const (
	InboundJoinRoom       = "join-room"
	InboundLeaveRoom      = "leave-room"
	InboundScroll         = "browser-scroll"
	InboundScrollBy       = "browser-scroll-by"
	InboundClick          = "browser-click"
	InboundNavigate       = "browser-navigate"
	InboundBack           = "browser-back"
	InboundForward        = "browser-forward"
	InboundReload         = "browser-reload"
	InboundType           = "browser-type"
	InboundKey            = "browser-key"
	InboundKeyCombo       = "browser-key-combo"
	InboundURLTypingStart = "url-typing-start"
	InboundURLTypingStop  = "url-typing-stop"
	InboundMouseMove      = "mouse-move"
	InboundChatMessage    = "chat-message"
)

// Server-to-client event names.
const (
	OutboundRoomNotFound     = "room-not-found"
	OutboundRoomUsers        = "room-users"
	OutboundUserJoined       = "user-joined"
	OutboundUserLeft         = "user-left"
	OutboundURLUpdate        = "webtoon-url-update"
	OutboundScreenshotUpdate = "screenshot-update"
	OutboundPageInfoUpdate   = "page-info-update"
	OutboundURLChanged       = "url-changed"
	OutboundLoadingState     = "loading-state"
	OutboundBrowserReady     = "browser-ready"
	OutboundBrowserError     = "browser-error"
	OutboundBrowserDialog    = "browser-dialog"
	OutboundDownloadStarted  = "download-started"
	OutboundMousePosition    = "mouse-position"
	OutboundChatMessage      = "chat-message"
	OutboundChatHistory      = "chat-history"
	OutboundError            = "error"
)

// JoinRoomData asks to join (or, for creators, create) a room.
type JoinRoomData struct {
	RoomCode   string `json:"roomCode"`
	UserName   string `json:"userName"`
	IsCreator  bool   `json:"isCreator"`
	InitialURL string `json:"initialUrl,omitempty"`
}

// RoomData addresses an event at a room without further payload.
type RoomData struct {
	RoomCode string `json:"roomCode"`
}

// ScrollData requests an absolute scroll of the shared page.
type ScrollData struct {
	RoomCode string  `json:"roomCode"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// ScrollByData requests a relative scroll of the shared page.
type ScrollByData struct {
	RoomCode string  `json:"roomCode"`
	DeltaX   float64 `json:"deltaX"`
	DeltaY   float64 `json:"deltaY"`
}

// ClickData requests a click at viewport coordinates.
type ClickData struct {
	RoomCode string  `json:"roomCode"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// NavigateData requests navigation of the shared page.
type NavigateData struct {
	RoomCode string `json:"roomCode"`
	URL      string `json:"url"`
}

// TypeData requests typing a run of text.
type TypeData struct {
	RoomCode string `json:"roomCode"`
	Text     string `json:"text"`
}

// KeyData requests a key press. Type is the legacy keydown/keyup
// discriminator; when present, only keydown is applied.
type KeyData struct {
	RoomCode string `json:"roomCode"`
	Key      string `json:"key"`
	Type     string `json:"type,omitempty"`
}

// KeyComboData requests a key press with modifiers held.
type KeyComboData struct {
	RoomCode string   `json:"roomCode"`
	Keys     []string `json:"keys"`
}

// MouseMoveData shares a participant's cursor position with the room.
type MouseMoveData struct {
	RoomCode string  `json:"roomCode"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	UserName string  `json:"userName"`
}

// ChatData is a participant chat message.
type ChatData struct {
	RoomCode string `json:"roomCode"`
	Message  string `json:"message"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// RoomUser is one member entry of a room-users payload.
type RoomUser struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
}

// UserEvent names the participant a join/leave notification is about.
type UserEvent struct {
	UserName string `json:"userName"`
}

// URLUpdate carries the shared page's location.
type URLUpdate struct {
	URL string `json:"url"`
}

// ScreenshotUpdate carries one sampled frame.
type ScreenshotUpdate struct {
	Screenshot     string             `json:"screenshot"`
	ScrollPosition browser.ScrollInfo `json:"scrollPosition"`
	Timestamp      int64              `json:"timestamp"`
}

// PageInfoUpdate carries page metadata derived from a sample.
type PageInfoUpdate struct {
	URL        string  `json:"url,omitempty"`
	Title      string  `json:"title"`
	PageWidth  float64 `json:"pageWidth"`
	PageHeight float64 `json:"pageHeight"`
}

// LoadingState reports whether the shared page is loading.
type LoadingState struct {
	Loading bool `json:"loading"`
}

// BrowserReady reports that the shared session became usable.
type BrowserReady struct {
	Success bool `json:"success"`
}

// BrowserError reports that the shared session failed.
type BrowserError struct {
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

// BrowserDialog reports a dialog opened by the shared page.
type BrowserDialog struct {
	DialogType string `json:"dialogType"`
	Message    string `json:"message"`
}

// DownloadStarted reports a download begun by the shared page.
type DownloadStarted struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// MousePosition is another participant's presence cursor.
type MousePosition struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	UserName string  `json:"userName"`
}

// ChatMessage is one chat entry as delivered to clients.
type ChatMessage struct {
	ID        string `json:"id"`
	UserName  string `json:"userName"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
}

// ChatHistory replays the chat backlog to a joining participant.
type ChatHistory struct {
	Messages []ChatMessage `json:"messages"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
