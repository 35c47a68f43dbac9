package core

import "github.com/johna108/comic-sync/internal/browser"

// EventKind is a notification delivered to room members.
type EventKind int

const (
	// EventFrame carries a sampled page snapshot.
	EventFrame EventKind = iota
	// EventPageInfo carries page title and content extents.
	EventPageInfo
	// EventURLChanged notifies members that the shared page's URL changed.
	EventURLChanged
	// EventRoomURL replays the room's current URL to a joining participant.
	EventRoomURL
	// EventLoadingState notifies members that the page started or stopped loading.
	EventLoadingState
	// EventBrowserReady notifies members that the shared session is usable.
	EventBrowserReady
	// EventBrowserError notifies members that the session failed.
	EventBrowserError
	// EventDialog notifies members that the page opened a dialog.
	EventDialog
	// EventDownload notifies members that the page started a download.
	EventDownload
	// EventRoomUsers delivers the current member list.
	EventRoomUsers
	// EventUserJoined notifies members about a new participant.
	EventUserJoined
	// EventUserLeft notifies members about a departed participant.
	EventUserLeft
	// EventChatMessage delivers one chat message.
	EventChatMessage
	// EventChatHistory delivers the chat backlog to a joining participant.
	EventChatHistory
	// EventMousePosition carries another participant's presence cursor.
	EventMousePosition
)

// Event is sent to room members to describe what happened in the room.
type Event struct {
	Kind       EventKind
	Room       string
	User       string
	URL        string
	Loading    bool
	DialogType string
	Text       string
	Filename   string
	X, Y       float64
	Frame      *browser.Frame
	Message    *ChatMessage
	Messages   []ChatMessage
	Members    []Member
	Error      *CoreError
}
