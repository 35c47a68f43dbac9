package browser

import (
	"context"
	"errors"
	"time"
)

// ErrEngineGone reports that the underlying browser process or tab is no
// longer usable. Callers treat it as fatal for the session.
var ErrEngineGone = errors.New("browser engine gone")

// CommandKind describes a discrete control instruction for the shared page.
type CommandKind int

const (
	// CommandScroll scrolls to an absolute position.
	CommandScroll CommandKind = iota
	// CommandScrollBy scrolls by a relative delta.
	CommandScrollBy
	// CommandClick clicks at viewport coordinates.
	CommandClick
	// CommandNavigate loads a new URL.
	CommandNavigate
	// CommandType types a run of text into the focused element.
	CommandType
	// CommandKeyPress presses a single key.
	CommandKeyPress
	// CommandKeyCombo presses a key with modifiers held.
	CommandKeyCombo
	// CommandBack goes back in page history.
	CommandBack
	// CommandForward goes forward in page history.
	CommandForward
	// CommandReload reloads the current page.
	CommandReload
)

// Command is one control instruction destined for the shared page. It carries
// no originator identity; attribution only matters for chat annotations.
type Command struct {
	Kind   CommandKind
	X, Y   float64
	DeltaX float64
	DeltaY float64
	URL    string
	Text   string
	Key    string
	Keys   []string
}

// ScrollInfo describes the page's scroll position and extents at capture time.
type ScrollInfo struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	MaxX       float64 `json:"maxX"`
	MaxY       float64 `json:"maxY"`
	PageWidth  float64 `json:"pageWidth"`
	PageHeight float64 `json:"pageHeight"`
}

// Frame is one sampled snapshot of the page: rendered pixels plus the
// metadata viewers need to mirror it.
type Frame struct {
	Screenshot []byte
	Scroll     ScrollInfo
	URL        string
	Title      string
	CapturedAt time.Time
}

// Options configures a newly acquired page.
type Options struct {
	Width  int
	Height int
}

// EventKind classifies events the engine pushes outside of capture calls.
type EventKind int

const (
	// EventURLChanged fires when the page navigated on its own.
	EventURLChanged EventKind = iota
	// EventLoading fires when the page starts or stops loading.
	EventLoading
	// EventDialog fires when the page opened a javascript dialog.
	EventDialog
	// EventDownload fires when the page started a download.
	EventDownload
	// EventFatal fires when the engine died and the handle is unusable.
	EventFatal
)

// Event is an engine-originated notification.
type Event struct {
	Kind       EventKind
	URL        string
	Loading    bool
	DialogType string
	Message    string
	Filename   string
	Err        error
}

// Engine abstracts the headless browser backend.
type Engine interface {
	// Acquire starts a page at url and returns a handle for it.
	Acquire(ctx context.Context, url string, opts Options) (Handle, error)

	// Release tears the page down. Safe to call once per handle.
	Release(h Handle) error
}

// Handle is one live page. Its methods are not safe for concurrent use;
// the owning session serializes access.
type Handle interface {
	// Apply executes one command against the page.
	Apply(ctx context.Context, cmd Command) error

	// Capture snapshots the page's rendered state and metadata.
	Capture(ctx context.Context) (Frame, error)

	// Events streams engine-originated notifications. Closed on release.
	Events() <-chan Event
}
