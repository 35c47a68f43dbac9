package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/johna108/comic-sync/internal/browser"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()
	return mustEventWhere(t, ch, kind, func(*Event) bool { return true })
}

func mustEventWhere(t *testing.T, ch <-chan *Event, kind EventKind, match func(*Event) bool) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind && match(ev) {
				return ev
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// fakeEngine is an in-memory stand-in for the headless browser.
type fakeEngine struct {
	mu          sync.Mutex
	acquireErr  error
	acquireGate chan struct{} // when non-nil, Acquire blocks until closed
	acquires    int
	releases    int
	lastHandle  *fakeHandle
}

func (e *fakeEngine) Acquire(ctx context.Context, url string, _ browser.Options) (browser.Handle, error) {
	e.mu.Lock()
	gate := e.acquireGate
	e.mu.Unlock()
	if gate != nil {
		// Per the field contract, block until the gate is closed even if
		// ctx is already cancelled; otherwise a Stop that cancels the
		// context races the gate release and the late handle never exists.
		<-gate
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.acquires++
	if e.acquireErr != nil {
		return nil, e.acquireErr
	}
	h := newFakeHandle(url)
	e.lastHandle = h
	return h, nil
}

func (e *fakeEngine) Release(h browser.Handle) error {
	e.mu.Lock()
	e.releases++
	e.mu.Unlock()
	if fh, ok := h.(*fakeHandle); ok {
		fh.mu.Lock()
		fh.released++
		fh.mu.Unlock()
		fh.closeEvents()
	}
	return nil
}

func (e *fakeEngine) acquireCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acquires
}

func (e *fakeEngine) releaseCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.releases
}

func (e *fakeEngine) handle() *fakeHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastHandle
}

type fakeHandle struct {
	mu         sync.Mutex
	url        string
	applied    []browser.Command
	applyDelay time.Duration
	events     chan browser.Event
	closed     bool
	released   int
}

func newFakeHandle(url string) *fakeHandle {
	return &fakeHandle{url: url, events: make(chan browser.Event, 16)}
}

func (h *fakeHandle) Apply(_ context.Context, cmd browser.Command) error {
	h.mu.Lock()
	delay := h.applyDelay
	h.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.applied = append(h.applied, cmd)
	if cmd.Kind == browser.CommandNavigate {
		h.url = cmd.URL
	}
	return nil
}

func (h *fakeHandle) Capture(context.Context) (browser.Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return browser.Frame{
		Screenshot: []byte("fake-png"),
		URL:        h.url,
		Title:      "fake page",
		Scroll:     browser.ScrollInfo{PageWidth: 1280, PageHeight: 4000},
	}, nil
}

func (h *fakeHandle) Events() <-chan browser.Event { return h.events }

func (h *fakeHandle) setApplyDelay(d time.Duration) {
	h.mu.Lock()
	h.applyDelay = d
	h.mu.Unlock()
}

func (h *fakeHandle) releasedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

func (h *fakeHandle) setURL(url string) {
	h.mu.Lock()
	h.url = url
	h.mu.Unlock()
}

func (h *fakeHandle) appliedCommands() []browser.Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]browser.Command(nil), h.applied...)
}

func (h *fakeHandle) pushEvent(ev browser.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.events <- ev
}

func (h *fakeHandle) closeEvents() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.events)
}

func fastSessionConfig(url string) SessionConfig {
	return SessionConfig{
		StartURL:       url,
		SampleInterval: 10 * time.Millisecond,
		DrainTimeout:   10 * time.Millisecond,
		StartTimeout:   time.Second,
		ViewportWidth:  1280,
		ViewportHeight: 720,
	}
}
