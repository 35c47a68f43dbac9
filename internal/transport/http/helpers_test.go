package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/johna108/comic-sync/internal/browser"
	"github.com/johna108/comic-sync/internal/config"
	"github.com/johna108/comic-sync/internal/core"
	"github.com/johna108/comic-sync/internal/proto"
)

// stubEngine keeps sessions in memory so transport tests never need a real
// browser process.
type stubEngine struct {
	mu       sync.Mutex
	acquires int
	releases int
}

func (e *stubEngine) Acquire(_ context.Context, url string, _ browser.Options) (browser.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.acquires++
	return &stubHandle{url: url, events: make(chan browser.Event)}, nil
}

func (e *stubEngine) Release(h browser.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.releases++
	if sh, ok := h.(*stubHandle); ok {
		sh.close()
	}
	return nil
}

type stubHandle struct {
	mu     sync.Mutex
	url    string
	closed bool
	events chan browser.Event
}

func (h *stubHandle) Apply(_ context.Context, cmd browser.Command) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cmd.Kind == browser.CommandNavigate {
		h.url = cmd.URL
	}
	return nil
}

func (h *stubHandle) Capture(context.Context) (browser.Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return browser.Frame{
		Screenshot: []byte("stub-png"),
		URL:        h.url,
		Title:      "stub page",
	}, nil
}

func (h *stubHandle) Events() <-chan browser.Event { return h.events }

func (h *stubHandle) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.events)
	}
}

type testServer struct {
	http     *httptest.Server
	registry *core.RoomRegistry
	engine   *stubEngine
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.DefaultURL = "https://default.example"
	cfg.SampleInterval = 10 * time.Millisecond
	cfg.DrainTimeout = 10 * time.Millisecond

	logger := zerolog.Nop()
	engine := &stubEngine{}
	hub := core.NewBroadcastHub()
	registry := core.NewRoomRegistry(engine, hub, core.RegistryConfig{
		DefaultURL: cfg.DefaultURL,
		ChatLimit:  cfg.ChatHistoryLimit,
		Session: core.SessionConfig{
			SampleInterval: cfg.SampleInterval,
			DrainTimeout:   cfg.DrainTimeout,
			StartTimeout:   cfg.SessionStartTimeout,
			ViewportWidth:  cfg.ViewportWidth,
			ViewportHeight: cfg.ViewportHeight,
		},
	}, &logger)

	srv := NewServer(registry, hub, &cfg, &logger)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		registry.Close()
	})
	return &testServer{http: ts, registry: registry, engine: engine}
}

func (s *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.http.URL, "http") + "/ws"
}

type client struct {
	conn *websocket.Conn
	ctx  context.Context
}

func dial(t *testing.T, s *testServer) *client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	conn, _, err := websocket.Dial(ctx, s.wsURL(), nil)
	if err != nil {
		cancel()
		t.Fatalf("ws dial failed: %v", err)
	}
	t.Cleanup(func() {
		conn.Close(websocket.StatusNormalClosure, "test done")
		cancel()
	})
	return &client{conn: conn, ctx: ctx}
}

func (c *client) send(t *testing.T, eventType string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", eventType, err)
	}
	if err := wsjson.Write(c.ctx, c.conn, proto.Inbound{Type: eventType, Data: raw}); err != nil {
		t.Fatalf("write %s failed: %v", eventType, err)
	}
}

// envelope mirrors proto.Outbound on the receiving side.
type envelope struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// readUntil skims the stream until a message of the wanted type arrives,
// discarding interleaved frame and page-info broadcasts.
func (c *client) readUntil(t *testing.T, eventType string) envelope {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithDeadline(c.ctx, deadline)
		var env envelope
		err := wsjson.Read(ctx, c.conn, &env)
		cancel()
		if err != nil {
			t.Fatalf("waiting for %q: %v", eventType, err)
		}
		if env.Type == eventType {
			return env
		}
	}
	t.Fatalf("message %q never arrived", eventType)
	return envelope{}
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode %s data: %v", env.Type, err)
	}
	return v
}

func join(t *testing.T, c *client, roomCode, userName string, isCreator bool, initialURL string) {
	t.Helper()
	c.send(t, proto.InboundJoinRoom, proto.JoinRoomData{
		RoomCode:   roomCode,
		UserName:   userName,
		IsCreator:  isCreator,
		InitialURL: initialURL,
	})
}

func waitForCond(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
