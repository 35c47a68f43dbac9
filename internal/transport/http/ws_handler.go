package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/johna108/comic-sync/internal/browser"
	"github.com/johna108/comic-sync/internal/core"
	"github.com/johna108/comic-sync/internal/proto"
	"github.com/johna108/comic-sync/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to the room engine.
type WSHandler struct {
	registry        *core.RoomRegistry
	hub             *core.BroadcastHub
	maxMessageBytes int64
	log             *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(registry *core.RoomRegistry, hub *core.BroadcastHub, maxMessageBytes int64, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		registry:        registry,
		hub:             hub,
		maxMessageBytes: maxMessageBytes,
		log:             logger,
	}
}

// connState is the per-connection view of a participant. A connection is in
// at most one room at a time.
type connState struct {
	connID   string
	userName string
	roomCode string
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	st := &connState{connID: utils.NewID()}
	events := h.hub.Register(st.connID)
	defer func() {
		// A dropped connection counts as leaving the room.
		if st.roomCode != "" {
			h.registry.Leave(st.roomCode, st.connID)
		}
		h.hub.Deregister(st.connID)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, st)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, events)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", st.connID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, st *connState) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}
		if err := h.handleInbound(ctx, conn, st, inbound); err != nil {
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan *core.Event) error {
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handleInbound routes one client event. Malformed payloads are dropped with
// no broadcast; only unknown event types get an error reply.
func (h *WSHandler) handleInbound(ctx context.Context, conn *websocket.Conn, st *connState, inbound proto.Inbound) error {
	switch inbound.Type {
	case proto.InboundJoinRoom:
		return h.handleJoin(ctx, conn, st, inbound)

	case proto.InboundLeaveRoom:
		if st.roomCode == "" {
			return nil
		}
		h.registry.Leave(st.roomCode, st.connID)
		st.roomCode = ""
		return nil

	case proto.InboundChatMessage:
		d, err := decode[proto.ChatData](inbound.Data)
		if err != nil || d.Message == "" {
			h.dropMalformed(st, inbound.Type, err)
			return nil
		}
		if _, err := h.registry.PostChat(d.RoomCode, st.userName, d.Message); err != nil {
			h.log.Debug().Str("room", d.RoomCode).Msg("chat for unknown room dropped")
		}
		return nil

	case proto.InboundMouseMove:
		d, err := decode[proto.MouseMoveData](inbound.Data)
		if err != nil {
			h.dropMalformed(st, inbound.Type, err)
			return nil
		}
		name := d.UserName
		if name == "" {
			name = st.userName
		}
		h.hub.BroadcastExcept(d.RoomCode, st.connID, &core.Event{
			Kind: core.EventMousePosition,
			Room: d.RoomCode,
			User: name,
			X:    d.X,
			Y:    d.Y,
		})
		return nil

	case proto.InboundURLTypingStart, proto.InboundURLTypingStop:
		d, err := decode[proto.RoomData](inbound.Data)
		if err != nil {
			h.dropMalformed(st, inbound.Type, err)
			return nil
		}
		if room, ok := h.registry.Room(d.RoomCode); ok {
			room.Session().SetTypingSuppressed(inbound.Type == proto.InboundURLTypingStart)
		}
		return nil

	case proto.InboundScroll, proto.InboundScrollBy, proto.InboundClick,
		proto.InboundNavigate, proto.InboundBack, proto.InboundForward,
		proto.InboundReload, proto.InboundType, proto.InboundKey,
		proto.InboundKeyCombo:
		return h.handleBrowserCommand(st, inbound)

	default:
		h.log.Debug().Str("type", inbound.Type).Str("conn_id", st.connID).Msg("unknown inbound type")
		return wsjson.Write(ctx, conn, proto.Outbound{
			Type:  proto.OutboundError,
			Error: &proto.Error{Code: core.ErrCodeBadRequest, Msg: "unknown message type"},
		})
	}
}

func (h *WSHandler) handleJoin(ctx context.Context, conn *websocket.Conn, st *connState, inbound proto.Inbound) error {
	d, err := decode[proto.JoinRoomData](inbound.Data)
	if err != nil || d.RoomCode == "" || d.UserName == "" {
		h.dropMalformed(st, inbound.Type, err)
		return nil
	}
	if st.roomCode != "" {
		return wsjson.Write(ctx, conn, proto.Outbound{
			Type:  proto.OutboundError,
			Error: &proto.Error{Code: core.ErrCodeBadRequest, Msg: "already in a room"},
		})
	}

	member := core.Member{ConnID: st.connID, Name: d.UserName, JoinedAt: time.Now()}
	room, err := h.registry.JoinOrCreate(d.RoomCode, member, d.IsCreator, d.InitialURL)
	if err != nil {
		if errors.Is(err, core.ErrRoomNotFound) {
			return wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundRoomNotFound})
		}
		return err
	}

	st.roomCode = d.RoomCode
	st.userName = d.UserName
	h.hub.Subscribe(d.RoomCode, st.connID)

	// Replay room state to the joiner, then announce them to the rest.
	members := room.Members()
	h.hub.Unicast(st.connID, &core.Event{Kind: core.EventRoomUsers, Room: d.RoomCode, Members: members})
	h.hub.Unicast(st.connID, &core.Event{Kind: core.EventRoomURL, Room: d.RoomCode, URL: room.CurrentURL()})
	if history := room.ChatHistory(); len(history) > 0 {
		h.hub.Unicast(st.connID, &core.Event{Kind: core.EventChatHistory, Room: d.RoomCode, Messages: history})
	}
	if frame := room.Session().Snapshot(); frame != nil {
		h.hub.Unicast(st.connID, &core.Event{Kind: core.EventFrame, Room: d.RoomCode, Frame: frame})
	}
	h.hub.BroadcastExcept(d.RoomCode, st.connID, &core.Event{Kind: core.EventUserJoined, Room: d.RoomCode, User: d.UserName})
	h.hub.BroadcastExcept(d.RoomCode, st.connID, &core.Event{Kind: core.EventRoomUsers, Room: d.RoomCode, Members: members})

	h.log.Info().Str("room", d.RoomCode).Str("user", d.UserName).Bool("creator", d.IsCreator).Msg("joined room")
	return nil
}

func (h *WSHandler) handleBrowserCommand(st *connState, inbound proto.Inbound) error {
	roomCode, cmd, annotation, ok := h.commandFromInbound(st, inbound)
	if !ok {
		return nil
	}
	room, found := h.registry.Room(roomCode)
	if !found {
		return nil
	}
	room.Session().Submit(cmd)
	if annotation != "" {
		h.registry.AppendSystemMessage(roomCode, annotation)
	}
	return nil
}

// commandFromInbound maps a browser-* event to a Command plus an optional
// system chat annotation. ok=false means the event was dropped.
func (h *WSHandler) commandFromInbound(st *connState, inbound proto.Inbound) (roomCode string, cmd browser.Command, annotation string, ok bool) {
	switch inbound.Type {
	case proto.InboundScroll:
		d, err := decode[proto.ScrollData](inbound.Data)
		if err != nil {
			h.dropMalformed(st, inbound.Type, err)
			return "", browser.Command{}, "", false
		}
		return d.RoomCode, browser.Command{Kind: browser.CommandScroll, X: d.X, Y: d.Y}, "", true

	case proto.InboundScrollBy:
		d, err := decode[proto.ScrollByData](inbound.Data)
		if err != nil {
			h.dropMalformed(st, inbound.Type, err)
			return "", browser.Command{}, "", false
		}
		return d.RoomCode, browser.Command{Kind: browser.CommandScrollBy, DeltaX: d.DeltaX, DeltaY: d.DeltaY}, "", true

	case proto.InboundClick:
		d, err := decode[proto.ClickData](inbound.Data)
		if err != nil {
			h.dropMalformed(st, inbound.Type, err)
			return "", browser.Command{}, "", false
		}
		return d.RoomCode, browser.Command{Kind: browser.CommandClick, X: d.X, Y: d.Y}, "", true

	case proto.InboundNavigate:
		d, err := decode[proto.NavigateData](inbound.Data)
		if err != nil || d.URL == "" {
			h.dropMalformed(st, inbound.Type, err)
			return "", browser.Command{}, "", false
		}
		return d.RoomCode, browser.Command{Kind: browser.CommandNavigate, URL: d.URL},
			fmt.Sprintf("%s navigated to %s", st.userName, d.URL), true

	case proto.InboundBack:
		d, err := decode[proto.RoomData](inbound.Data)
		if err != nil {
			h.dropMalformed(st, inbound.Type, err)
			return "", browser.Command{}, "", false
		}
		return d.RoomCode, browser.Command{Kind: browser.CommandBack},
			fmt.Sprintf("%s navigated back", st.userName), true

	case proto.InboundForward:
		d, err := decode[proto.RoomData](inbound.Data)
		if err != nil {
			h.dropMalformed(st, inbound.Type, err)
			return "", browser.Command{}, "", false
		}
		return d.RoomCode, browser.Command{Kind: browser.CommandForward},
			fmt.Sprintf("%s navigated forward", st.userName), true

	case proto.InboundReload:
		d, err := decode[proto.RoomData](inbound.Data)
		if err != nil {
			h.dropMalformed(st, inbound.Type, err)
			return "", browser.Command{}, "", false
		}
		return d.RoomCode, browser.Command{Kind: browser.CommandReload},
			fmt.Sprintf("%s reloaded the page", st.userName), true

	case proto.InboundType:
		d, err := decode[proto.TypeData](inbound.Data)
		if err != nil || d.Text == "" {
			h.dropMalformed(st, inbound.Type, err)
			return "", browser.Command{}, "", false
		}
		return d.RoomCode, browser.Command{Kind: browser.CommandType, Text: d.Text}, "", true

	case proto.InboundKey:
		d, err := decode[proto.KeyData](inbound.Data)
		if err != nil || d.Key == "" {
			h.dropMalformed(st, inbound.Type, err)
			return "", browser.Command{}, "", false
		}
		// Legacy clients send keydown and keyup separately; only the
		// down edge is applied.
		if d.Type != "" && d.Type != "keydown" {
			return "", browser.Command{}, "", false
		}
		return d.RoomCode, browser.Command{Kind: browser.CommandKeyPress, Key: d.Key}, "", true

	case proto.InboundKeyCombo:
		d, err := decode[proto.KeyComboData](inbound.Data)
		if err != nil || len(d.Keys) == 0 {
			h.dropMalformed(st, inbound.Type, err)
			return "", browser.Command{}, "", false
		}
		return d.RoomCode, browser.Command{Kind: browser.CommandKeyCombo, Keys: d.Keys}, "", true
	}
	return "", browser.Command{}, "", false
}

func (h *WSHandler) dropMalformed(st *connState, eventType string, err error) {
	h.log.Debug().Err(err).Str("type", eventType).Str("conn_id", st.connID).Msg("malformed payload dropped")
}
