package http

import (
	"encoding/base64"
	"encoding/json"

	"github.com/johna108/comic-sync/internal/core"
	"github.com/johna108/comic-sync/internal/proto"
)

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

func outboundFromEvent(ev *core.Event) proto.Outbound {
	switch ev.Kind {
	case core.EventFrame:
		return proto.Outbound{
			Type: proto.OutboundScreenshotUpdate,
			Data: proto.ScreenshotUpdate{
				Screenshot:     base64.StdEncoding.EncodeToString(ev.Frame.Screenshot),
				ScrollPosition: ev.Frame.Scroll,
				Timestamp:      ev.Frame.CapturedAt.UnixMilli(),
			},
		}
	case core.EventPageInfo:
		return proto.Outbound{
			Type: proto.OutboundPageInfoUpdate,
			Data: proto.PageInfoUpdate{
				URL:        ev.Frame.URL,
				Title:      ev.Frame.Title,
				PageWidth:  ev.Frame.Scroll.PageWidth,
				PageHeight: ev.Frame.Scroll.PageHeight,
			},
		}
	case core.EventURLChanged:
		return proto.Outbound{Type: proto.OutboundURLChanged, Data: proto.URLUpdate{URL: ev.URL}}
	case core.EventRoomURL:
		return proto.Outbound{Type: proto.OutboundURLUpdate, Data: proto.URLUpdate{URL: ev.URL}}
	case core.EventLoadingState:
		return proto.Outbound{Type: proto.OutboundLoadingState, Data: proto.LoadingState{Loading: ev.Loading}}
	case core.EventBrowserReady:
		return proto.Outbound{Type: proto.OutboundBrowserReady, Data: proto.BrowserReady{Success: true}}
	case core.EventBrowserError:
		body := proto.BrowserError{Error: "browser session failed"}
		if ev.Error != nil {
			body.Code = ev.Error.Code
			body.Error = ev.Error.Message
		}
		return proto.Outbound{Type: proto.OutboundBrowserError, Data: body}
	case core.EventDialog:
		return proto.Outbound{
			Type: proto.OutboundBrowserDialog,
			Data: proto.BrowserDialog{DialogType: ev.DialogType, Message: ev.Text},
		}
	case core.EventDownload:
		return proto.Outbound{
			Type: proto.OutboundDownloadStarted,
			Data: proto.DownloadStarted{URL: ev.URL, Filename: ev.Filename},
		}
	case core.EventRoomUsers:
		users := make([]proto.RoomUser, 0, len(ev.Members))
		for _, m := range ev.Members {
			users = append(users, proto.RoomUser{ID: m.ConnID, UserName: m.Name})
		}
		return proto.Outbound{Type: proto.OutboundRoomUsers, Data: users}
	case core.EventUserJoined:
		return proto.Outbound{Type: proto.OutboundUserJoined, Data: proto.UserEvent{UserName: ev.User}}
	case core.EventUserLeft:
		return proto.Outbound{Type: proto.OutboundUserLeft, Data: proto.UserEvent{UserName: ev.User}}
	case core.EventChatMessage:
		return proto.Outbound{Type: proto.OutboundChatMessage, Data: chatMessageFromCore(*ev.Message)}
	case core.EventChatHistory:
		messages := make([]proto.ChatMessage, 0, len(ev.Messages))
		for _, msg := range ev.Messages {
			messages = append(messages, chatMessageFromCore(msg))
		}
		return proto.Outbound{Type: proto.OutboundChatHistory, Data: proto.ChatHistory{Messages: messages}}
	case core.EventMousePosition:
		return proto.Outbound{
			Type: proto.OutboundMousePosition,
			Data: proto.MousePosition{X: ev.X, Y: ev.Y, UserName: ev.User},
		}
	default:
		return proto.Outbound{
			Type:  proto.OutboundError,
			Error: &proto.Error{Code: "unknown_event", Msg: "unknown event kind"},
		}
	}
}

func chatMessageFromCore(msg core.ChatMessage) proto.ChatMessage {
	return proto.ChatMessage{
		ID:        msg.ID,
		UserName:  msg.Author,
		Message:   msg.Body,
		Timestamp: msg.SentAt.UnixMilli(),
		Type:      string(msg.Kind),
	}
}
