package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/johna108/comic-sync/internal/core"
)

// APIHandlers provides the REST endpoints next to the websocket transport.
type APIHandlers struct {
	registry *core.RoomRegistry
	log      *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(registry *core.RoomRegistry, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		registry: registry,
		log:      logger,
	}
}

// HealthResponse is the health endpoint body.
type HealthResponse struct {
	Status         string `json:"status"`
	Rooms          int    `json:"rooms"`
	ActiveBrowsers int    `json:"activeBrowsers"`
	Timestamp      string `json:"timestamp"`
}

// RoomInfoResponse is the room lookup body.
type RoomInfoResponse struct {
	RoomCode   string `json:"roomCode"`
	UserCount  int    `json:"userCount"`
	ContentURL string `json:"contentUrl"`
	Exists     bool   `json:"exists"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Exists bool   `json:"exists"`
}

// Health reports room and browser counts.
// GET /health
func (h *APIHandlers) Health(c *gin.Context) {
	rooms, active := h.registry.Stats()
	c.JSON(http.StatusOK, HealthResponse{
		Status:         "ok",
		Rooms:          rooms,
		ActiveBrowsers: active,
		Timestamp:      time.Now().Format(time.RFC3339),
	})
}

// RoomInfo reports whether a room exists and who is in it.
// GET /api/room/:roomCode
func (h *APIHandlers) RoomInfo(c *gin.Context) {
	code := c.Param("roomCode")
	info, ok := h.registry.Info(code)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Room not found", Exists: false})
		return
	}
	c.JSON(http.StatusOK, RoomInfoResponse{
		RoomCode:   info.RoomCode,
		UserCount:  info.UserCount,
		ContentURL: info.ContentURL,
		Exists:     true,
	})
}
