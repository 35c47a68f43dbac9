package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/johna108/comic-sync/internal/config"
	"github.com/johna108/comic-sync/internal/core"
)

// NewServer builds the HTTP server: health and room-info API plus the
// websocket upgrade endpoint.
func NewServer(registry *core.RoomRegistry, hub *core.BroadcastHub, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := NewAPIHandlers(registry, logger)
	router.GET("/health", api.Health)
	router.GET("/api/room/:roomCode", api.RoomInfo)
	router.GET("/ws", gin.WrapH(NewWSHandler(registry, hub, cfg.MaxMessageBytes, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
