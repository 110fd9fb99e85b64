package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-live/internal/config"
	"github.com/vovakirdan/wirechat-live/internal/core"
	"github.com/vovakirdan/wirechat-live/internal/proto"
	"github.com/vovakirdan/wirechat-live/internal/relay"
)

// RelayStatus reports the state of the cross-process relay. It is nil in
// local mode.
type RelayStatus interface {
	State() relay.State
}

// Server is the HTTP server plus the live connections it has hijacked.
type Server struct {
	*stdhttp.Server
	ws *WSHandler
}

// WaitConnections blocks until every live connection handler has returned.
// Shutdown does not wait for them.
func (s *Server) WaitConnections() {
	s.ws.active.Wait()
}

// NewServer builds an HTTP server with the health, room and live routes.
func NewServer(registry *core.Registry, rs RelayStatus, cfg *config.Config, logger *zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	router.GET("/api/health", healthHandler(registry, rs, cfg.Mode))

	rooms := NewRoomHandlers(registry, logger)
	api := router.Group("/api")
	{
		api.GET("/rooms", rooms.ListRooms)
		api.GET("/rooms/:room/messages", rooms.History)
		api.POST("/rooms/:room/messages", rooms.PostMessage)
	}

	// Live connections bypass gin: its response writer refuses to hijack once
	// the upgrade status has been written.
	ws := NewWSHandler(registry, cfg, logger)
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws/", ws)
	mux.Handle("/", router)

	return &Server{
		Server: &stdhttp.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		ws: ws,
	}
}

func healthHandler(registry *core.Registry, rs RelayStatus, mode string) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := proto.HealthResponse{
			Status: "ok",
			Mode:   mode,
			Rooms:  registry.Len(),
		}
		if rs != nil {
			resp.Relay = rs.State().String()
		}
		c.JSON(stdhttp.StatusOK, resp)
	}
}
