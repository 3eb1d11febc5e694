package http

import (
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatr/internal/config"
	"github.com/vovakirdan/chatr/internal/core"
)

const readHeaderTimeout = 5 * time.Second

// NewServer builds the local control API: channel inspection, message submission
// and a websocket mirror of the display stream.
func NewServer(hub *core.Hub, feed *core.Feed, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	channels := NewChannelHandlers(hub, logger)
	api := router.Group("/api")
	{
		api.GET("/channels", channels.ListChannels)
		api.GET("/channels/:name", channels.GetChannel)
		api.GET("/channels/:name/users", channels.ListUsers)
		api.POST("/messages", channels.PostMessage)
	}

	// websocket upgrades hijack the connection, which gin refuses once the
	// 101 status is written, so /ws is served beside the router.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, feed, cfg.EventBuffer, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
