package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatr/internal/core"
	"github.com/vovakirdan/chatr/internal/proto"
)

// ChannelHandlers exposes the hub over REST.
type ChannelHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewChannelHandlers creates a new channel handlers instance.
func NewChannelHandlers(hub *core.Hub, logger *zerolog.Logger) *ChannelHandlers {
	return &ChannelHandlers{
		hub: hub,
		log: logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SendMessageRequest is one line of input, console syntax included.
type SendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// UsersResponse lists the roster of one channel.
type UsersResponse struct {
	Channel string   `json:"channel"`
	Users   []string `json:"users"`
}

// ListChannels returns every channel in the order they were added.
// GET /api/channels
func (h *ChannelHandlers) ListChannels(c *gin.Context) {
	active := h.hub.Active()
	channels := h.hub.Channels()

	out := make([]proto.ChannelSummary, 0, len(channels))
	for _, ch := range channels {
		out = append(out, summaryOf(ch, active))
	}
	c.JSON(http.StatusOK, out)
}

// GetChannel returns one channel.
// GET /api/channels/:name
func (h *ChannelHandlers) GetChannel(c *gin.Context) {
	ch, ok := h.hub.Channel(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
		return
	}
	c.JSON(http.StatusOK, summaryOf(ch, h.hub.Active()))
}

// ListUsers returns the roster of one channel.
// GET /api/channels/:name/users
func (h *ChannelHandlers) ListUsers(c *gin.Context) {
	ch, ok := h.hub.Channel(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
		return
	}
	users := ch.Users()
	if users == nil {
		users = []string{}
	}
	c.JSON(http.StatusOK, UsersResponse{Channel: ch.Name(), Users: users})
}

// PostMessage routes a line through the hub. The outcome shows up on the display
// stream, so the request is only acknowledged.
// POST /api/messages
func (h *ChannelHandlers) PostMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	h.hub.SendMessage(req.Text)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
