package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatr/internal/core"
	"github.com/vovakirdan/chatr/internal/proto"
)

const inboundPerMinute = 120

// WSHandler upgrades HTTP connections, mirrors the display stream to them and
// feeds their input to the hub.
type WSHandler struct {
	hub    *core.Hub
	feed   *core.Feed
	buffer int
	log    *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, feed *core.Feed, buffer int, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, feed: feed, buffer: buffer, log: logger}
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

	sub := h.feed.Subscribe(h.buffer)
	defer sub.Close()
	log := h.log.With().Str("subscriber", sub.ID).Logger()
	log.Debug().Msg("ws subscriber attached")

	limiter := newRateLimiter(inboundPerMinute)
	stop := make(chan struct{})
	defer close(stop)
	limiter.startReset(stop)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, limiter, &log)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, sub, &log)
	}()

	err = <-errCh
	cancel()
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
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
			log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, limiter *rateLimiter, log *zerolog.Logger) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			log.Debug().Err(err).Msg("read ws inbound")
			return err
		}

		text, protoErr, err := inboundToText(inbound)
		if err != nil {
			log.Warn().Err(err).Msg("failed to map inbound")
			return err
		}
		if protoErr == nil && !limiter.allow() {
			protoErr = &proto.Error{Code: "rate_limited", Msg: "too many messages"}
		}
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); writeErr != nil {
				return writeErr
			}
			continue
		}
		h.hub.SendMessage(text)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sub *core.Subscription, log *zerolog.Logger) error {
	for {
		select {
		case event, ok := <-sub.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				log.Error().Err(err).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
