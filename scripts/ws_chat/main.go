// Command ws_chat is a remote console for a running chatr: it prints the display
// stream and sends typed lines through the control API websocket.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	applog "github.com/vovakirdan/chatr/internal/log"
	"github.com/vovakirdan/chatr/internal/proto"
)

func main() {
	logger := applog.New("info", os.Stderr)
	if err := run(logger); err != nil {
		logger.Error().Err(err).Msg("ws_chat failed")
		os.Exit(1)
	}
}

type displayOutbound struct {
	Type  string             `json:"type"`
	Event string             `json:"event"`
	Data  proto.DisplayEvent `json:"data"`
	Error *proto.Error       `json:"error"`
}

func run(logger *zerolog.Logger) error {
	addr := pflag.String("addr", "ws://localhost:8080/ws", "control API websocket address")
	pflag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	fmt.Printf("Connected to %s\n", *addr)
	fmt.Println("Lines are handled exactly like the chatr console. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn, logger)
	}()

	writeLoop(ctx, conn, logger)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn, logger *zerolog.Logger) {
	for {
		var outbound displayOutbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			logger.Warn().Err(err).Msg("read error")
			return
		}

		switch {
		case outbound.Type == proto.OutboundTypeError && outbound.Error != nil:
			fmt.Printf("! %s (%s)\n", outbound.Error.Msg, outbound.Error.Code)
		case outbound.Event == proto.EventDisplay:
			ev := outbound.Data
			prefix := ""
			if ev.Channel != "" {
				prefix = "[" + ev.Channel + "] "
			}
			if ev.Notify {
				fmt.Print("\a")
			}
			fmt.Println(prefix + ev.Text)
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, logger *zerolog.Logger) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			payload, err := json.Marshal(proto.MsgData{Text: text})
			if err != nil {
				logger.Error().Err(err).Msg("marshal msg")
				return
			}
			if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeMsg, Data: payload}); err != nil {
				logger.Error().Err(err).Msg("send error")
				return
			}
		}
	}
}
