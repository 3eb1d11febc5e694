// Command ws_smoke checks a running chatr control API end to end: health, channel
// listing, and a message that must come back on the display stream.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/pflag"

	applog "github.com/vovakirdan/chatr/internal/log"
	"github.com/vovakirdan/chatr/internal/proto"
)

func main() {
	logger := applog.New("info", os.Stderr)
	if err := run(); err != nil {
		logger.Error().Err(err).Msg("smoke test failed")
		os.Exit(1)
	}
	logger.Info().Msg("smoke test passed")
}

func run() error {
	base := pflag.String("base", "http://localhost:8080", "control API base URL")
	text := pflag.String("text", "hello from smoke test", "message text to send on the active channel")
	timeout := pflag.Duration("timeout", 5*time.Second, "total timeout for the run")
	pflag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	client := &http.Client{Timeout: *timeout}

	if err := expectOK(ctx, client, *base+"/health"); err != nil {
		return err
	}

	var channels []proto.ChannelSummary
	if err := getJSON(ctx, client, *base+"/api/channels", &channels); err != nil {
		return err
	}
	fmt.Printf("Channels: %d\n", len(channels))
	for _, ch := range channels {
		fmt.Printf("  %s %s:%d connected=%t active=%t\n", ch.Name, ch.MulticastIP, ch.Port, ch.Connected, ch.Active)
	}

	wsURL := strings.Replace(*base, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	payload, err := json.Marshal(proto.MsgData{Text: *text})
	if err != nil {
		return fmt.Errorf("marshal msg: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeMsg, Data: payload}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	for {
		var outbound struct {
			Type  string             `json:"type"`
			Event string             `json:"event"`
			Data  proto.DisplayEvent `json:"data"`
			Error *proto.Error       `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if outbound.Error != nil {
			return fmt.Errorf("protocol error %s: %s", outbound.Error.Code, outbound.Error.Msg)
		}

		ev := outbound.Data
		fmt.Printf("Display: channel=%s kind=%s text=%q\n", ev.Channel, ev.Kind, ev.Text)
		switch {
		case ev.Kind == "error":
			return fmt.Errorf("message rejected: %s", ev.Text)
		case strings.HasSuffix(ev.Text, ": "+*text):
			return nil
		}
	}
}

func expectOK(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: status %d: %s", url, resp.StatusCode, body)
	}
	return nil
}

func getJSON(ctx context.Context, client *http.Client, url string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
