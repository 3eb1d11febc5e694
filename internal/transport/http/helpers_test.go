package http

import (
	"context"
	"net"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatr/internal/config"
	"github.com/vovakirdan/chatr/internal/core"
	"github.com/vovakirdan/chatr/internal/settings"
	"github.com/vovakirdan/chatr/internal/transport/mem"
)

const (
	testGroup = "239.255.10.11"
	testPort  = 1314
)

type testEnv struct {
	bus  *mem.Bus
	hub  *core.Hub
	feed *core.Feed
	ts   *httptest.Server
}

// startTestServer serves the control API for a hub running over an in-memory bus.
func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	bus := mem.NewBus()
	feed := core.NewFeed(nil)
	hub := core.NewHub(core.HubOptions{
		Dial: func(localIP, group net.IP, port int) (core.Transport, error) {
			return bus.Dial(localIP, group, port)
		},
		Sink:    feed,
		Globals: settings.Globals{DisplayName: "alice", ConnectionIP: "0.0.0.0"},
	})
	t.Cleanup(func() { _ = hub.ShutDown(context.Background()) })

	disabledLogger := zerolog.Nop()
	cfg := config.Default()
	cfg.HTTPAddr = ":0"

	server := NewServer(hub, feed, cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{bus: bus, hub: hub, feed: feed, ts: ts}
}

func (e *testEnv) addChannel(t *testing.T, name string, port int, connect bool) *core.Channel {
	t.Helper()
	ch, err := e.hub.AddChannel(settings.New(name, "", "", testGroup, port, ""), connect)
	if err != nil {
		t.Fatalf("add channel %s: %v", name, err)
	}
	return ch
}
