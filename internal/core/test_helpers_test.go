package core

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/chatr/internal/settings"
	"github.com/vovakirdan/chatr/internal/transport/mem"
	"github.com/vovakirdan/chatr/internal/transport/multicast"
)

const (
	testGroup = "239.255.10.11"
	testPort  = 1314
)

func memDialer(bus *mem.Bus) Dialer {
	return func(localIP, group net.IP, port int) (Transport, error) {
		return bus.Dial(localIP, group, port)
	}
}

func testSettings(channel, name string) settings.ChannelSettings {
	return settings.New(channel, name, "0.0.0.0", testGroup, testPort, "")
}

// newPeer connects a channel named "test" on the bus and subscribes to its display events.
func newPeer(t *testing.T, bus *mem.Bus, name string) (*Channel, *Subscription) {
	t.Helper()
	return newPeerWith(t, bus, testSettings("test", name), false)
}

func newPeerWith(t *testing.T, bus *mem.Bus, s settings.ChannelSettings, unique bool) (*Channel, *Subscription) {
	t.Helper()

	feed := NewFeed(nil)
	sub := feed.Subscribe(512)
	ch := NewChannel(s, ChannelOptions{Dial: memDialer(bus), Sink: feed, UniqueRoster: unique})
	require.NoError(t, ch.Init())
	t.Cleanup(ch.ShutDown)
	return ch, sub
}

// rawPeer is a bare transport used to inject hand-written wire lines.
func rawPeer(t *testing.T, bus *mem.Bus, port int) (*mem.Transport, <-chan string) {
	t.Helper()

	tr, err := bus.Dial(nil, net.ParseIP(testGroup), port)
	require.NoError(t, err)
	got := make(chan string, 512)
	require.NoError(t, tr.StartReceiving(func(m multicast.Message) { got <- m.Text }))
	t.Cleanup(tr.StopReceiving)
	return tr, got
}

func mustEvent(t *testing.T, sub *Subscription, kind EventKind) *Event {
	t.Helper()
	return mustEventMatching(t, sub, func(ev *Event) bool { return ev.Kind == kind })
}

func mustEventText(t *testing.T, sub *Subscription, substr string) *Event {
	t.Helper()
	return mustEventMatching(t, sub, func(ev *Event) bool { return strings.Contains(ev.Text, substr) })
}

func mustEventMatching(t *testing.T, sub *Subscription, match func(*Event) bool) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub.Events:
			if ev != nil && match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event not received")
			return nil
		}
	}
}

// collectUntil returns every event up to and including the first one containing marker.
func collectUntil(t *testing.T, sub *Subscription, marker string) []*Event {
	t.Helper()

	var out []*Event
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub.Events:
			out = append(out, ev)
			if strings.Contains(ev.Text, marker) {
				return out
			}
		case <-deadline:
			t.Fatalf("marker %q not received", marker)
			return nil
		}
	}
}

// drain empties whatever is buffered right now.
func drain(sub *Subscription) []*Event {
	var out []*Event
	for {
		select {
		case ev := <-sub.Events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func countKind(events []*Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func countLines(lines []string, line string) int {
	n := 0
	for _, l := range lines {
		if l == line {
			n++
		}
	}
	return n
}

func waitForLine(t *testing.T, got <-chan string, line string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case l := <-got:
			if l == line {
				return
			}
		case <-deadline:
			t.Fatalf("line %q not seen on the wire", line)
		}
	}
}
