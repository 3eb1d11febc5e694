package console

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/chatr/internal/core"
	"github.com/vovakirdan/chatr/internal/settings"
	"github.com/vovakirdan/chatr/internal/transport/mem"
)

const testGroup = "239.255.10.11"

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestConsole(t *testing.T, input string) (*Console, *core.Hub, *mem.Bus, *syncBuffer) {
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

	out := &syncBuffer{}
	c := New(hub, feed, strings.NewReader(input), out, 64, nil)
	t.Cleanup(c.Close)
	return c, hub, bus, out
}

func TestRunRoutesLinesUntilQuit(t *testing.T) {
	input := "/add -cn general\n\n   \nhello everyone\n/quit\nnever sent\n"
	c, hub, bus, out := newTestConsole(t, input)

	require.NoError(t, c.Run(context.Background()))

	sent := bus.Sent(testGroup, settings.DefaultPort)
	assert.Contains(t, sent, "alice>hello everyone")
	assert.NotContains(t, sent, "alice>never sent")
	assert.Equal(t, "alice>/logoff", sent[len(sent)-1])

	ch, ok := hub.Channel("general")
	require.True(t, ok)
	assert.False(t, ch.IsConnected())
	assert.Contains(t, out.String(), "Joined Multicast Group:")
}

func TestRunQuitWithNamesKeepsSession(t *testing.T) {
	input := "/add -cn general\n/quit general\n/list all\n"
	c, _, _, out := newTestConsole(t, input)

	require.NoError(t, c.Run(context.Background()))
	assert.Contains(t, out.String(), "Channels are:\ngeneral (active)")
}

func TestRunEndsOnEOF(t *testing.T) {
	c, _, _, _ := newTestConsole(t, "")
	assert.NoError(t, c.Run(context.Background()))
}

func TestRunStopsOnContext(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	bus := mem.NewBus()
	feed := core.NewFeed(nil)
	hub := core.NewHub(core.HubOptions{Sink: feed, Dial: func(l, g net.IP, p int) (core.Transport, error) {
		return bus.Dial(l, g, p)
	}})
	c := New(hub, feed, r, io.Discard, 8, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Run(ctx), context.DeadlineExceeded)
	assert.Zero(t, feed.Subscribers())
}

func TestBurstLargerThanBufferIsRendered(t *testing.T) {
	bus := mem.NewBus()
	feed := core.NewFeed(nil)
	hub := core.NewHub(core.HubOptions{Sink: feed, Dial: func(l, g net.IP, p int) (core.Transport, error) {
		return bus.Dial(l, g, p)
	}})
	out := &syncBuffer{}
	c := New(hub, feed, strings.NewReader(""), out, 4, nil)

	for i := 0; i < 200; i++ {
		feed.Publish(&core.Event{Kind: core.EventChat, Text: "line " + strconv.Itoa(i)})
	}
	require.NoError(t, c.Run(context.Background()))

	text := out.String()
	for i := 0; i < 200; i++ {
		require.Contains(t, text, "line "+strconv.Itoa(i)+"\n")
	}
	assert.Zero(t, feed.Subscribers())
}

func TestCloseWithoutRun(t *testing.T) {
	c, _, _, _ := newTestConsole(t, "")
	c.Close()
	c.Close()
}

func TestClearAndErrors(t *testing.T) {
	c, _, _, out := newTestConsole(t, "/clear\nhello\n")

	require.NoError(t, c.Run(context.Background()))
	assert.True(t, strings.HasPrefix(out.String(), clearScreen))
	assert.Contains(t, out.String(), "No channel selected for sending")
}

func TestFormatRingsBellOnNotify(t *testing.T) {
	c, _, _, _ := newTestConsole(t, "")

	line := c.format(&core.Event{Kind: core.EventChat, Text: "bob: hi", Notify: true})
	assert.Equal(t, "\abob: hi\n", line)

	line = c.format(&core.Event{Kind: core.EventPrivate, Text: "[PM]bob: psst", Color: core.ColorPrivate})
	assert.Contains(t, line, "[PM]bob: psst")
	assert.False(t, strings.HasPrefix(line, bell))
}

func TestOnboard(t *testing.T) {
	c, _, _, out := newTestConsole(t, "\nbig al\n2\n")
	addrs := func() ([]net.IP, error) {
		return []net.IP{net.ParseIP("10.0.0.2").To4(), net.ParseIP("192.168.1.7").To4()}, nil
	}

	snap, err := c.Onboard(context.Background(), addrs)
	require.NoError(t, err)

	assert.Equal(t, settings.Globals{DisplayName: "big_al", ConnectionIP: "192.168.1.7"}, snap.Globals)
	require.Len(t, snap.Channels, 1)
	assert.Equal(t, FirstChannel, snap.Channels[0].ChannelName)
	assert.Equal(t, settings.DefaultMulticastIP, snap.Channels[0].MulticastIP)
	assert.Contains(t, out.String(), "Enter a display name")
}

func TestOnboardDefaultsToAnyAddress(t *testing.T) {
	c, _, _, _ := newTestConsole(t, "zed\nnine\n")
	addrs := func() ([]net.IP, error) { return []net.IP{net.ParseIP("10.0.0.2").To4()}, nil }

	snap, err := c.Onboard(context.Background(), addrs)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", snap.Globals.ConnectionIP)
}

func TestOnboardNeedsInput(t *testing.T) {
	c, _, _, _ := newTestConsole(t, "")
	_, err := c.Onboard(context.Background(), nil)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
