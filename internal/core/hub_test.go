package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/chatr/internal/settings"
	"github.com/vovakirdan/chatr/internal/store"
	"github.com/vovakirdan/chatr/internal/transport/mem"
)

type fakeSaver struct {
	mu    sync.Mutex
	saved []store.Snapshot
	err   error
}

func (f *fakeSaver) Save(_ context.Context, snap store.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, snap)
	return f.err
}

func newTestHub(t *testing.T, bus *mem.Bus, saver store.Saver) (*Hub, *Subscription) {
	t.Helper()

	feed := NewFeed(nil)
	sub := feed.Subscribe(512)
	h := NewHub(HubOptions{
		Dial:    memDialer(bus),
		Sink:    feed,
		Globals: settings.Globals{DisplayName: "alice", ConnectionIP: "0.0.0.0"},
		Store:   saver,
	})
	t.Cleanup(func() { _ = h.ShutDown(context.Background()) })
	return h, sub
}

func names(chs []*Channel) []string {
	out := make([]string, 0, len(chs))
	for _, ch := range chs {
		out = append(out, ch.Name())
	}
	return out
}

func TestHubAddAppliesGlobalsAndActivatesFirst(t *testing.T) {
	bus := mem.NewBus()
	h, _ := newTestHub(t, bus, nil)

	h.SendMessage("/add -cn general")
	h.SendMessage("/add -cn random -dn al -p 1400")

	require.Equal(t, []string{"general", "random"}, names(h.Channels()))
	general, ok := h.Channel("general")
	require.True(t, ok)
	assert.Equal(t, "alice", general.DisplayName())
	assert.Equal(t, "0.0.0.0", general.Settings().ConnectionIP)
	assert.True(t, general.IsConnected())

	random, ok := h.Channel("random")
	require.True(t, ok)
	assert.Equal(t, "al", random.DisplayName())
	assert.Equal(t, []string{"al>/logon"}, bus.Sent(testGroup, 1400))

	assert.Equal(t, "general", h.Active().Name())
}

func TestHubAddRejectsDuplicateAndMissingName(t *testing.T) {
	bus := mem.NewBus()
	h, sub := newTestHub(t, bus, nil)

	_, err := h.AddChannel(testSettings("general", "alice"), false)
	require.NoError(t, err)

	_, err = h.AddChannel(testSettings("general", "bob"), false)
	assert.ErrorIs(t, err, ErrChannelExists)
	_, err = h.AddChannel(testSettings("  ", "bob"), false)
	assert.ErrorIs(t, err, ErrBadRequest)

	drain(sub)
	h.SendMessage("/add -cn general")
	ev := mustEvent(t, sub, EventError)
	assert.Equal(t, ErrCodeChannelExists, ev.Error.Code)

	h.SendMessage("/add")
	ev = mustEvent(t, sub, EventError)
	assert.Equal(t, ErrCodeBadRequest, ev.Error.Code)

	assert.Len(t, h.Channels(), 1)
}

func TestHubSwitchUnknownChannelKeepsActive(t *testing.T) {
	bus := mem.NewBus()
	h, sub := newTestHub(t, bus, nil)
	_, err := h.AddChannel(testSettings("general", "alice"), true)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	drain(sub)

	h.SendMessage("/channel nowhere")

	events := drain(sub)
	require.Equal(t, 1, countKind(events, EventError))
	assert.Equal(t, "No channel with name nowhere could be found.", events[0].Text)
	assert.Equal(t, "general", h.Active().Name())
}

func TestHubSwitchChannelRoutesPlainText(t *testing.T) {
	bus := mem.NewBus()
	h, sub := newTestHub(t, bus, nil)
	_, err := h.AddChannel(testSettings("general", "alice"), true)
	require.NoError(t, err)
	_, err = h.AddChannel(testSettings("random", "alice").WithPort(1400), true)
	require.NoError(t, err)

	h.SendMessage("/channel random")
	mustEventText(t, sub, "Switched to channel random")
	h.SendMessage("hi random")

	assert.Contains(t, bus.Sent(testGroup, 1400), "alice>hi random")
	assert.NotContains(t, bus.Sent(testGroup, testPort), "alice>hi random")

	h.SendMessage("/channel")
	mustEventText(t, sub, "Active channel is random")
}

func TestHubForwardWithoutActiveChannel(t *testing.T) {
	bus := mem.NewBus()
	h, sub := newTestHub(t, bus, nil)

	h.SendMessage("hello?")
	ev := mustEvent(t, sub, EventError)
	assert.Equal(t, "No channel selected for sending", ev.Text)
	assert.Equal(t, ErrCodeNoActiveChannel, ev.Error.Code)

	_, err := h.AddChannel(testSettings("general", "alice"), false)
	require.NoError(t, err)
	h.SendMessage("still nobody?")
	ev = mustEvent(t, sub, EventError)
	assert.Equal(t, "No channel selected for sending", ev.Text)
}

func TestHubForwardsChannelCommands(t *testing.T) {
	bus := mem.NewBus()
	h, sub := newTestHub(t, bus, nil)
	_, err := h.AddChannel(testSettings("general", "alice"), true)
	require.NoError(t, err)

	h.SendMessage("/users")
	ev := mustEventText(t, sub, "Active users are:")
	assert.Equal(t, "general", ev.Channel)

	h.SendMessage("/port 1500")
	assert.Equal(t, 1500, h.Active().Settings().Port)
}

func TestHubQuitAndConnect(t *testing.T) {
	bus := mem.NewBus()
	h, sub := newTestHub(t, bus, nil)
	general, err := h.AddChannel(testSettings("general", "alice"), true)
	require.NoError(t, err)
	random, err := h.AddChannel(testSettings("random", "alice").WithPort(1400), true)
	require.NoError(t, err)

	h.SendMessage("/quit random")
	assert.True(t, general.IsConnected())
	assert.False(t, random.IsConnected())

	drain(sub)
	h.SendMessage("/list")
	ev := mustEvent(t, sub, EventInfo)
	assert.Equal(t, "Channels are:\ngeneral (active)", ev.Text)

	h.SendMessage("/list all")
	ev = mustEvent(t, sub, EventInfo)
	assert.Equal(t, "Channels are:\ngeneral (active)\nrandom", ev.Text)

	h.SendMessage("/connect random")
	assert.True(t, random.IsConnected())

	h.SendMessage("/quit")
	assert.False(t, general.IsConnected())
	assert.False(t, random.IsConnected())

	h.SendMessage("/connect")
	assert.True(t, general.IsConnected())
	assert.True(t, random.IsConnected())

	drain(sub)
	h.SendMessage("/connect ghost")
	ev = mustEvent(t, sub, EventError)
	assert.Equal(t, ErrCodeChannelNotFound, ev.Error.Code)
	h.SendMessage("/quit ghost")
	ev = mustEvent(t, sub, EventError)
	assert.Equal(t, ErrCodeChannelNotFound, ev.Error.Code)
}

func TestHubInfo(t *testing.T) {
	bus := mem.NewBus()
	h, sub := newTestHub(t, bus, nil)
	_, err := h.AddChannel(testSettings("general", "alice"), false)
	require.NoError(t, err)
	drain(sub)

	h.SendMessage("/info general")
	ev := mustEvent(t, sub, EventInfo)
	assert.Contains(t, ev.Text, testGroup)
	assert.Contains(t, ev.Text, "Connected: no")

	h.SendMessage("/info ghost")
	ev = mustEvent(t, sub, EventError)
	assert.Equal(t, "Not a valid channel name.", ev.Text)
}

func TestHubRemoveRepairsActiveIndex(t *testing.T) {
	bus := mem.NewBus()
	h, _ := newTestHub(t, bus, nil)
	for _, name := range []string{"a", "b", "c"} {
		_, err := h.AddChannel(testSettings(name, "alice"), false)
		require.NoError(t, err)
	}
	require.NoError(t, h.SetActive("c"))

	require.NoError(t, h.RemoveChannel("a"))
	assert.Equal(t, "c", h.Active().Name())

	h.SendMessage("/remove c")
	assert.Nil(t, h.Active())
	assert.Equal(t, []string{"b"}, names(h.Channels()))

	assert.ErrorIs(t, h.RemoveChannel("ghost"), ErrChannelNotFound)
	assert.ErrorIs(t, h.SetActive("ghost"), ErrChannelNotFound)
}

func TestHubRemoveSendsLogoff(t *testing.T) {
	bus := mem.NewBus()
	h, _ := newTestHub(t, bus, nil)
	_, err := h.AddChannel(testSettings("general", "alice"), true)
	require.NoError(t, err)

	h.SendMessage("/remove general")

	sent := bus.Sent(testGroup, testPort)
	assert.Equal(t, "alice>/logoff", sent[len(sent)-1])
	assert.Empty(t, h.Channels())
}

func TestHubEdit(t *testing.T) {
	bus := mem.NewBus()
	h, sub := newTestHub(t, bus, nil)
	general, err := h.AddChannel(testSettings("general", "alice"), true)
	require.NoError(t, err)
	_, err = h.AddChannel(testSettings("random", "alice"), false)
	require.NoError(t, err)

	h.SendMessage("/edit general -p 1600 -dn al")
	assert.Equal(t, 1600, general.Settings().Port)
	assert.Equal(t, "al", general.DisplayName())
	assert.Equal(t, "general", general.Name())
	assert.True(t, general.IsConnected())
	assert.Equal(t, []string{"al>/logon"}, bus.Sent(testGroup, 1600))

	drain(sub)
	h.SendMessage("/edit general -cn random")
	ev := mustEvent(t, sub, EventError)
	assert.Equal(t, ErrCodeChannelExists, ev.Error.Code)

	h.SendMessage("/edit ghost -p 1700")
	ev = mustEvent(t, sub, EventError)
	assert.Equal(t, ErrCodeChannelNotFound, ev.Error.Code)
}

func TestHubFanInTagsChannel(t *testing.T) {
	bus := mem.NewBus()
	h, sub := newTestHub(t, bus, nil)
	_, err := h.AddChannel(testSettings("general", "alice"), true)
	require.NoError(t, err)
	_, err = h.AddChannel(testSettings("random", "alice").WithPort(1400), true)
	require.NoError(t, err)

	one, _ := rawPeer(t, bus, testPort)
	two, _ := rawPeer(t, bus, 1400)
	one.Send("bob>from general")
	two.Send("carol>from random")

	ev := mustEventText(t, sub, "bob: from general")
	assert.Equal(t, "general", ev.Channel)
	ev = mustEventText(t, sub, "carol: from random")
	assert.Equal(t, "random", ev.Channel)
}

func TestHubLoad(t *testing.T) {
	bus := mem.NewBus()
	h, _ := newTestHub(t, bus, nil)

	err := h.Load(store.Snapshot{
		Globals: settings.Globals{DisplayName: "zed"},
		Channels: []settings.ChannelSettings{
			settings.New("general", "", "", testGroup, testPort, ""),
			settings.New("general", "", "", testGroup, 1400, ""),
			settings.New("random", "bob", "", testGroup, 1400, ""),
		},
	}, false)

	assert.ErrorIs(t, err, ErrChannelExists)
	assert.Equal(t, []string{"general", "random"}, names(h.Channels()))
	general, _ := h.Channel("general")
	assert.Equal(t, "zed", general.DisplayName())
	assert.Equal(t, "0.0.0.0", general.Settings().ConnectionIP)
	assert.False(t, general.IsConnected())
	random, _ := h.Channel("random")
	assert.Equal(t, "bob", random.DisplayName())
	assert.Equal(t, "zed", h.Globals().DisplayName)
}

func TestHubShutDownSavesSnapshot(t *testing.T) {
	bus := mem.NewBus()
	saver := &fakeSaver{}
	h, _ := newTestHub(t, bus, saver)
	general, err := h.AddChannel(testSettings("general", "alice"), true)
	require.NoError(t, err)

	require.NoError(t, h.ShutDown(context.Background()))

	assert.False(t, general.IsConnected())
	sent := bus.Sent(testGroup, testPort)
	assert.Equal(t, "alice>/logoff", sent[len(sent)-1])

	saver.mu.Lock()
	defer saver.mu.Unlock()
	require.NotEmpty(t, saver.saved)
	snap := saver.saved[0]
	require.Len(t, snap.Channels, 1)
	assert.Equal(t, "general", snap.Channels[0].ChannelName)
	assert.Equal(t, "alice", snap.Globals.DisplayName)
}

func TestHubShutDownReportsSaveError(t *testing.T) {
	bus := mem.NewBus()
	saver := &fakeSaver{err: errors.New("disk full")}
	h, _ := newTestHub(t, bus, saver)

	err := h.ShutDown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestHubHelp(t *testing.T) {
	bus := mem.NewBus()
	h, sub := newTestHub(t, bus, nil)

	h.SendMessage("/help")
	ev := mustEvent(t, sub, EventInfo)
	assert.Contains(t, ev.Text, "No channel selected")
	assert.Contains(t, ev.Text, "/add")
	assert.Contains(t, ev.Text, "/pm")
	assert.Empty(t, ev.Channel)
}
