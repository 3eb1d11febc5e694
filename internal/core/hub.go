package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatr/internal/settings"
	"github.com/vovakirdan/chatr/internal/store"
)

const noActive = -1

// HubOptions configures a Hub and every channel it creates.
type HubOptions struct {
	Dial         Dialer
	Sink         Sink
	Logger       *zerolog.Logger
	Globals      settings.Globals
	SettleDelay  time.Duration
	UniqueRoster bool
	// Store, when set, receives a snapshot on ShutDown.
	Store store.Saver
}

// Hub owns every channel of the process, tracks the active one and routes user input.
// All channels publish to the same Sink, which is the hub's single outward stream.
type Hub struct {
	opts  ChannelOptions
	store store.Saver
	sink  Sink
	log   zerolog.Logger

	mu       sync.Mutex
	globals  settings.Globals
	channels []*Channel
	active   int
}

// NewHub creates a hub with no channels.
func NewHub(opts HubOptions) *Hub {
	l := zerolog.Nop()
	if opts.Logger != nil {
		l = opts.Logger.With().Str("component", "hub").Logger()
	}
	sink := opts.Sink
	if sink == nil {
		sink = discardSink{}
	}
	return &Hub{
		opts: ChannelOptions{
			Dial:         opts.Dial,
			Sink:         sink,
			Logger:       opts.Logger,
			SettleDelay:  opts.SettleDelay,
			UniqueRoster: opts.UniqueRoster,
		},
		store:   opts.Store,
		sink:    sink,
		log:     l,
		globals: opts.Globals,
		active:  noActive,
	}
}

// Globals returns the fallbacks applied to new channels.
func (h *Hub) Globals() settings.Globals {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.globals
}

// Load merges persisted globals and adds every persisted channel, connecting them
// when connect is set. Channels that cannot be added are reported and skipped.
func (h *Hub) Load(snap store.Snapshot, connect bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.globals.Merge(snap.Globals)

	var errs []error
	for _, s := range snap.Channels {
		if _, err := h.addChannel(s, connect); err != nil {
			h.log.Warn().Err(err).Str("channel", s.ChannelName).Msg("skipping saved channel")
			h.emitError(codeFor(err), fmt.Sprintf("Could not load channel %q: %v", s.ChannelName, err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AddChannel applies the globals to s and adds a channel, initializing it when connect is set.
// The first channel added becomes active.
func (h *Hub) AddChannel(s settings.ChannelSettings, connect bool) (*Channel, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addChannel(s, connect)
}

// Channels returns the channels in the order they were added.
func (h *Hub) Channels() []*Channel {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Channel, len(h.channels))
	copy(out, h.channels)
	return out
}

// Channel looks a channel up by exact name.
func (h *Hub) Channel(name string) (*Channel, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.indexOf(name)
	if i < 0 {
		return nil, false
	}
	return h.channels[i], true
}

// Active returns the channel plain text is routed to, or nil.
func (h *Hub) Active() *Channel {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activeChannel()
}

// SetActive switches the active channel. Unknown names leave it unchanged.
func (h *Hub) SetActive(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.indexOf(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrChannelNotFound, name)
	}
	h.active = i
	return nil
}

// RemoveChannel quits a channel and drops it, repairing the active index.
func (h *Hub) RemoveChannel(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removeChannel(name)
}

// SendMessage routes one line of user input. Orchestrator commands are handled
// here; everything else goes to the active channel.
func (h *Hub) SendMessage(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cmd, ok := ParseCommand(text)
	if !ok {
		h.forward(text)
		return
	}

	h.log.Debug().Str("command", cmd.Name).Msg("dispatch")
	switch cmd.Name {
	case CmdHelp, CmdHelpShort:
		h.emitInfo(hubHelp(h.activeChannel()))
	case CmdQuit, CmdQuitShort:
		h.quit(cmd.Fields())
	case CmdChannel:
		h.switchChannel(cmd.Args)
	case CmdAdd:
		h.add(cmd.Args)
	case CmdEdit:
		h.edit(cmd.Args)
	case CmdRemove:
		if err := h.removeChannel(cmd.Args); err != nil {
			h.emitError(ErrCodeChannelNotFound, fmt.Sprintf("No channel with name %s could be found.", cmd.Args))
		}
	case CmdList:
		h.list(cmd.Args != "")
	case CmdInfo:
		h.info(cmd.Args)
	case CmdConnect:
		h.connect(cmd.Fields())
	default:
		h.forward("/" + cmd.Raw)
	}
}

// Snapshot captures the globals and current settings of every channel.
func (h *Hub) Snapshot() store.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot()
}

// ShutDown quits every channel, then persists the snapshot when a store is configured.
func (h *Hub) ShutDown(ctx context.Context) error {
	h.mu.Lock()
	for _, ch := range h.channels {
		ch.ShutDown()
	}
	snap := h.snapshot()
	h.mu.Unlock()

	h.log.Info().Int("channels", len(snap.Channels)).Msg("all channels closed")
	if h.store == nil {
		return nil
	}
	if err := h.store.Save(ctx, snap); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (h *Hub) addChannel(s settings.ChannelSettings, connect bool) (*Channel, error) {
	s = h.globals.Apply(s)
	s.ChannelName = settings.Normalize(s.ChannelName)
	if s.ChannelName == "" {
		return nil, fmt.Errorf("%w: channel name is required", ErrBadRequest)
	}
	if h.indexOf(s.ChannelName) >= 0 {
		return nil, fmt.Errorf("%w: %s", ErrChannelExists, s.ChannelName)
	}

	ch := NewChannel(s, h.opts)
	h.channels = append(h.channels, ch)
	if h.active == noActive {
		h.active = len(h.channels) - 1
	}
	h.log.Info().Str("channel", s.ChannelName).Bool("connect", connect).Msg("channel added")

	if connect {
		// failures are already on the display stream
		_ = ch.Init()
	}
	return ch, nil
}

func (h *Hub) removeChannel(name string) error {
	i := h.indexOf(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrChannelNotFound, name)
	}
	ch := h.channels[i]
	ch.ShutDown()
	h.channels = append(h.channels[:i], h.channels[i+1:]...)

	switch {
	case h.active == i:
		h.active = noActive
	case h.active > i:
		h.active--
	}
	h.log.Info().Str("channel", name).Msg("channel removed")
	h.emitInfo(fmt.Sprintf("Removed channel %s", name))
	return nil
}

func (h *Hub) forward(text string) {
	ch := h.activeChannel()
	if ch == nil || !ch.IsConnected() {
		h.emitError(ErrCodeNoActiveChannel, "No channel selected for sending")
		return
	}
	ch.SendMessage(text)
}

func (h *Hub) quit(names []string) {
	if len(names) == 0 {
		for _, ch := range h.channels {
			ch.ShutDown()
		}
		return
	}
	for _, name := range names {
		i := h.indexOf(name)
		if i < 0 {
			h.emitError(ErrCodeChannelNotFound, fmt.Sprintf("No channel with name %s could be found.", name))
			continue
		}
		h.channels[i].ShutDown()
	}
}

func (h *Hub) connect(names []string) {
	if len(names) == 0 {
		for _, ch := range h.channels {
			if !ch.IsConnected() {
				_ = ch.Init()
			}
		}
		return
	}
	for _, name := range names {
		i := h.indexOf(name)
		if i < 0 {
			h.emitError(ErrCodeChannelNotFound, fmt.Sprintf("No channel with name %s could be found.", name))
			continue
		}
		if ch := h.channels[i]; !ch.IsConnected() {
			_ = ch.Init()
		}
	}
}

func (h *Hub) switchChannel(name string) {
	if name == "" {
		if ch := h.activeChannel(); ch != nil {
			h.emitInfo(fmt.Sprintf("Active channel is %s", ch.Name()))
		} else {
			h.emitInfo("No channel selected")
		}
		return
	}
	i := h.indexOf(name)
	if i < 0 {
		h.emitError(ErrCodeChannelNotFound, fmt.Sprintf("No channel with name %s could be found.", name))
		return
	}
	h.active = i
	h.emitInfo(fmt.Sprintf("Switched to channel %s", name))
}

func (h *Hub) add(flags string) {
	if strings.TrimSpace(flags) == "" {
		h.emitError(ErrCodeBadRequest, "Usage: /add -cn [channel name] [flags]")
		return
	}
	if _, err := h.addChannel(settings.Parse(flags), true); err != nil {
		h.emitError(codeFor(err), fmt.Sprintf("Could not add channel: %v", err))
	}
}

func (h *Hub) edit(args string) {
	name, flags := firstToken(args)
	if name == "" {
		h.emitError(ErrCodeBadRequest, "Usage: /edit [channel name] [flags]")
		return
	}
	i := h.indexOf(name)
	if i < 0 {
		h.emitError(ErrCodeChannelNotFound, fmt.Sprintf("No channel with name %s could be found.", name))
		return
	}

	s := h.globals.Apply(settings.Parse(flags))
	if s.ChannelName == "" {
		s.ChannelName = name
	}
	if j := h.indexOf(s.ChannelName); j >= 0 && j != i {
		h.emitError(ErrCodeChannelExists, fmt.Sprintf("Could not edit channel: %v: %s", ErrChannelExists, s.ChannelName))
		return
	}
	_ = h.channels[i].Reconfigure(s)
	h.emitInfo(fmt.Sprintf("Updated channel %s", s.ChannelName))
}

func (h *Hub) list(all bool) {
	var b strings.Builder
	b.WriteString("Channels are:")
	for i, ch := range h.channels {
		if !all && !ch.IsConnected() {
			continue
		}
		b.WriteString("\n")
		b.WriteString(ch.Name())
		if i == h.active {
			b.WriteString(" (active)")
		}
	}
	h.emitInfo(b.String())
}

func (h *Hub) info(name string) {
	i := h.indexOf(name)
	if i < 0 {
		h.emitError(ErrCodeChannelNotFound, "Not a valid channel name.")
		return
	}
	ch := h.channels[i]
	state := "no"
	if ch.IsConnected() {
		state = "yes"
	}
	h.emitInfo(ch.Settings().String() + "Connected: " + state)
}

func (h *Hub) snapshot() store.Snapshot {
	snap := store.Snapshot{
		Globals:  h.globals,
		Channels: make([]settings.ChannelSettings, 0, len(h.channels)),
	}
	for _, ch := range h.channels {
		snap.Channels = append(snap.Channels, ch.Settings())
	}
	return snap
}

func (h *Hub) activeChannel() *Channel {
	if h.active < 0 || h.active >= len(h.channels) {
		return nil
	}
	return h.channels[h.active]
}

func (h *Hub) indexOf(name string) int {
	for i, ch := range h.channels {
		if ch.Name() == name {
			return i
		}
	}
	return -1
}

func (h *Hub) emitInfo(text string) {
	h.sink.Publish(&Event{Kind: EventInfo, Color: ColorInfo, Text: text})
}

func (h *Hub) emitError(code, msg string) {
	h.sink.Publish(&Event{Kind: EventError, Color: ColorError, Text: msg, Error: coreError(code, msg)})
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, ErrChannelExists):
		return ErrCodeChannelExists
	case errors.Is(err, ErrChannelNotFound):
		return ErrCodeChannelNotFound
	default:
		return ErrCodeBadRequest
	}
}
