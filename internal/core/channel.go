package core

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatr/internal/settings"
	"github.com/vovakirdan/chatr/internal/transport/multicast"
)

// Transport is what a Channel needs from the network.
type Transport interface {
	StartReceiving(handler multicast.Handler) error
	StopReceiving()
	Send(text string)
}

// Dialer opens a transport for one group and port on the given local address.
type Dialer func(localIP, group net.IP, port int) (Transport, error)

// MulticastDialer returns a Dialer backed by real UDP multicast sockets.
func MulticastDialer(logger *zerolog.Logger) Dialer {
	return func(localIP, group net.IP, port int) (Transport, error) {
		c, err := multicast.NewClient(localIP, group, port, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// ChannelOptions configures a Channel.
type ChannelOptions struct {
	Dial   Dialer
	Sink   Sink
	Logger *zerolog.Logger
	// SettleDelay is slept between joining the group and announcing logon.
	// The transport already guarantees the receive loop is live when it returns,
	// so zero is safe.
	SettleDelay  time.Duration
	UniqueRoster bool
}

// Channel is one multicast chat session: its settings, its transport and the
// protocol state rebuilt from broadcast traffic.
//
// Outbound operations are serialized by ops. State shared with the receive
// goroutine is guarded by mu, which is never held across a transport call.
type Channel struct {
	dial   Dialer
	sink   Sink
	log    zerolog.Logger
	settle time.Duration

	ops sync.Mutex

	mu        sync.Mutex
	settings  settings.ChannelSettings
	transport Transport
	roster    *Roster
}

// NewChannel creates a disconnected channel.
func NewChannel(s settings.ChannelSettings, opts ChannelOptions) *Channel {
	l := zerolog.Nop()
	if opts.Logger != nil {
		l = opts.Logger.With().Str("channel", s.ChannelName).Logger()
	}
	sink := opts.Sink
	if sink == nil {
		sink = discardSink{}
	}
	dial := opts.Dial
	if dial == nil {
		dial = MulticastDialer(opts.Logger)
	}
	return &Channel{
		dial:     dial,
		sink:     sink,
		log:      l,
		settle:   opts.SettleDelay,
		settings: s,
		roster:   NewRoster(opts.UniqueRoster),
	}
}

// Name returns the channel name.
func (c *Channel) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.ChannelName
}

// DisplayName returns the name this user goes by on the channel.
func (c *Channel) DisplayName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.DisplayName
}

// Settings returns a copy of the current settings.
func (c *Channel) Settings() settings.ChannelSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// IsConnected reports whether the channel owns a live transport.
func (c *Channel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport != nil
}

// Users returns the roster in insertion order.
func (c *Channel) Users() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roster.Names()
}

// Init validates the addresses, joins the group and announces this user.
// A connected channel is torn down completely first.
func (c *Channel) Init() error {
	c.ops.Lock()
	defer c.ops.Unlock()
	return c.connect()
}

// ShutDown announces logoff, clears the roster and releases the transport.
// It is safe to call on a disconnected channel.
func (c *Channel) ShutDown() {
	c.ops.Lock()
	defer c.ops.Unlock()
	c.disconnect()
}

// Reconfigure replaces the settings wholesale. A connected channel reconnects
// with the new settings; a disconnected one stays disconnected.
func (c *Channel) Reconfigure(s settings.ChannelSettings) error {
	c.ops.Lock()
	defer c.ops.Unlock()

	wasConnected := c.disconnect()
	c.setSettings(s)
	if !wasConnected {
		return nil
	}
	return c.connect()
}

// SendMessage handles a line typed by the user: a channel command when it starts
// with "/", chat text otherwise.
func (c *Channel) SendMessage(text string) {
	c.ops.Lock()
	defer c.ops.Unlock()

	cmd, ok := ParseCommand(text)
	if !ok {
		c.send(text)
		return
	}
	c.handleOutgoing(cmd)
}

func (c *Channel) connect() error {
	s := c.Settings()

	localIP, err := settings.ParseIP(s.ConnectionIP)
	if err != nil {
		c.emitError(ErrCodeInvalidIP, "Invalid client IP provided!")
		return err
	}
	group, err := settings.ParseIP(s.MulticastIP)
	if err != nil {
		c.emitError(ErrCodeInvalidIP, "Invalid multicast IP provided!")
		return err
	}

	c.disconnect()

	t, err := c.dial(localIP, group, s.Port)
	if err != nil {
		c.log.Error().Err(err).Str("group", s.Endpoint()).Msg("open transport")
		c.emitError(ErrCodeTransport, fmt.Sprintf("Could not open %s: %v", s.Endpoint(), err))
		return fmt.Errorf("open transport: %w", err)
	}
	if err := t.StartReceiving(func(m multicast.Message) { c.handleDatagram(t, m) }); err != nil {
		c.log.Error().Err(err).Str("group", s.Endpoint()).Msg("start receiving")
		c.emitError(ErrCodeTransport, fmt.Sprintf("Could not join %s: %v", s.Endpoint(), err))
		return fmt.Errorf("start receiving: %w", err)
	}

	c.mu.Lock()
	c.transport = t
	c.roster.Clear()
	c.roster.Add(s.DisplayName)
	c.mu.Unlock()

	if c.settle > 0 {
		time.Sleep(c.settle)
	}
	t.Send(FormatLine(s.DisplayName, "/"+CmdLogon))

	c.log.Info().Str("group", s.Endpoint()).Str("display_name", s.DisplayName).Msg("joined multicast group")
	c.emit(&Event{
		Kind:  EventInfo,
		Color: ColorInfo,
		Text: fmt.Sprintf("**************\nJoined Multicast Group:\nIP: %s\nPort: %d\n**************",
			s.MulticastIP, s.Port),
	})
	return nil
}

// disconnect reports whether there was a transport to release.
func (c *Channel) disconnect() bool {
	c.mu.Lock()
	t := c.transport
	me := c.settings.DisplayName
	c.transport = nil
	c.roster.Clear()
	c.mu.Unlock()

	if t == nil {
		return false
	}
	t.Send(FormatLine(me, "/"+CmdLogoff))
	t.StopReceiving()
	c.log.Info().Msg("left multicast group")
	return true
}

func (c *Channel) setSettings(s settings.ChannelSettings) {
	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()
}

// send puts one payload on the wire under the current display name.
func (c *Channel) send(payload string) bool {
	c.mu.Lock()
	t := c.transport
	me := c.settings.DisplayName
	name := c.settings.ChannelName
	c.mu.Unlock()

	if t == nil {
		c.emitError(ErrCodeNotConnected, fmt.Sprintf("Channel %s is not connected", name))
		return false
	}
	t.Send(FormatLine(me, payload))
	return true
}

func (c *Channel) handleOutgoing(cmd Command) {
	switch cmd.Name {
	case CmdHelp, CmdHelpShort:
		s := c.Settings()
		c.emitInfo(channelHelp(s))
	case CmdQuit, CmdQuitShort:
		c.disconnect()
	case CmdUsers:
		c.emitInfo(formatUsers(c.Users()))
	case CmdPM:
		if len(cmd.Fields()) < 2 {
			c.emitError(ErrCodeBadRequest, "Usage: /pm [username] [message]")
			return
		}
		c.send("/" + cmd.Raw)
	case CmdName:
		c.rename(cmd.Args)
	case CmdMulticast:
		ip := strings.TrimSpace(cmd.Args)
		if !settings.ValidIP(ip) {
			c.emitError(ErrCodeInvalidIP, "Multicast IP is not valid")
			return
		}
		c.retarget(c.Settings().WithMulticastIP(ip))
	case CmdPort:
		port, err := settings.ParsePort(cmd.Args)
		if err != nil {
			c.emitError(ErrCodeInvalidPort, "Invalid port number provided!")
			return
		}
		c.retarget(c.Settings().WithPort(port))
	default:
		c.send("/" + cmd.Raw)
	}
}

// retarget stores s and rejoins when connected. A disconnected channel only
// remembers the new address for its next Init.
func (c *Channel) retarget(s settings.ChannelSettings) {
	wasConnected := c.IsConnected()
	c.setSettings(s)
	if wasConnected {
		_ = c.connect()
	}
}

func (c *Channel) rename(requested string) {
	newName := settings.Normalize(requested)
	if newName == "" {
		c.emitError(ErrCodeBadRequest, "Usage: /name [new name]")
		return
	}

	c.mu.Lock()
	t := c.transport
	oldName := c.settings.DisplayName
	c.mu.Unlock()

	if oldName == newName {
		return
	}
	if t != nil {
		t.Send(FormatLine(oldName, "/"+CmdNameChanged+" "+newName))
	}

	c.mu.Lock()
	c.settings = c.settings.WithDisplayName(newName)
	if c.transport != nil {
		c.roster.Rename(oldName, newName)
	}
	c.mu.Unlock()

	c.log.Info().Str("old_name", oldName).Str("new_name", newName).Msg("display name changed")
	c.emitInfo(fmt.Sprintf("You are now known as %s", newName))
}

func (c *Channel) handleDatagram(t Transport, m multicast.Message) {
	sender, payload, ok := ParseLine(m.Text)
	if !ok {
		c.log.Debug().Str("sender_ip", m.Sender.String()).Msg("dropping line without sender")
		return
	}

	var (
		ev    *Event
		reply string
	)

	c.mu.Lock()
	if c.transport != t {
		c.mu.Unlock()
		return
	}
	me := c.settings.DisplayName

	cmd, isCmd := ParseCommand(payload)
	switch {
	case !isCmd:
		ev = &Event{Kind: EventChat, User: sender, Text: sender + ": " + payload, Notify: sender != me}
		if sender == me {
			ev.Color = ColorSelf
		}
	case cmd.Name == CmdPM:
		ev = privateMessage(sender, me, cmd)
	case cmd.Name == CmdUserPing:
		if target, _ := firstToken(cmd.Args); target == me {
			c.roster.Add(sender)
		}
	case cmd.Name == CmdLogoff:
		if sender != me {
			c.roster.Remove(sender)
			ev = presence(sender, fmt.Sprintf("[%s has logged off!]", sender))
		}
	case cmd.Name == CmdLogon:
		if sender != me {
			c.roster.Add(sender)
			ev = presence(sender, fmt.Sprintf("[%s has logged on!]", sender))
			reply = FormatLine(me, "/"+CmdUserPing+" "+sender)
		}
	case cmd.Name == CmdNameChanged:
		newName := cmd.Args
		if newName != "" && sender != me && newName != me {
			c.roster.Rename(sender, newName)
			ev = presence(sender, fmt.Sprintf("[%s has changed to %s]", sender, newName))
		}
	default:
		ev = &Event{Kind: EventChat, User: sender, Text: sender + ": /" + strings.TrimSpace(cmd.Raw)}
	}
	c.mu.Unlock()

	if reply != "" {
		t.Send(reply)
	}
	if ev != nil {
		c.log.Debug().Str("sender", sender).Str("kind", ev.Kind.String()).Msg("display")
	}
	c.emit(ev)
}

func privateMessage(sender, me string, cmd Command) *Event {
	target, text := firstToken(cmd.Args)
	if target == "" {
		return nil
	}
	switch {
	case target == me:
		return &Event{
			Kind:   EventPrivate,
			User:   sender,
			Color:  ColorPrivate,
			Notify: sender != me,
			Text:   fmt.Sprintf("[PM]%s: %s", sender, text),
		}
	case sender == me:
		return &Event{
			Kind:  EventPrivate,
			User:  sender,
			Color: ColorPrivate,
			Text:  fmt.Sprintf("[PM]%s to %s: %s", sender, target, text),
		}
	}
	return nil
}

func presence(user, text string) *Event {
	return &Event{Kind: EventPresence, User: user, Color: ColorNotice, Text: text}
}

func (c *Channel) emit(ev *Event) {
	if ev == nil {
		return
	}
	ev.Channel = c.Name()
	c.sink.Publish(ev)
}

func (c *Channel) emitInfo(text string) {
	c.emit(&Event{Kind: EventInfo, Color: ColorInfo, Text: text})
}

func (c *Channel) emitError(code, msg string) {
	c.emit(&Event{Kind: EventError, Color: ColorError, Text: msg, Error: coreError(code, msg)})
}

func formatUsers(names []string) string {
	var b strings.Builder
	b.WriteString("Active users are:")
	for _, n := range names {
		b.WriteString("\n")
		b.WriteString(n)
	}
	return b.String()
}
