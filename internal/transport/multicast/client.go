package multicast

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/net/ipv4"

	"github.com/vovakirdan/chatr/internal/utils"
)

// MaxDatagramSize bounds a single read.
const MaxDatagramSize = 65536

// ErrAlreadyReceiving is returned by StartReceiving while a receive loop is running.
var ErrAlreadyReceiving = errors.New("already receiving")

// Message is one decoded datagram.
type Message struct {
	Text   string
	Sender net.IP
}

// Handler is invoked on the receive goroutine for every decoded datagram.
type Handler func(Message)

// Client owns the receive socket of one group/port pair. Sends use a fresh socket each time.
type Client struct {
	ID string

	localIP net.IP
	group   net.IP
	port    int
	log     zerolog.Logger

	mu   sync.Mutex
	raw  net.PacketConn
	done chan struct{}
}

// NewClient prepares a client. localIP may be nil or unspecified to let the system pick the interface.
func NewClient(localIP, group net.IP, port int, logger *zerolog.Logger) (*Client, error) {
	if group.To4() == nil {
		return nil, fmt.Errorf("multicast group %s is not ipv4", group)
	}
	if localIP != nil && !localIP.IsUnspecified() && localIP.To4() == nil {
		return nil, fmt.Errorf("local address %s is not ipv4", localIP)
	}
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("port %d out of range", port)
	}

	id := utils.ShortID()
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().
			Str("transport_id", id).
			Str("group", group.String()).
			Int("port", port).
			Logger()
	}

	return &Client{
		ID:      id,
		localIP: localIP,
		group:   group.To4(),
		port:    port,
		log:     l,
	}, nil
}

// StartReceiving binds the port with address reuse, joins the group and starts the
// receive loop. When it returns nil the socket is already a group member, so anything
// sent afterwards will be delivered to handler.
func (c *Client) StartReceiving(handler Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.raw != nil {
		return ErrAlreadyReceiving
	}

	ifi, err := interfaceFor(c.localIP)
	if err != nil {
		return err
	}

	lc := net.ListenConfig{Control: reuseControl}
	pc, err := lc.ListenPacket(context.Background(), "udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(c.port)))
	if err != nil {
		return fmt.Errorf("bind udp port %d: %w", c.port, err)
	}

	p := ipv4.NewPacketConn(pc)
	if err := p.JoinGroup(ifi, &net.UDPAddr{IP: c.group}); err != nil {
		_ = pc.Close()
		return fmt.Errorf("join group %s: %w", c.group, err)
	}
	filter := true
	if err := p.SetControlMessage(ipv4.FlagDst, true); err != nil {
		c.log.Debug().Err(err).Msg("destination filtering unavailable")
		filter = false
	}

	done := make(chan struct{})
	c.raw = pc
	c.done = done

	go c.receiveLoop(p, pc, done, handler, filter)

	c.log.Debug().Msg("receiving")
	return nil
}

// Receiving reports whether a receive loop currently owns the socket.
func (c *Client) Receiving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raw != nil
}

// StopReceiving closes the receive socket and waits for the loop to exit.
// It is idempotent and must not be called from inside the handler.
func (c *Client) StopReceiving() {
	c.mu.Lock()
	pc, done := c.raw, c.done
	c.raw, c.done = nil, nil
	c.mu.Unlock()

	if pc == nil {
		return
	}
	if err := pc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.log.Warn().Err(err).Msg("close receive socket")
	}
	<-done
	c.log.Debug().Msg("stopped receiving")
}

// Close is an alias for StopReceiving.
func (c *Client) Close() error {
	c.StopReceiving()
	return nil
}

// Send writes text to the group as one datagram. Failures are logged and dropped.
func (c *Client) Send(text string) {
	if err := c.send(text); err != nil {
		c.log.Warn().Err(err).Msg("send failed, message dropped")
	}
}

func (c *Client) send(text string) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: c.localIP})
	if err != nil {
		return fmt.Errorf("open send socket: %w", err)
	}
	defer conn.Close()

	p := ipv4.NewPacketConn(conn)
	ifi, err := interfaceFor(c.localIP)
	if err != nil {
		return err
	}
	if ifi != nil {
		if err := p.SetMulticastInterface(ifi); err != nil {
			c.log.Debug().Err(err).Str("interface", ifi.Name).Msg("set multicast interface")
		}
	}
	if err := p.SetMulticastLoopback(true); err != nil {
		c.log.Debug().Err(err).Msg("enable multicast loopback")
	}
	if err := p.SetMulticastTTL(1); err != nil {
		c.log.Debug().Err(err).Msg("set multicast ttl")
	}

	datagram := Encode(text)
	if len(datagram) > MaxDatagramSize {
		return fmt.Errorf("payload of %d bytes exceeds datagram limit", len(datagram))
	}
	if _, err := p.WriteTo(datagram, nil, &net.UDPAddr{IP: c.group, Port: c.port}); err != nil {
		return fmt.Errorf("write to %s:%d: %w", c.group, c.port, err)
	}
	return nil
}

func (c *Client) receiveLoop(p *ipv4.PacketConn, pc net.PacketConn, done chan struct{}, handler Handler, filter bool) {
	defer close(done)

	buf := make([]byte, MaxDatagramSize)
	for {
		n, cm, src, err := p.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			c.log.Error().Err(err).Msg("receive failed, stopping receive loop")
			c.release(pc)
			return
		}

		// The socket is bound to the wildcard address, so other groups on the same port arrive too.
		if filter && cm != nil && cm.Dst != nil && !cm.Dst.Equal(c.group) {
			continue
		}

		text, err := Decode(buf[:n])
		if err != nil {
			c.log.Debug().Err(err).Str("sender", addrString(src)).Msg("dropping malformed datagram")
			continue
		}
		if handler != nil {
			handler(Message{Text: text, Sender: senderIP(src)})
		}
	}
}

// release drops ownership of pc after a fatal read error.
func (c *Client) release(pc net.PacketConn) {
	c.mu.Lock()
	if c.raw == pc {
		c.raw, c.done = nil, nil
	}
	c.mu.Unlock()
	_ = pc.Close()
}

func interfaceFor(ip net.IP) (*net.Interface, error) {
	if ip == nil || ip.IsUnspecified() {
		return nil, nil
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.Equal(ip) {
				return &ifaces[i], nil
			}
		}
	}
	return nil, fmt.Errorf("no interface has address %s", ip)
}

func senderIP(addr net.Addr) net.IP {
	if udp, ok := addr.(*net.UDPAddr); ok {
		return udp.IP
	}
	return nil
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
