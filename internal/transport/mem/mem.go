// Package mem is an in-process stand-in for a multicast segment. Every Transport
// dialed on the same Bus with the same group and port sees every datagram sent there,
// its own included, just like multicast loopback.
package mem

import (
	"net"
	"strconv"
	"sync"

	"github.com/vovakirdan/chatr/internal/transport/multicast"
)

const inboxSize = 1024

// Bus connects transports by group/port key and keeps a log of everything sent.
type Bus struct {
	mu      sync.Mutex
	members map[string]map[*Transport]struct{}
	sent    map[string][]string
}

// NewBus returns an empty segment.
func NewBus() *Bus {
	return &Bus{
		members: make(map[string]map[*Transport]struct{}),
		sent:    make(map[string][]string),
	}
}

// Dial creates a transport for the group and port. It does not receive until StartReceiving.
func (b *Bus) Dial(localIP, group net.IP, port int) (*Transport, error) {
	return &Transport{
		bus:    b,
		key:    key(group, port),
		sender: localIP,
	}, nil
}

// Sent returns a copy of every payload sent to the group and port, in send order.
func (b *Bus) Sent(group string, port int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key(net.ParseIP(group), port)
	out := make([]string, len(b.sent[k]))
	copy(out, b.sent[k])
	return out
}

// Members reports how many transports currently receive on the group and port.
func (b *Bus) Members(group string, port int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.members[key(net.ParseIP(group), port)])
}

func (b *Bus) join(t *Transport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.members[t.key]
	if !ok {
		set = make(map[*Transport]struct{})
		b.members[t.key] = set
	}
	set[t] = struct{}{}
}

func (b *Bus) leave(t *Transport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.members[t.key], t)
}

func (b *Bus) deliver(k string, msg multicast.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent[k] = append(b.sent[k], msg.Text)
	for t := range b.members[k] {
		select {
		case t.inbox <- msg:
		default:
			// full inbox behaves like a lost datagram
		}
	}
}

// Transport mirrors multicast.Client on a Bus.
type Transport struct {
	bus    *Bus
	key    string
	sender net.IP

	mu    sync.Mutex
	inbox chan multicast.Message
	stop  chan struct{}
	done  chan struct{}
}

// StartReceiving joins the bus and delivers datagrams to handler on a background goroutine.
func (t *Transport) StartReceiving(handler multicast.Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return multicast.ErrAlreadyReceiving
	}
	t.inbox = make(chan multicast.Message, inboxSize)
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	t.bus.join(t)

	go func(inbox chan multicast.Message, stop, done chan struct{}) {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case msg := <-inbox:
				if handler != nil {
					handler(msg)
				}
			}
		}
	}(t.inbox, t.stop, t.done)
	return nil
}

// StopReceiving leaves the bus and waits for the delivery goroutine. Safe to repeat.
func (t *Transport) StopReceiving() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()
	if stop == nil {
		return
	}
	t.bus.leave(t)
	close(stop)
	<-done
}

// Receiving reports whether the transport is joined.
func (t *Transport) Receiving() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

// Send publishes text to every member of the group, the sender included.
func (t *Transport) Send(text string) {
	t.bus.deliver(t.key, multicast.Message{Text: text, Sender: t.sender})
}

func key(group net.IP, port int) string {
	return group.String() + ":" + strconv.Itoa(port)
}
