package core

import "sync"

// EventKind classifies a display event.
type EventKind int

const (
	// EventChat is a broadcast chat line.
	EventChat EventKind = iota
	// EventPrivate is a private message addressed to, or sent by, this user.
	EventPrivate
	// EventPresence reports a peer logging on, logging off or renaming.
	EventPresence
	// EventInfo is locally generated output: help, rosters, listings, banners.
	EventInfo
	// EventError reports a local validation or transport failure.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventChat:
		return "chat"
	case EventPrivate:
		return "private"
	case EventPresence:
		return "presence"
	case EventInfo:
		return "info"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Color is a rendering hint for front-ends. It names a colour, not a style.
type Color string

const (
	ColorDefault Color = ""
	ColorPrivate Color = "magenta"
	ColorNotice  Color = "yellow"
	ColorInfo    Color = "cyan"
	ColorError   Color = "red"
	ColorSelf    Color = "green"
)

// Event is one display update. Channel is empty for orchestrator-level output.
type Event struct {
	Kind    EventKind
	Channel string
	User    string
	Text    string
	Color   Color
	// Notify asks the front-end to alert the user (a bell on a terminal).
	Notify bool
	Error  *CoreError
}

// Sink receives display events. Implementations must be safe for concurrent use,
// since every connected channel publishes from its own receive goroutine.
type Sink interface {
	Publish(ev *Event)
}

// SinkFunc adapts a function to Sink. The function is called under a lock, so
// calls never overlap.
type SinkFunc func(ev *Event)

// Serialized wraps fn so concurrent publishers are delivered one at a time.
func Serialized(fn SinkFunc) Sink {
	return &serializedSink{fn: fn}
}

type serializedSink struct {
	mu sync.Mutex
	fn SinkFunc
}

func (s *serializedSink) Publish(ev *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn(ev)
}

type discardSink struct{}

func (discardSink) Publish(*Event) {}
