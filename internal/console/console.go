// Package console is the line-oriented terminal front-end. It feeds every typed
// line to the hub and renders the display stream with colour hints.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatr/internal/core"
)

const (
	cmdClear    = "/clear"
	clearScreen = "\033[H\033[2J"
	bell        = "\a"
)

// Console couples one input stream and one output stream to a hub.
type Console struct {
	hub *core.Hub
	sub *core.Subscription
	out io.Writer
	log zerolog.Logger

	styles map[core.Color]lipgloss.Style

	outMu sync.Mutex

	done      chan struct{}
	rendered  chan struct{}
	closeOnce sync.Once

	in        io.Reader
	linesOnce sync.Once
	lines     chan string
}

// New subscribes to feed without loss and starts rendering at once, so events
// published before Run are shown too. Run or Close releases the subscription.
func New(hub *core.Hub, feed *core.Feed, in io.Reader, out io.Writer, buffer int, logger *zerolog.Logger) *Console {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "console").Logger()
	}
	c := &Console{
		hub:      hub,
		sub:      feed.SubscribeLossless(buffer),
		out:      out,
		log:      l,
		styles:   newStyles(lipgloss.NewRenderer(out)),
		done:     make(chan struct{}),
		rendered: make(chan struct{}),
		in:       in,
	}
	go func() {
		defer close(c.rendered)
		c.renderLoop(c.done)
	}()
	return c
}

func newStyles(r *lipgloss.Renderer) map[core.Color]lipgloss.Style {
	return map[core.Color]lipgloss.Style{
		core.ColorPrivate: r.NewStyle().Foreground(lipgloss.Color("5")),
		core.ColorNotice:  r.NewStyle().Foreground(lipgloss.Color("3")),
		core.ColorInfo:    r.NewStyle().Foreground(lipgloss.Color("6")),
		core.ColorError:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		core.ColorSelf:    r.NewStyle().Foreground(lipgloss.Color("2")),
	}
}

// Run renders display events and routes input lines until a bare quit command,
// the end of input, or ctx is done. Quit and end of input return nil.
func (c *Console) Run(ctx context.Context) error {
	defer c.Close()

	lines := c.readLines()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				c.log.Debug().Msg("input closed")
				return nil
			}
			if quit := c.handleLine(line); quit {
				return nil
			}
		}
	}
}

// Close flushes pending output and stops rendering. Safe to repeat.
func (c *Console) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		<-c.rendered
		c.sub.Close()
	})
}

// handleLine reports whether the session should end.
func (c *Console) handleLine(line string) bool {
	text := strings.TrimSpace(line)
	switch {
	case text == "":
		return false
	case strings.EqualFold(text, cmdClear):
		c.write(clearScreen)
		return false
	case core.IsQuitCommand(text):
		c.hub.SendMessage(text)
		return true
	default:
		c.hub.SendMessage(text)
		return false
	}
}

func (c *Console) renderLoop(done <-chan struct{}) {
	for {
		select {
		case ev, ok := <-c.sub.Events:
			if !ok {
				return
			}
			c.render(ev)
		case <-done:
			// flush what is already queued so synchronous output is never lost
			for {
				select {
				case ev, ok := <-c.sub.Events:
					if !ok {
						return
					}
					c.render(ev)
				default:
					return
				}
			}
		}
	}
}

func (c *Console) render(ev *core.Event) {
	c.write(c.format(ev))
}

func (c *Console) format(ev *core.Event) string {
	var b strings.Builder
	if ev.Notify {
		b.WriteString(bell)
	}
	style, styled := c.styles[ev.Color]
	// styled one line at a time; Render pads multi-line blocks to equal width
	for _, line := range strings.Split(ev.Text, "\n") {
		if styled {
			line = style.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (c *Console) write(s string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	if _, err := io.WriteString(c.out, s); err != nil {
		c.log.Warn().Err(err).Msg("write console output")
	}
}

func (c *Console) printf(format string, args ...any) {
	c.write(fmt.Sprintf(format, args...))
}

// readLines starts the single input scanner. Onboarding and Run share it.
func (c *Console) readLines() <-chan string {
	c.linesOnce.Do(func() {
		c.lines = make(chan string)
		go func() {
			defer close(c.lines)
			scanner := bufio.NewScanner(c.in)
			for scanner.Scan() {
				c.lines <- scanner.Text()
			}
			if err := scanner.Err(); err != nil {
				c.log.Warn().Err(err).Msg("read console input")
			}
		}()
	})
	return c.lines
}
