package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/vovakirdan/chatr/internal/settings"
	"github.com/vovakirdan/chatr/internal/store"
)

// FirstChannel is the channel created on first run.
const FirstChannel = "general"

const anyAddress = "0.0.0.0"

// AddrLister returns candidate local IPv4 addresses.
type AddrLister func() ([]net.IP, error)

// Onboard asks for a display name and a local address, and returns a snapshot
// holding those globals and one channel on the default group.
func (c *Console) Onboard(ctx context.Context, addrs AddrLister) (store.Snapshot, error) {
	c.printf("Welcome to chatr. No saved settings were found.\n")

	var name string
	for name == "" {
		c.printf("Enter a display name: ")
		line, err := c.next(ctx)
		if err != nil {
			return store.Snapshot{}, err
		}
		name = settings.Normalize(line)
	}

	ip := anyAddress
	if addrs == nil {
		addrs = LocalIPv4
	}
	candidates, err := addrs()
	if err != nil {
		c.log.Warn().Err(err).Msg("list interface addresses")
	}
	if len(candidates) > 0 {
		c.printf("Select the address to chat from:\n")
		c.printf("  0) %s (system default)\n", anyAddress)
		for i, a := range candidates {
			c.printf("  %d) %s\n", i+1, a)
		}
		c.printf("Choice [0]: ")
		line, err := c.next(ctx)
		if err != nil {
			return store.Snapshot{}, err
		}
		if n, convErr := strconv.Atoi(strings.TrimSpace(line)); convErr == nil && n >= 1 && n <= len(candidates) {
			ip = candidates[n-1].String()
		}
	}

	c.log.Info().Str("display_name", name).Str("connection_ip", ip).Msg("first run settings chosen")
	return store.Snapshot{
		Globals: settings.Globals{DisplayName: name, ConnectionIP: ip},
		Channels: []settings.ChannelSettings{
			settings.New(FirstChannel, "", "", settings.DefaultMulticastIP, settings.DefaultPort, ""),
		},
	}, nil
}

func (c *Console) next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.readLines():
		if !ok {
			return "", fmt.Errorf("onboarding: %w", io.ErrUnexpectedEOF)
		}
		return line, nil
	}
}

// LocalIPv4 lists the non-loopback IPv4 addresses of interfaces that are up.
func LocalIPv4() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	var out []net.IP
	var errs []error
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifi.Addrs()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ifi.Name, err))
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if v4 := ipnet.IP.To4(); v4 != nil {
				out = append(out, v4)
			}
		}
	}
	return out, errors.Join(errs...)
}
