// Package settings describes the identity and connection parameters of one chat channel.
package settings

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	// DefaultMulticastIP is the group every channel joins unless told otherwise.
	DefaultMulticastIP = "239.255.10.11"
	// DefaultPort is the UDP port shared by the group.
	DefaultPort = 1314

	MinPort = 0
	MaxPort = 65535
)

var (
	ErrInvalidIP   = errors.New("invalid ip address")
	ErrInvalidPort = errors.New("invalid port")
)

// ChannelSettings is a value record; use the With* helpers to derive a modified copy.
type ChannelSettings struct {
	ChannelName  string `json:"channel_name" yaml:"channel_name"`
	DisplayName  string `json:"display_name" yaml:"display_name"`
	ConnectionIP string `json:"connection_ip" yaml:"connection_ip"`
	MulticastIP  string `json:"multicast_ip" yaml:"multicast_ip"`
	Port         int    `json:"port" yaml:"port"`
	// Password is a display label only. Traffic is never encrypted with it.
	Password string `json:"password" yaml:"password"`
}

// Default returns settings pointing at the default group and port.
func Default() ChannelSettings {
	return ChannelSettings{
		MulticastIP: DefaultMulticastIP,
		Port:        DefaultPort,
		Password:    defaultPassword(DefaultMulticastIP, DefaultPort),
	}
}

// New builds normalized settings from explicit values. An out of range port falls back to DefaultPort.
func New(channelName, displayName, connectionIP, multicastIP string, port int, password string) ChannelSettings {
	s := Default()
	s.ChannelName = Normalize(channelName)
	s.DisplayName = Normalize(displayName)
	s.ConnectionIP = strings.TrimSpace(connectionIP)
	if multicastIP != "" {
		s.MulticastIP = strings.TrimSpace(multicastIP)
	}
	if ValidPort(port) {
		s.Port = port
	}
	if password != "" {
		s.Password = password
	} else {
		s.Password = defaultPassword(s.MulticastIP, s.Port)
	}
	return s
}

// Normalize replaces spaces with underscores so a name is usable as a wire identifier.
func Normalize(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}

// WithDisplayName returns a copy using the normalized display name.
func (s ChannelSettings) WithDisplayName(name string) ChannelSettings {
	s.DisplayName = Normalize(name)
	return s
}

// WithMulticastIP returns a copy joined to another group.
func (s ChannelSettings) WithMulticastIP(ip string) ChannelSettings {
	s.MulticastIP = ip
	return s
}

// WithPort returns a copy on another port. Out of range values are ignored.
func (s ChannelSettings) WithPort(port int) ChannelSettings {
	if ValidPort(port) {
		s.Port = port
	}
	return s
}

// Endpoint renders the group address as host:port.
func (s ChannelSettings) Endpoint() string {
	return net.JoinHostPort(s.MulticastIP, strconv.Itoa(s.Port))
}

// String renders the settings the way the info command shows them.
func (s ChannelSettings) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Channel Name: %s\n", s.ChannelName)
	fmt.Fprintf(&b, "Display Name: %s\n", s.DisplayName)
	fmt.Fprintf(&b, "Connection IP: %s\n", s.ConnectionIP)
	fmt.Fprintf(&b, "Multicast IP: %s\n", s.MulticastIP)
	fmt.Fprintf(&b, "Port: %d\n", s.Port)
	fmt.Fprintf(&b, "Password: %s\n", s.Password)
	return b.String()
}

// ParseIP validates the syntax of an address. No reachability check is done.
func ParseIP(value string) (net.IP, error) {
	ip := net.ParseIP(strings.TrimSpace(value))
	if ip == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIP, value)
	}
	return ip, nil
}

// ValidIP reports whether value parses as an IP address.
func ValidIP(value string) bool {
	_, err := ParseIP(value)
	return err == nil
}

// ParsePort parses a decimal port in [MinPort, MaxPort].
func ParsePort(value string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || !ValidPort(port) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, value)
	}
	return port, nil
}

// ValidPort reports whether port is a usable UDP port number.
func ValidPort(port int) bool {
	return port >= MinPort && port <= MaxPort
}

func defaultPassword(multicastIP string, port int) string {
	return fmt.Sprintf("%s:%d", multicastIP, port)
}
