package settings

import "strings"

// Globals hold fallbacks applied to channels that leave a field unset.
type Globals struct {
	DisplayName  string `json:"display_name" yaml:"display_name"`
	ConnectionIP string `json:"connection_ip" yaml:"connection_ip"`
}

// Apply fills an unset display name or connection IP from the globals.
func (g Globals) Apply(s ChannelSettings) ChannelSettings {
	if strings.TrimSpace(s.DisplayName) == "" {
		s.DisplayName = Normalize(g.DisplayName)
	}
	if strings.TrimSpace(s.ConnectionIP) == "" {
		s.ConnectionIP = g.ConnectionIP
	}
	return s
}

// Merge overwrites non-empty values from other into the receiver.
func (g *Globals) Merge(other Globals) {
	if other.DisplayName != "" {
		g.DisplayName = Normalize(other.DisplayName)
	}
	if other.ConnectionIP != "" {
		g.ConnectionIP = other.ConnectionIP
	}
}
