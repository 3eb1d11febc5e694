package settings

import (
	"strconv"
	"strings"
)

// Parse builds settings from a space-delimited flag string such as
// "-cn lobby -dn alice -lip 10.0.0.2 -mip 239.255.10.11 -p 1314 -pw secret".
// Unknown flags and flags without a value are skipped. A bad port keeps the default.
func Parse(flags string) ChannelSettings {
	s := Default()
	passwordSet := false

	fields := strings.Fields(flags)
	for i := 0; i < len(fields); i++ {
		if !strings.HasPrefix(fields[i], "-") {
			continue
		}
		if i+1 >= len(fields) {
			break
		}
		name := strings.TrimLeft(fields[i], "-")
		value := fields[i+1]

		switch name {
		case "cn", "channel":
			s.ChannelName = Normalize(value)
		case "dn", "display":
			s.DisplayName = Normalize(value)
		case "lip", "localip":
			s.ConnectionIP = value
		case "mip", "multicastip":
			s.MulticastIP = value
		case "p", "port":
			if port, err := ParsePort(value); err == nil {
				s.Port = port
			}
		case "pw", "password":
			s.Password = value
			passwordSet = true
		default:
			continue
		}
		i++
	}

	if !passwordSet {
		s.Password = defaultPassword(s.MulticastIP, s.Port)
	}
	return s
}

// Flags renders settings back into the flag string understood by Parse.
func (s ChannelSettings) Flags() string {
	parts := make([]string, 0, 12)
	add := func(flag, value string) {
		if value != "" {
			parts = append(parts, flag, value)
		}
	}
	add("-cn", s.ChannelName)
	add("-dn", s.DisplayName)
	add("-lip", s.ConnectionIP)
	add("-mip", s.MulticastIP)
	parts = append(parts, "-p", strconv.Itoa(s.Port))
	add("-pw", s.Password)
	return strings.Join(parts, " ")
}
