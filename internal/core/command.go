package core

import (
	"strings"
	"unicode"
)

// Command names. Channel-level and orchestrator-level commands share one namespace.
const (
	CmdQuitShort   = "q"
	CmdQuit        = "quit"
	CmdHelpShort   = "h"
	CmdHelp        = "help"
	CmdPM          = "pm"
	CmdUserPing    = "userping"
	CmdLogoff      = "logoff"
	CmdLogon       = "logon"
	CmdUsers       = "users"
	CmdName        = "name"
	CmdNameChanged = "namechange"
	CmdMulticast   = "multicast"
	CmdPort        = "port"

	CmdChannel = "channel"
	CmdAdd     = "add"
	CmdList    = "list"
	CmdInfo    = "info"
	CmdConnect = "connect"
	CmdEdit    = "edit"
	CmdRemove  = "remove"
)

// Command is a parsed "/name args" line.
type Command struct {
	// Name is the first token, lower-cased.
	Name string
	// Args is everything after the first token, trimmed.
	Args string
	// Raw is the line without its leading slashes, as typed.
	Raw string
}

// ParseCommand splits a line starting with "/" into a Command.
func ParseCommand(text string) (Command, bool) {
	if !strings.HasPrefix(text, "/") {
		return Command{}, false
	}
	raw := strings.TrimLeft(text, "/")
	name, args := raw, ""
	if i := strings.IndexFunc(raw, unicode.IsSpace); i >= 0 {
		name, args = raw[:i], raw[i+1:]
	}
	return Command{
		Name: strings.ToLower(name),
		Args: strings.TrimSpace(args),
		Raw:  raw,
	}, true
}

// Fields splits the argument text on whitespace.
func (c Command) Fields() []string {
	return strings.Fields(c.Args)
}

// IsQuitCommand reports whether text is a bare quit, the signal to end a session.
func IsQuitCommand(text string) bool {
	cmd, ok := ParseCommand(strings.TrimSpace(text))
	if !ok || cmd.Args != "" {
		return false
	}
	return cmd.Name == CmdQuit || cmd.Name == CmdQuitShort
}

// FormatLine builds the wire line "<sender>><payload>".
func FormatLine(sender, payload string) string {
	return sender + ">" + payload
}

// ParseLine splits a wire line at the first '>'. Lines without a separator are rejected.
func ParseLine(line string) (sender, payload string, ok bool) {
	return strings.Cut(line, ">")
}

func firstToken(s string) (head, rest string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}
