package core

import (
	"fmt"
	"strings"

	"github.com/vovakirdan/chatr/internal/settings"
)

type helpEntry struct {
	usage string
	about string
}

var channelCommands = []helpEntry{
	{"/" + CmdHelp + " or /" + CmdHelpShort, "Provides this help documentation"},
	{"/" + CmdQuit + " or /" + CmdQuitShort, "Leave the channel"},
	{"/" + CmdUsers, "List users currently believed to be online"},
	{"/" + CmdPM + " [username] [message]", "Message ONLY the specified user. Does NOT tell you if the user is offline"},
	{"/" + CmdName + " [new name]", "Change your display name"},
	{"/" + CmdMulticast + " [IP address]", "Move to a different multicast group"},
	{"/" + CmdPort + " [port number]", "Move to a different port on the current multicast group"},
}

var hubCommands = []helpEntry{
	{"/" + CmdQuit + " [channel names...]", "Quit the named channels, or every channel and the application"},
	{"/" + CmdChannel + " [channel name]", "Switch the active channel"},
	{"/" + CmdAdd + " [flags]", "Add and connect a channel: -cn name -dn display -lip local IP -mip multicast IP -p port -pw label"},
	{"/" + CmdEdit + " [channel name] [flags]", "Replace a channel's settings, reconnecting it if connected"},
	{"/" + CmdRemove + " [channel name]", "Quit a channel and forget it"},
	{"/" + CmdList + " [all]", "List connected channels, or every channel"},
	{"/" + CmdInfo + " [channel name]", "Show a channel's settings"},
	{"/" + CmdConnect + " [channel names...]", "Connect the named channels, or every disconnected one"},
}

func channelHelp(s settings.ChannelSettings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are currently connected as %s at IP %s\n", s.DisplayName, s.ConnectionIP)
	b.WriteString("Command syntax and their function is listed below:\n\n")
	writeEntries(&b, channelCommands)
	return strings.TrimRight(b.String(), "\n")
}

func hubHelp(active *Channel) string {
	var b strings.Builder
	if active != nil {
		fmt.Fprintf(&b, "You are currently using channel %s as %s\n", active.Name(), active.DisplayName())
	} else {
		b.WriteString("No channel selected\n")
	}
	b.WriteString("Command syntax and their function is listed below:\n\n")
	writeEntries(&b, hubCommands)
	b.WriteString("\nChannel commands, sent to the active channel:\n\n")
	writeEntries(&b, channelCommands)
	return strings.TrimRight(b.String(), "\n")
}

func writeEntries(b *strings.Builder, entries []helpEntry) {
	for _, e := range entries {
		fmt.Fprintf(b, "%-36s %s\n", e.usage, e.about)
	}
}
