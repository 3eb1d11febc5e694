package proto

import "encoding/json"

// Inbound is the envelope for messages coming from a control client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeMsg = "msg"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventDisplay = "display"
)

// MsgData is one line of user input, routed exactly like a console line.
type MsgData struct {
	Text string `json:"text"`
}

// Outbound is the envelope for messages sent to a control client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// DisplayEvent mirrors one entry of the display stream.
type DisplayEvent struct {
	Channel string `json:"channel,omitempty"`
	User    string `json:"user,omitempty"`
	Text    string `json:"text"`
	Color   string `json:"color,omitempty"`
	Notify  bool   `json:"notify"`
	Kind    string `json:"kind"`
	Code    string `json:"code,omitempty"`
}

// ChannelSummary describes a channel in API responses.
type ChannelSummary struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	MulticastIP string `json:"multicast_ip"`
	Port        int    `json:"port"`
	Connected   bool   `json:"connected"`
	Active      bool   `json:"active"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
