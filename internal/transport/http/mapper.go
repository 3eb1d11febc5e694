package http

import (
	"encoding/json"
	"strings"

	"github.com/vovakirdan/chatr/internal/core"
	"github.com/vovakirdan/chatr/internal/proto"
)

func inboundToText(inbound proto.Inbound) (string, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeMsg:
		var msg proto.MsgData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return "", nil, err
		}
		if strings.TrimSpace(msg.Text) == "" {
			return "", &proto.Error{Code: core.ErrCodeBadRequest, Msg: "text is required"}, nil
		}
		return msg.Text, nil, nil
	default:
		return "", &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	data := proto.DisplayEvent{
		Channel: event.Channel,
		User:    event.User,
		Text:    event.Text,
		Color:   string(event.Color),
		Notify:  event.Notify,
		Kind:    event.Kind.String(),
	}
	if event.Error != nil {
		data.Code = event.Error.Code
	}
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventDisplay,
		Data:  data,
	}
}

func summaryOf(ch, active *core.Channel) proto.ChannelSummary {
	s := ch.Settings()
	return proto.ChannelSummary{
		Name:        s.ChannelName,
		DisplayName: s.DisplayName,
		MulticastIP: s.MulticastIP,
		Port:        s.Port,
		Connected:   ch.IsConnected(),
		Active:      ch == active,
	}
}
