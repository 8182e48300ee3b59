package http

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/vovakirdan/ichat-server/internal/core"
	"github.com/vovakirdan/ichat-server/internal/proto"
)

// inboundMapper decodes and validates client frames.
type inboundMapper struct {
	validate   *validator.Validate
	maxContent int
}

func newInboundMapper(maxContent int) *inboundMapper {
	return &inboundMapper{validate: validator.New(), maxContent: maxContent}
}

// toCommand returns either a command or a protocol error to send back.
// Malformed frames never close the connection.
func (m *inboundMapper) toCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Event {
	case proto.InboundSendMessage:
		var data proto.SendMessageData
		if perr := m.decode(inbound.Data, &data); perr != nil {
			return nil, perr
		}
		if m.maxContent > 0 {
			if err := m.validate.Var(data.Content, fmt.Sprintf("max=%d", m.maxContent)); err != nil {
				return nil, badRequest(fmt.Sprintf("content exceeds %d characters", m.maxContent))
			}
		}
		return &core.Command{
			Kind:    core.CommandSendMessage,
			To:      data.To,
			Content: data.Content,
			Type:    data.Type,
		}, nil
	case proto.InboundTyping, proto.InboundStopTyping:
		var data proto.TypingData
		if perr := m.decode(inbound.Data, &data); perr != nil {
			return nil, perr
		}
		kind := core.CommandTyping
		if inbound.Event == proto.InboundStopTyping {
			kind = core.CommandStopTyping
		}
		return &core.Command{Kind: kind, To: data.To}, nil
	default:
		return nil, badRequest("unknown event")
	}
}

func (m *inboundMapper) decode(raw json.RawMessage, dst any) *proto.Error {
	if len(raw) == 0 {
		return badRequest("data is required")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return badRequest("malformed data")
	}
	if err := m.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return badRequest(fmt.Sprintf("invalid field %s", verrs[0].Field()))
		}
		return badRequest("invalid data")
	}
	return nil
}

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Message: msg}
}

func errorFrame(perr *proto.Error) proto.Outbound {
	return proto.Outbound{Event: proto.OutboundError, Data: perr}
}

func userRef(u core.UserRef) proto.UserRef {
	return proto.UserRef{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}

func messagePayload(m *core.Message) proto.MessagePayload {
	return proto.MessagePayload{
		ID:        m.ID,
		From:      userRef(m.From),
		To:        userRef(m.To),
		Content:   m.Content,
		Type:      m.Type,
		Read:      m.Read,
		CreatedAt: proto.FormatTime(m.CreatedAt),
	}
}

func profilePayload(p core.Profile) proto.ProfilePayload {
	return proto.ProfilePayload{
		ID:       p.ID,
		Username: p.Username,
		Email:    p.Email,
		Avatar:   p.Avatar,
		Status:   p.Status,
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	out := proto.Outbound{Event: event.Kind.String()}

	switch event.Kind {
	case core.EventReceiveMessage, core.EventMessageSent:
		if event.Message != nil {
			out.Data = messagePayload(event.Message)
		}
	case core.EventUserTyping, core.EventFriendOnline:
		out.Data = proto.PresencePayload{UserID: event.UserID, Username: event.Username}
	case core.EventUserStopTyping, core.EventFriendOffline:
		out.Data = proto.PresencePayload{UserID: event.UserID}
	case core.EventNewFriendRequest:
		if fr := event.FriendRequest; fr != nil {
			out.Data = proto.FriendRequestPayload{
				ID:        fr.ID,
				From:      profilePayload(fr.From),
				Status:    fr.Status,
				CreatedAt: proto.FormatTime(fr.CreatedAt),
			}
		}
	case core.EventFriendRequestAccepted:
		if event.Profile != nil {
			out.Data = profilePayload(*event.Profile)
		}
	case core.EventError:
		if event.Error == nil {
			return errorFrame(&proto.Error{Code: core.ErrCodeInternal, Message: "unknown error"})
		}
		out.Data = proto.Error{Code: event.Error.Code, Message: event.Error.Message}
	}
	return out
}
