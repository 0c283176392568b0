package json

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
)

// messageDTO is the JSON representation of a Message with a type discriminator.
type messageDTO struct {
	Type          string         `json:"type"`
	Content       []contentBlock `json:"content"`
	Timestamp     time.Time      `json:"timestamp"`
	StopReason    *string        `json:"stop_reason,omitempty"`
	RawStopReason *string        `json:"raw_stop_reason,omitempty"`
	Usage         *usageDTO      `json:"usage,omitempty"`
	ToolCallID    *string        `json:"tool_call_id,omitempty"`
	ToolName      *string        `json:"tool_name,omitempty"`
	IsError       *bool          `json:"is_error,omitempty"`
}

type usageDTO struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func marshalMessage(msg relay.Message) (messageDTO, error) {
	switch m := msg.(type) {
	case relay.UserMessage:
		blocks, err := marshalContentBlocks(m.Content)
		if err != nil {
			return messageDTO{}, err
		}
		return messageDTO{
			Type:      string(relay.RoleUser),
			Content:   blocks,
			Timestamp: m.Timestamp,
		}, nil
	case relay.AssistantMessage:
		blocks, err := marshalContentBlocks(m.Content)
		if err != nil {
			return messageDTO{}, err
		}
		sr := string(m.StopReason)
		dto := messageDTO{
			Type:       string(relay.RoleAssistant),
			Content:    blocks,
			Timestamp:  m.Timestamp,
			StopReason: &sr,
			Usage:      &usageDTO{InputTokens: m.Usage.InputTokens, OutputTokens: m.Usage.OutputTokens},
		}
		if m.RawStopReason != "" {
			dto.RawStopReason = &m.RawStopReason
		}
		return dto, nil
	case relay.ToolResultMessage:
		blocks, err := marshalContentBlocks(m.Content)
		if err != nil {
			return messageDTO{}, err
		}
		return messageDTO{
			Type:       string(relay.RoleToolResult),
			Content:    blocks,
			Timestamp:  m.Timestamp,
			ToolCallID: &m.ToolCallID,
			ToolName:   &m.ToolName,
			IsError:    &m.IsError,
		}, nil
	default:
		return messageDTO{}, errors.Newf("unknown message type: %T", msg)
	}
}

func unmarshalMessage(dto messageDTO) (relay.Message, error) {
	blocks, err := unmarshalContentBlocks(dto.Content)
	if err != nil {
		return nil, err
	}
	switch relay.Role(dto.Type) {
	case relay.RoleUser:
		return relay.UserMessage{
			Content:   blocks,
			Timestamp: dto.Timestamp,
		}, nil
	case relay.RoleAssistant:
		m := relay.AssistantMessage{
			Content:   blocks,
			Timestamp: dto.Timestamp,
		}
		if dto.StopReason != nil {
			m.StopReason = relay.StopReason(*dto.StopReason)
		}
		if dto.RawStopReason != nil {
			m.RawStopReason = *dto.RawStopReason
		}
		if dto.Usage != nil {
			m.Usage = relay.Usage{InputTokens: dto.Usage.InputTokens, OutputTokens: dto.Usage.OutputTokens}
		}
		return m, nil
	case relay.RoleToolResult:
		m := relay.ToolResultMessage{
			Content:   blocks,
			Timestamp: dto.Timestamp,
		}
		if dto.ToolCallID != nil {
			m.ToolCallID = *dto.ToolCallID
		}
		if dto.ToolName != nil {
			m.ToolName = *dto.ToolName
		}
		if dto.IsError != nil {
			m.IsError = *dto.IsError
		}
		return m, nil
	default:
		return nil, errors.Newf("unknown message type: %q", dto.Type)
	}
}
