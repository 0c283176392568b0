package json

import (
	"encoding/base64"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
)

// contentBlock is the JSON representation of a ContentBlock with a type discriminator.
type contentBlock struct {
	Type      string           `json:"type"`
	Text      *string          `json:"text,omitempty"`
	Thinking  *string          `json:"thinking,omitempty"`
	Signature *string          `json:"signature,omitempty"`
	ID        *string          `json:"id,omitempty"`
	Name      *string          `json:"name,omitempty"`
	Arguments *json.RawMessage `json:"arguments,omitempty"`
}

func marshalContentBlocks(blocks []relay.ContentBlock) ([]contentBlock, error) {
	result := make([]contentBlock, len(blocks))
	for i, b := range blocks {
		cb, err := marshalContentBlock(b)
		if err != nil {
			return nil, errors.Wrapf(err, "content block %d", i)
		}
		result[i] = cb
	}
	return result, nil
}

func marshalContentBlock(b relay.ContentBlock) (contentBlock, error) {
	switch v := b.(type) {
	case relay.TextBlock:
		return contentBlock{Type: "text", Text: &v.Text}, nil
	case relay.ThinkingBlock:
		return contentBlock{Type: "thinking", Thinking: &v.Thinking, Signature: encodeSignature(v.Signature)}, nil
	case relay.ToolCallBlock:
		args := v.Arguments
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		return contentBlock{
			Type:      "tool_call",
			ID:        &v.ID,
			Name:      &v.Name,
			Arguments: &args,
			Signature: encodeSignature(v.Signature),
		}, nil
	default:
		return contentBlock{}, errors.Newf("unknown content block type: %T", b)
	}
}

func unmarshalContentBlocks(dtos []contentBlock) ([]relay.ContentBlock, error) {
	result := make([]relay.ContentBlock, len(dtos))
	for i, dto := range dtos {
		b, err := unmarshalContentBlock(dto)
		if err != nil {
			return nil, errors.Wrapf(err, "content block %d", i)
		}
		result[i] = b
	}
	return result, nil
}

func unmarshalContentBlock(dto contentBlock) (relay.ContentBlock, error) {
	switch dto.Type {
	case "text":
		return relay.TextBlock{Text: deref(dto.Text)}, nil
	case "thinking":
		sig, err := decodeSignature(dto.Signature)
		if err != nil {
			return nil, errors.Wrap(err, "decode thinking signature")
		}
		return relay.ThinkingBlock{Thinking: deref(dto.Thinking), Signature: sig}, nil
	case "tool_call":
		var args json.RawMessage
		if dto.Arguments != nil {
			args = *dto.Arguments
		}
		sig, err := decodeSignature(dto.Signature)
		if err != nil {
			return nil, errors.Wrap(err, "decode tool call signature")
		}
		return relay.ToolCallBlock{ID: deref(dto.ID), Name: deref(dto.Name), Arguments: args, Signature: sig}, nil
	default:
		return nil, errors.Newf("unknown content block type: %q", dto.Type)
	}
}

func encodeSignature(sig []byte) *string {
	if len(sig) == 0 {
		return nil
	}
	encoded := base64.StdEncoding.EncodeToString(sig)
	return &encoded
}

func decodeSignature(s *string) ([]byte, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(*s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
