package relay

import "github.com/cockroachdb/errors"

// ValidateMessage checks that a message's content blocks are valid for its role.
func ValidateMessage(msg Message) error {
	switch m := msg.(type) {
	case UserMessage:
		return validateBlocks(m.Content, m.Role(), allowText)
	case AssistantMessage:
		return validateBlocks(m.Content, m.Role(), allowText|allowThinking|allowToolCall)
	case ToolResultMessage:
		if m.ToolCallID == "" {
			return errors.Wrap(ErrValidation, "tool result has no tool call ID")
		}
		return validateBlocks(m.Content, m.Role(), allowText)
	default:
		return errors.Wrapf(ErrValidation, "unknown message type %T", msg)
	}
}

type blockAllow uint8

const (
	allowText blockAllow = 1 << iota
	allowThinking
	allowToolCall
)

func validateBlocks(blocks []ContentBlock, role Role, allowed blockAllow) error {
	for _, b := range blocks {
		switch b.(type) {
		case TextBlock:
			if allowed&allowText == 0 {
				return errors.Wrapf(ErrValidation, "TextBlock not allowed in %s message", role)
			}
		case ThinkingBlock:
			if allowed&allowThinking == 0 {
				return errors.Wrapf(ErrValidation, "ThinkingBlock not allowed in %s message", role)
			}
		case ToolCallBlock:
			if allowed&allowToolCall == 0 {
				return errors.Wrapf(ErrValidation, "ToolCallBlock not allowed in %s message", role)
			}
		default:
			return errors.Wrapf(ErrValidation, "unknown content block type %T in %s message", b, role)
		}
	}
	return nil
}
