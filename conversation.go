package relay

import "time"

// Conversation is the message history of a single user turn. It is owned by
// one agent loop for the lifetime of the turn.
type Conversation struct {
	ID           string
	Messages     []Message
	SystemPrompt string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Pending returns the tool calls that have no matching tool result yet, in
// the order they were requested. A conversation is complete only when
// Pending is empty.
func (c *Conversation) Pending() []ToolCallBlock {
	resolved := make(map[string]bool)
	for _, msg := range c.Messages {
		if trm, ok := msg.(ToolResultMessage); ok {
			resolved[trm.ToolCallID] = true
		}
	}
	var pending []ToolCallBlock
	for _, msg := range c.Messages {
		am, ok := msg.(AssistantMessage)
		if !ok {
			continue
		}
		for _, tc := range am.ToolCalls() {
			if !resolved[tc.ID] {
				pending = append(pending, tc)
			}
		}
	}
	return pending
}

// LastAssistant returns the most recent assistant message, if any.
func (c *Conversation) LastAssistant() (AssistantMessage, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if am, ok := c.Messages[i].(AssistantMessage); ok {
			return am, true
		}
	}
	return AssistantMessage{}, false
}
