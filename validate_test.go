package relay_test

import (
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
	"github.com/stretchr/testify/assert"
)

func TestValidateMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		msg     relay.Message
		wantErr bool
	}{
		{
			name: "user text",
			msg:  relay.UserMessage{Content: []relay.ContentBlock{relay.TextBlock{Text: "What is 12 plus 30?"}}},
		},
		{
			name:    "user tool call",
			msg:     relay.UserMessage{Content: []relay.ContentBlock{relay.ToolCallBlock{ID: "a"}}},
			wantErr: true,
		},
		{
			name:    "user thinking",
			msg:     relay.UserMessage{Content: []relay.ContentBlock{relay.ThinkingBlock{Thinking: "hmm"}}},
			wantErr: true,
		},
		{
			name: "assistant mixed",
			msg: relay.AssistantMessage{Content: []relay.ContentBlock{
				relay.ThinkingBlock{Thinking: "add"},
				relay.TextBlock{Text: "calling"},
				relay.ToolCallBlock{ID: "a", Name: "add_numbers", Arguments: json.RawMessage(`{"num1":12,"num2":30}`)},
			}},
		},
		{
			name: "tool result text",
			msg:  relay.ToolResultMessage{ToolCallID: "a", Content: []relay.ContentBlock{relay.TextBlock{Text: "42"}}},
		},
		{
			name:    "tool result without call ID",
			msg:     relay.ToolResultMessage{Content: []relay.ContentBlock{relay.TextBlock{Text: "42"}}},
			wantErr: true,
		},
		{
			name:    "tool result thinking",
			msg:     relay.ToolResultMessage{ToolCallID: "a", Content: []relay.ContentBlock{relay.ThinkingBlock{}}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := relay.ValidateMessage(tt.msg)
			if tt.wantErr {
				assert.True(t, errors.Is(err, relay.ErrValidation), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRequest_Validate(t *testing.T) {
	t.Parallel()

	temp := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		req     relay.Request
		wantErr bool
	}{
		{name: "zero value"},
		{name: "temperature in range", req: relay.Request{Temperature: temp(0.8)}},
		{name: "temperature too high", req: relay.Request{Temperature: temp(2.5)}, wantErr: true},
		{name: "temperature negative", req: relay.Request{Temperature: temp(-0.1)}, wantErr: true},
		{name: "negative max tokens", req: relay.Request{MaxTokens: -1}, wantErr: true},
		{name: "unnamed tool", req: relay.Request{Tools: []relay.Tool{{Description: "x"}}}, wantErr: true},
		{name: "named tool", req: relay.Request{Tools: []relay.Tool{{Name: "add_numbers"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.req.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, relay.ErrValidation), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
