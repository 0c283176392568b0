package json_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
	relayjson "github.com/fwojciec/relay/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addTurn() relay.Conversation {
	ts := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	return relay.Conversation{
		ID:           "conv-123",
		SystemPrompt: "You are helpful.",
		CreatedAt:    ts,
		UpdatedAt:    ts.Add(3 * time.Second),
		Messages: []relay.Message{
			relay.UserMessage{
				Content:   []relay.ContentBlock{relay.TextBlock{Text: "What is 12 + 30?"}},
				Timestamp: ts,
			},
			relay.AssistantMessage{
				Content: []relay.ContentBlock{
					relay.ThinkingBlock{Thinking: "Use the tool.", Signature: []byte("sig-1")},
					relay.ToolCallBlock{ID: "tc_1", Name: "add_numbers", Arguments: json.RawMessage(`{"num1":12,"num2":30}`)},
				},
				StopReason:    relay.StopToolUse,
				RawStopReason: "stop",
				Usage:         relay.Usage{InputTokens: 150, OutputTokens: 42},
				Timestamp:     ts.Add(time.Second),
			},
			relay.ToolResultMessage{
				ToolCallID: "tc_1",
				ToolName:   "add_numbers",
				Content:    []relay.ContentBlock{relay.TextBlock{Text: "42"}},
				Timestamp:  ts.Add(2 * time.Second),
			},
			relay.AssistantMessage{
				Content:    []relay.ContentBlock{relay.TextBlock{Text: "The sum is 42."}},
				StopReason: relay.StopEndTurn,
				Timestamp:  ts.Add(3 * time.Second),
			},
		},
	}
}

func TestMarshalConversation_PreservesTurn(t *testing.T) {
	t.Parallel()

	conv := addTurn()
	data, err := relayjson.MarshalConversation(conv)
	require.NoError(t, err)

	got, err := relayjson.UnmarshalConversation(data)
	require.NoError(t, err)

	assert.Equal(t, conv.ID, got.ID)
	assert.Equal(t, conv.SystemPrompt, got.SystemPrompt)
	assert.True(t, conv.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, conv.UpdatedAt.Equal(got.UpdatedAt))
	require.Len(t, got.Messages, 4)

	am, ok := got.Messages[1].(relay.AssistantMessage)
	require.True(t, ok)
	assert.Equal(t, relay.ThinkingBlock{Thinking: "Use the tool.", Signature: []byte("sig-1")}, am.Content[0])
	tc := am.Content[1].(relay.ToolCallBlock)
	assert.Equal(t, "add_numbers", tc.Name)
	assert.JSONEq(t, `{"num1":12,"num2":30}`, string(tc.Arguments))
	assert.Equal(t, relay.StopToolUse, am.StopReason)
	assert.Equal(t, "stop", am.RawStopReason)
	assert.Equal(t, relay.Usage{InputTokens: 150, OutputTokens: 42}, am.Usage)

	trm, ok := got.Messages[2].(relay.ToolResultMessage)
	require.True(t, ok)
	assert.Equal(t, "tc_1", trm.ToolCallID)
	assert.False(t, trm.IsError)

	assert.Empty(t, got.Pending())
	final, ok := got.LastAssistant()
	require.True(t, ok)
	assert.Equal(t, "The sum is 42.", final.Text())
}

func TestMarshalConversation_WireFormat(t *testing.T) {
	t.Parallel()

	data, err := relayjson.MarshalConversation(addTurn())
	require.NoError(t, err)

	var env struct {
		Version      int    `json:"version"`
		ID           string `json:"id"`
		SystemPrompt string `json:"system_prompt"`
		Messages     []struct {
			Type       string           `json:"type"`
			StopReason *string          `json:"stop_reason"`
			ToolCallID *string          `json:"tool_call_id"`
			Content    []map[string]any `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(data, &env))

	assert.Equal(t, 1, env.Version)
	assert.Equal(t, "conv-123", env.ID)
	assert.Equal(t, "You are helpful.", env.SystemPrompt)

	types := make([]string, len(env.Messages))
	for i, m := range env.Messages {
		types[i] = m.Type
	}
	assert.Equal(t, []string{"user", "assistant", "tool_result", "assistant"}, types)

	assert.Nil(t, env.Messages[0].StopReason)
	require.NotNil(t, env.Messages[1].StopReason)
	assert.Equal(t, "tool_use", *env.Messages[1].StopReason)
	require.NotNil(t, env.Messages[2].ToolCallID)
	assert.Equal(t, "tc_1", *env.Messages[2].ToolCallID)

	thinking := env.Messages[1].Content[0]
	assert.Equal(t, "thinking", thinking["type"])
	assert.Equal(t, "c2lnLTE=", thinking["signature"])
	call := env.Messages[1].Content[1]
	assert.Equal(t, "tool_call", call["type"])
	assert.NotContains(t, call, "signature")
}

func TestMarshalConversation_EmptyArgumentsBecomeObject(t *testing.T) {
	t.Parallel()

	conv := relay.Conversation{Messages: []relay.Message{
		relay.AssistantMessage{Content: []relay.ContentBlock{relay.ToolCallBlock{ID: "tc_1", Name: "ping"}}},
	}}
	data, err := relayjson.MarshalConversation(conv)
	require.NoError(t, err)

	got, err := relayjson.UnmarshalConversation(data)
	require.NoError(t, err)
	tc := got.Messages[0].(relay.AssistantMessage).Content[0].(relay.ToolCallBlock)
	assert.JSONEq(t, `{}`, string(tc.Arguments))
}

func TestUnmarshalConversation_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"invalid json", `{`, "unmarshal envelope"},
		{"unsupported version", `{"version":2}`, "unsupported envelope version: 2"},
		{"unknown message type", `{"version":1,"messages":[{"type":"system","content":[]}]}`, `unknown message type: "system"`},
		{"unknown block type", `{"version":1,"messages":[{"type":"user","content":[{"type":"image"}]}]}`, `unknown content block type: "image"`},
		{"bad signature", `{"version":1,"messages":[{"type":"assistant","content":[{"type":"thinking","signature":"***"}]}]}`, "decode thinking signature"},
		{"tool result without call id", `{"version":1,"messages":[{"type":"tool_result","content":[]}]}`, "tool result has no tool call ID"},
		{"tool call in user message", `{"version":1,"messages":[{"type":"user","content":[{"type":"tool_call","name":"x"}]}]}`, "ToolCallBlock not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := relayjson.UnmarshalConversation([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("invalid messages are validation errors", func(t *testing.T) {
		t.Parallel()
		_, err := relayjson.UnmarshalConversation([]byte(`{"version":1,"messages":[{"type":"tool_result","content":[]}]}`))
		assert.True(t, errors.Is(err, relay.ErrValidation))
	})
}

func TestSave_And_Load(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "transcripts", "nested", "turn.json")

	conv := addTurn()
	require.NoError(t, relayjson.Save(path, conv))

	got, err := relayjson.Load(path)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	assert.Len(t, got.Messages, 4)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "turn.json", entries[0].Name())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSave_Overwrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "turn.json")
	first := addTurn()
	require.NoError(t, relayjson.Save(path, first))

	second := addTurn()
	second.ID = "conv-456"
	require.NoError(t, relayjson.Save(path, second))

	got, err := relayjson.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "conv-456", got.ID)
}

func TestLoad_NonexistentFile(t *testing.T) {
	t.Parallel()
	_, err := relayjson.Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
