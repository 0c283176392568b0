package ollama_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/ollama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatServer answers /api/chat with the given NDJSON lines and sends the
// decoded request body on the returned channel.
func chatServer(t *testing.T, lines ...string) (*httptest.Server, <-chan map[string]any) {
	t.Helper()
	bodies := make(chan map[string]any, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			var got map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			bodies <- got
			w.Header().Set("Content-Type", "application/x-ndjson")
			for _, l := range lines {
				_, _ = io.WriteString(w, l+"\n")
			}
		case "/api/show":
			var req map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req["model"] != "qwen3:30b" {
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `{"error":"model not found"}`)
				return
			}
			_, _ = io.WriteString(w, `{"modelfile":"","details":{"family":"qwen3"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts, bodies
}

func drain(t *testing.T, s relay.Stream) []relay.Event {
	t.Helper()
	var events []relay.Event
	for {
		evt, err := s.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, evt)
	}
}

func TestClient_Stream_ToolCall(t *testing.T) {
	t.Parallel()

	ts, got := chatServer(t,
		`{"model":"qwen3:30b","message":{"role":"assistant","content":"","thinking":"I should add "},"done":false}`,
		`{"model":"qwen3:30b","message":{"role":"assistant","content":"","thinking":"the numbers."},"done":false}`,
		`{"model":"qwen3:30b","message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"add_numbers","arguments":{"num1":12,"num2":30}}}]},"done":false}`,
		`{"model":"qwen3:30b","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":120,"eval_count":32}`,
	)
	c, err := ollama.New(ts.URL, ollama.WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	temp := 0.8
	think := true
	s, err := c.Stream(context.Background(), relay.Request{
		SystemPrompt: "You are helpful.",
		Messages:     []relay.Message{relay.UserMessage{Content: []relay.ContentBlock{relay.TextBlock{Text: "What is 12 plus 30?"}}}},
		Tools: []relay.Tool{{
			Name:        "add_numbers",
			Description: "Add two numbers",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"num1":{"type":"number"},"num2":{"type":"number"}},"required":["num1","num2"]}`),
		}},
		Temperature: &temp,
		Think:       &think,
	})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, relay.StreamStateNew, s.State())

	events := drain(t, s)
	require.Len(t, events, 5)
	assert.Equal(t, relay.EventThinkingDelta{Index: 0, Delta: "I should add "}, events[0])
	assert.Equal(t, relay.EventThinkingDelta{Index: 0, Delta: "the numbers."}, events[1])
	begin, ok := events[2].(relay.EventToolCallBegin)
	require.True(t, ok)
	assert.Equal(t, "add_numbers", begin.Name)
	assert.NotEmpty(t, begin.ID)
	end, ok := events[4].(relay.EventToolCallEnd)
	require.True(t, ok)
	assert.Equal(t, begin.ID, end.Call.ID)
	assert.JSONEq(t, `{"num1":12,"num2":30}`, string(end.Call.Arguments))

	assert.Equal(t, relay.StreamStateComplete, s.State())
	msg, err := s.Message()
	require.NoError(t, err)
	assert.Equal(t, relay.StopToolUse, msg.StopReason)
	assert.Equal(t, relay.Usage{InputTokens: 120, OutputTokens: 32}, msg.Usage)
	require.Len(t, msg.Content, 2)
	assert.Equal(t, relay.ThinkingBlock{Thinking: "I should add the numbers."}, msg.Content[0])
	calls := msg.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, begin.ID, calls[0].ID)

	body := <-got
	assert.Equal(t, "qwen3:30b", body["model"])
	assert.Equal(t, true, body["stream"])
	assert.Equal(t, true, body["think"])
	opts, ok := body["options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.8, opts["temperature"])
	assert.Equal(t, float64(4096), opts["num_predict"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "What is 12 plus 30?", msgs[1].(map[string]any)["content"])
	tools, ok := body["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "add_numbers", fn["name"])
}

func TestClient_Stream_FinalAnswer(t *testing.T) {
	t.Parallel()

	ts, got := chatServer(t,
		`{"model":"m","message":{"role":"assistant","content":"The sum "},"done":false}`,
		`{"model":"m","message":{"role":"assistant","content":"is 42."},"done":false}`,
		`{"model":"m","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}`,
	)
	c, err := ollama.New(ts.URL, ollama.WithHTTPClient(ts.Client()), ollama.WithModel("m"), ollama.WithNumPredict(128))
	require.NoError(t, err)

	s, err := c.Stream(context.Background(), relay.Request{Messages: []relay.Message{
		relay.UserMessage{Content: []relay.ContentBlock{relay.TextBlock{Text: "add"}}},
		relay.AssistantMessage{Content: []relay.ContentBlock{
			relay.ThinkingBlock{Thinking: "adding"},
			relay.ToolCallBlock{ID: "tc_1", Name: "add_numbers", Arguments: json.RawMessage(`{"num1":12,"num2":30}`)},
		}},
		relay.ToolResultMessage{ToolCallID: "tc_1", ToolName: "add_numbers", Content: []relay.ContentBlock{relay.TextBlock{Text: "42"}}},
	}})
	require.NoError(t, err)
	defer s.Close()

	events := drain(t, s)
	assert.Equal(t, []relay.Event{
		relay.EventTextDelta{Index: 0, Delta: "The sum "},
		relay.EventTextDelta{Index: 0, Delta: "is 42."},
	}, events)
	msg, err := s.Message()
	require.NoError(t, err)
	assert.Equal(t, relay.StopEndTurn, msg.StopReason)
	assert.Equal(t, "The sum is 42.", msg.Text())
	assert.Empty(t, msg.ToolCalls())

	body := <-got
	assert.Equal(t, "m", body["model"])
	assert.NotContains(t, body, "think")
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 3)
	assistant := msgs[1].(map[string]any)
	assert.Equal(t, "assistant", assistant["role"])
	assert.Equal(t, "adding", assistant["thinking"])
	calls := assistant["tool_calls"].([]any)
	require.Len(t, calls, 1)
	tool := msgs[2].(map[string]any)
	assert.Equal(t, "tool", tool["role"])
	assert.Equal(t, "42", tool["content"])
	assert.Equal(t, "add_numbers", tool["tool_name"])
	assert.Equal(t, float64(128), body["options"].(map[string]any)["num_predict"])
}

func TestClient_Stream_Length(t *testing.T) {
	t.Parallel()

	ts, _ := chatServer(t,
		`{"model":"m","message":{"role":"assistant","content":"trunc"},"done":false}`,
		`{"model":"m","message":{"role":"assistant","content":""},"done":true,"done_reason":"length"}`,
	)
	c, err := ollama.New(ts.URL, ollama.WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	s, err := c.Stream(context.Background(), relay.Request{})
	require.NoError(t, err)
	defer s.Close()
	drain(t, s)
	msg, err := s.Message()
	require.NoError(t, err)
	assert.Equal(t, relay.StopLength, msg.StopReason)
}

func TestClient_Stream_Unreachable(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c, err := ollama.New(url)
	require.NoError(t, err)
	s, err := c.Stream(context.Background(), relay.Request{})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Next()
	require.Error(t, err)
	assert.True(t, errors.Is(err, relay.ErrConnection), "got %v", err)
	assert.Equal(t, relay.StreamStateError, s.State())
	msg, err := s.Message()
	require.NoError(t, err)
	assert.Equal(t, relay.StopError, msg.StopReason)
}

func TestClient_Stream_InvalidRequest(t *testing.T) {
	t.Parallel()

	c, err := ollama.New("http://localhost:11434")
	require.NoError(t, err)
	temp := 3.0
	_, err = c.Stream(context.Background(), relay.Request{Temperature: &temp})
	assert.True(t, errors.Is(err, relay.ErrValidation))
}

func TestStream_CloseBeforeNext(t *testing.T) {
	t.Parallel()

	ts, _ := chatServer(t, `{"model":"m","message":{"role":"assistant","content":"hi"},"done":true}`)
	c, err := ollama.New(ts.URL, ollama.WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	s, err := c.Stream(context.Background(), relay.Request{})
	require.NoError(t, err)

	_, err = s.Message()
	assert.True(t, errors.Is(err, relay.ErrStreamNotReady))

	require.NoError(t, s.Close())
	assert.Equal(t, relay.StreamStateClosed, s.State())
	_, err = s.Next()
	assert.True(t, errors.Is(err, relay.ErrStreamClosed))
}

func TestClient_Validate(t *testing.T) {
	t.Parallel()

	ts, _ := chatServer(t)

	c, err := ollama.New(ts.URL, ollama.WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	assert.NoError(t, c.Validate(context.Background()))

	c, err = ollama.New(ts.URL, ollama.WithHTTPClient(ts.Client()), ollama.WithModel("missing:1b"))
	require.NoError(t, err)
	err = c.Validate(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, relay.ErrConnection))
	assert.Contains(t, err.Error(), "missing:1b")
}

func TestNew_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := ollama.New("localhost")
	assert.True(t, errors.Is(err, relay.ErrValidation))
}

func TestConvertTools(t *testing.T) {
	t.Parallel()

	tools, err := ollama.ConvertTools([]relay.Tool{{
		Name:        "add_numbers",
		Description: "Add two numbers",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"num1":{"type":"number","description":"first"}},"required":["num1"]}`),
	}})
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "function", tools[0].Type)
	assert.Equal(t, "add_numbers", tools[0].Function.Name)
	assert.Equal(t, "object", tools[0].Function.Parameters.Type)
	assert.Equal(t, []string{"num1"}, tools[0].Function.Parameters.Required)

	none, err := ollama.ConvertTools(nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = ollama.ConvertTools([]relay.Tool{{Name: "bad", Parameters: json.RawMessage(`[`)}})
	assert.True(t, errors.Is(err, relay.ErrValidation))
}
