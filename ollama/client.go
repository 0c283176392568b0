package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
	"github.com/ollama/ollama/api"
)

// Interface compliance check.
var _ relay.Provider = (*Client)(nil)

// Client implements [relay.Provider] for the Ollama chat API.
type Client struct {
	client     *api.Client
	httpClient *http.Client
	baseURL    *url.URL
	model      string
	numPredict int
}

// Option configures a [Client].
type Option func(*Client)

// WithModel sets the default model. Default is qwen3:30b.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithNumPredict sets the default maximum number of tokens to generate.
func WithNumPredict(n int) Option {
	return func(c *Client) { c.numPredict = n }
}

// New creates a [Client] for the Ollama server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(relay.ErrValidation, "ollama: model host url %q: %v", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Wrapf(relay.ErrValidation, "ollama: model host url %q: missing scheme or host", baseURL)
	}
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    u,
		model:      defaultModel,
		numPredict: defaultNumPredict,
	}
	for _, o := range opts {
		o(c)
	}
	c.client = api.NewClient(c.baseURL, c.httpClient)
	return c, nil
}

// Validate checks that the configured model is available on the server.
func (c *Client) Validate(ctx context.Context) error {
	if _, err := c.client.Show(ctx, &api.ShowRequest{Model: c.model}); err != nil {
		return relay.MarkConnection(errors.Wrapf(err, "ollama: model %s", c.model))
	}
	return nil
}

// Stream sends a streaming chat request and returns a [relay.Stream] that
// emits semantic events.
func (c *Client) Stream(ctx context.Context, req relay.Request) (relay.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	chatReq, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}
	seq := func(yield func(api.ChatResponse, error) bool) {
		stopped := false
		err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
			if !yield(resp, nil) {
				stopped = true
				return errStopped
			}
			return nil
		})
		if err != nil && !stopped {
			yield(api.ChatResponse{}, err)
		}
	}
	return newStream(ctx, seq), nil
}

var errStopped = errors.New("ollama: stream stopped by consumer")

func (c *Client) buildRequest(req relay.Request) (*api.ChatRequest, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	numPredict := req.MaxTokens
	if numPredict == 0 {
		numPredict = c.numPredict
	}

	messages, err := ConvertMessages(req.SystemPrompt, req.Messages)
	if err != nil {
		return nil, err
	}
	tools, err := ConvertTools(req.Tools)
	if err != nil {
		return nil, err
	}

	stream := true
	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Tools:    tools,
		Stream:   &stream,
		Options:  map[string]any{"num_predict": numPredict},
	}
	if req.Temperature != nil {
		chatReq.Options["temperature"] = *req.Temperature
	}
	if req.Think != nil {
		chatReq.Think = &api.ThinkValue{Value: *req.Think}
	}
	return chatReq, nil
}

// ConvertMessages converts relay Messages to Ollama chat messages, with the
// system prompt first.
// Exported for testing.
func ConvertMessages(systemPrompt string, msgs []relay.Message) ([]api.Message, error) {
	var result []api.Message
	if systemPrompt != "" {
		result = append(result, api.Message{Role: "system", Content: systemPrompt})
	}
	for _, msg := range msgs {
		switch m := msg.(type) {
		case relay.UserMessage:
			result = append(result, api.Message{Role: "user", Content: joinBlocks(m.Content)})
		case relay.AssistantMessage:
			am := api.Message{Role: "assistant", Content: m.Text()}
			for _, b := range m.Content {
				switch bl := b.(type) {
				case relay.ThinkingBlock:
					am.Thinking += bl.Thinking
				case relay.ToolCallBlock:
					var tc api.ToolCall
					tc.Function.Name = bl.Name
					if len(bl.Arguments) > 0 {
						if err := json.Unmarshal(bl.Arguments, &tc.Function.Arguments); err != nil {
							return nil, errors.Wrapf(relay.ErrValidation, "ollama: tool call %s arguments: %v", bl.ID, err)
						}
					}
					am.ToolCalls = append(am.ToolCalls, tc)
				}
			}
			result = append(result, am)
		case relay.ToolResultMessage:
			result = append(result, api.Message{
				Role:     "tool",
				Content:  joinBlocks(m.Content),
				ToolName: m.ToolName,
			})
		}
	}
	return result, nil
}

// ConvertTools converts relay Tools to Ollama function tools.
// Exported for testing.
func ConvertTools(tools []relay.Tool) (api.Tools, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	result := make(api.Tools, len(tools))
	for i, t := range tools {
		result[i].Type = "function"
		result[i].Function.Name = t.Name
		result[i].Function.Description = t.Description
		if len(t.Parameters) > 0 {
			if err := json.Unmarshal(t.Parameters, &result[i].Function.Parameters); err != nil {
				return nil, errors.Wrapf(relay.ErrValidation, "ollama: tool %s schema: %v", t.Name, err)
			}
		}
	}
	return result, nil
}

func joinBlocks(blocks []relay.ContentBlock) string {
	var sb strings.Builder
	for _, b := range blocks {
		if tb, ok := b.(relay.TextBlock); ok {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(tb.Text)
		}
	}
	return sb.String()
}
