package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ relay.Provider = (*Client)(nil)

// Client implements [relay.Provider] for the Gemini API.
type Client struct {
	client          *genai.Client
	model           string
	maxOutputTokens int
}

type options struct {
	model           string
	maxOutputTokens int
	httpClient      *http.Client
	baseURL         string
}

// Option configures a [Client].
type Option func(*options)

// WithModel sets the default model. Default is gemini-2.5-flash.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithMaxOutputTokens sets the default generation limit. Non-positive
// values are ignored.
func WithMaxOutputTokens(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOutputTokens = n
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// New creates a [Client] authenticated with apiKey.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.Wrap(relay.ErrValidation, "gemini: api key not set")
	}
	o := options{model: defaultModel, maxOutputTokens: defaultMaxOutputTokens}
	for _, opt := range opts {
		opt(&o)
	}
	if o.model == "" {
		o.model = defaultModel
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  o.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: o.baseURL},
	})
	if err != nil {
		return nil, errors.Wrap(err, "gemini")
	}
	return &Client{client: gc, model: o.model, maxOutputTokens: o.maxOutputTokens}, nil
}

// Validate checks that the configured model exists.
func (c *Client) Validate(ctx context.Context) error {
	if _, err := c.client.Models.Get(ctx, c.model, nil); err != nil {
		return relay.MarkConnection(errors.Wrapf(err, "gemini: model %s", c.model))
	}
	return nil
}

// Stream sends a streaming generate request and returns a [relay.Stream]
// that emits semantic events.
func (c *Client) Stream(ctx context.Context, req relay.Request) (relay.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = c.model
	}
	contents, err := ConvertMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	config, err := c.buildConfig(req)
	if err != nil {
		return nil, err
	}
	return newStream(ctx, c.client.Models.GenerateContentStream(ctx, model, contents, config)), nil
}

func (c *Client) buildConfig(req relay.Request) (*genai.GenerateContentConfig, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxOutputTokens
	}
	tools, err := ConvertTools(req.Tools)
	if err != nil {
		return nil, err
	}
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
		Tools:           tools,
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		config.Temperature = &temp
	}
	if req.Think != nil && *req.Think {
		config.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}
	return config, nil
}

// ConvertMessages converts relay Messages to Gemini contents. Tool results
// travel as function responses keyed "output", or "error" when IsError.
// Exported for testing.
func ConvertMessages(msgs []relay.Message) ([]*genai.Content, error) {
	var result []*genai.Content
	for _, msg := range msgs {
		switch m := msg.(type) {
		case relay.UserMessage:
			result = append(result, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: joinBlocks(m.Content)}}})
		case relay.AssistantMessage:
			var parts []*genai.Part
			for _, b := range m.Content {
				switch bl := b.(type) {
				case relay.TextBlock:
					parts = append(parts, &genai.Part{Text: bl.Text})
				case relay.ThinkingBlock:
					parts = append(parts, &genai.Part{Text: bl.Thinking, Thought: true, ThoughtSignature: bl.Signature})
				case relay.ToolCallBlock:
					var args map[string]any
					if len(bl.Arguments) > 0 {
						if err := json.Unmarshal(bl.Arguments, &args); err != nil {
							return nil, errors.Wrapf(relay.ErrValidation, "gemini: tool call %s arguments: %v", bl.ID, err)
						}
					}
					parts = append(parts, &genai.Part{
						FunctionCall:     &genai.FunctionCall{ID: bl.ID, Name: bl.Name, Args: args},
						ThoughtSignature: bl.Signature,
					})
				}
			}
			result = append(result, &genai.Content{Role: "model", Parts: parts})
		case relay.ToolResultMessage:
			key := "output"
			if m.IsError {
				key = "error"
			}
			result = append(result, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       m.ToolCallID,
					Name:     m.ToolName,
					Response: map[string]any{key: joinBlocks(m.Content)},
				}}},
			})
		}
	}
	return result, nil
}

// ConvertTools converts relay Tools to a single Gemini tool of function
// declarations.
// Exported for testing.
func ConvertTools(tools []relay.Tool) ([]*genai.Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		decl := &genai.FunctionDeclaration{Name: t.Name, Description: t.Description}
		if len(t.Parameters) > 0 {
			var schema map[string]any
			if err := json.Unmarshal(t.Parameters, &schema); err != nil {
				return nil, errors.Wrapf(relay.ErrValidation, "gemini: tool %s schema: %v", t.Name, err)
			}
			decl.ParametersJsonSchema = schema
		}
		decls[i] = decl
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
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
