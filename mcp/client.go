package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Interface compliance checks.
var (
	_ relay.ToolCatalog  = (*Client)(nil)
	_ relay.ToolExecutor = (*Client)(nil)
)

// Client is a connected MCP session to a tool host.
type Client struct {
	session *mcpsdk.ClientSession

	mu    sync.Mutex
	known map[string]bool // nil until the catalog has been listed
}

// ClientOption configures Dial.
type ClientOption func(*dialConfig)

type dialConfig struct {
	httpClient *http.Client
	name       string
	version    string
}

// WithHTTPClient sets the HTTP client used for the session.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(d *dialConfig) { d.httpClient = c }
}

// WithClientImplementation sets the client name and version reported on initialize.
func WithClientImplementation(name, version string) ClientOption {
	return func(d *dialConfig) {
		d.name = name
		d.version = version
	}
}

// Dial opens a streamable HTTP session to endpoint. Failure to establish the
// session is marked relay.ErrConnection.
func Dial(ctx context.Context, endpoint string, opts ...ClientOption) (*Client, error) {
	cfg := dialConfig{httpClient: http.DefaultClient, name: "relay", version: "dev"}
	for _, opt := range opts {
		opt(&cfg)
	}
	impl := mcpsdk.NewClient(&mcpsdk.Implementation{Name: cfg.name, Version: cfg.version}, nil)
	transport := &mcpsdk.StreamableClientTransport{Endpoint: endpoint, HTTPClient: cfg.httpClient}
	session, err := impl.Connect(ctx, transport, nil)
	if err != nil {
		return nil, markTransport(errors.Wrapf(err, "connect %s", endpoint))
	}
	return &Client{session: session}, nil
}

// ListTools fetches the full tool catalog, following pagination.
func (c *Client) ListTools(ctx context.Context) ([]relay.Tool, error) {
	var tools []relay.Tool
	for t, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, markTransport(errors.Wrap(err, "list tools"))
		}
		params, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, errors.Wrapf(err, "tool %s: encode schema", t.Name)
		}
		tools = append(tools, relay.Tool{Name: t.Name, Description: t.Description, Parameters: params})
	}

	known := make(map[string]bool, len(tools))
	for _, t := range tools {
		known[t.Name] = true
	}
	c.mu.Lock()
	c.known = known
	c.mu.Unlock()
	return tools, nil
}

// Execute calls a tool. Names missing from the catalog are answered locally
// with an unknown tool result. Failures to reach the tool host are returned
// as errors marked relay.ErrConnection.
func (c *Client) Execute(ctx context.Context, name string, args json.RawMessage) (*relay.ToolResult, error) {
	known, err := c.isKnown(ctx, name)
	if err != nil {
		return nil, err
	}
	if !known {
		return relay.ErrorResult(errors.Wrapf(relay.ErrUnknownTool, "%s", name).Error()), nil
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	res, err := c.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, markTransport(errors.Wrapf(err, "call %s", name))
	}
	return convertResult(res), nil
}

// Close ends the session.
func (c *Client) Close() error {
	return c.session.Close()
}

func (c *Client) isKnown(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	known := c.known
	c.mu.Unlock()
	if known == nil {
		if _, err := c.ListTools(ctx); err != nil {
			return false, err
		}
		c.mu.Lock()
		known = c.known
		c.mu.Unlock()
	}
	return known[name], nil
}

func convertResult(res *mcpsdk.CallToolResult) *relay.ToolResult {
	out := &relay.ToolResult{IsError: res.IsError, Structured: res.StructuredContent}
	for _, content := range res.Content {
		switch ct := content.(type) {
		case *mcpsdk.TextContent:
			out.Content = append(out.Content, relay.TextBlock{Text: ct.Text})
		default:
			out.Content = append(out.Content, relay.TextBlock{Text: "[unsupported content]"})
		}
	}
	return out
}

// markTransport classifies a session error. Context errors pass through so the
// caller can tell cancellation and deadlines apart; everything else means the
// tool host could not serve the request.
func markTransport(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Mark(err, relay.ErrConnection)
}
