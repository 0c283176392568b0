// Package mcp exposes a toolhost.Registry over the Model Context Protocol
// streamable HTTP transport and provides the matching client.
package mcp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay/toolhost"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

// DefaultPath is the path the MCP endpoint is served on.
const DefaultPath = "/mcp"

// HealthPath is the readiness endpoint served next to the MCP endpoint.
const HealthPath = "/health"

// Server serves the tools of a registry over MCP.
type Server struct {
	reg     *toolhost.Registry
	mux     *http.ServeMux
	tools   []string
	path    string
	name    string
	version string
	logger  zerolog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithPath sets the MCP endpoint path.
func WithPath(path string) ServerOption {
	return func(s *Server) { s.path = path }
}

// WithImplementation sets the server name and version reported on initialize.
func WithImplementation(name, version string) ServerOption {
	return func(s *Server) {
		s.name = name
		s.version = version
	}
}

// WithServerLogger sets the logger.
func WithServerLogger(l zerolog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer snapshots the registry's tools and returns an http.Handler
// serving them at the configured path plus GET /health.
func NewServer(ctx context.Context, reg *toolhost.Registry, opts ...ServerOption) (*Server, error) {
	s := &Server{
		reg:     reg,
		mux:     http.NewServeMux(),
		path:    DefaultPath,
		name:    "relay-toolhost",
		version: "dev",
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	tools, err := reg.ListTools(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list tools")
	}
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: s.name, Version: s.version}, nil)
	for _, t := range tools {
		var schema map[string]any
		if err := json.Unmarshal(t.Parameters, &schema); err != nil {
			return nil, errors.Wrapf(err, "tool %s: decode schema", t.Name)
		}
		server.AddTool(&mcpsdk.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		}, s.handler(t.Name))
		s.tools = append(s.tools, t.Name)
		s.logger.Debug().Str("tool", t.Name).Msg("tool exposed")
	}

	handler := mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return server }, nil)
	s.mux.Handle(s.path, handler)
	s.mux.HandleFunc("GET "+HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("OK"))
	})
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Path returns the MCP endpoint path.
func (s *Server) Path() string { return s.path }

// Tools returns the names of the exposed tools, sorted.
func (s *Server) Tools() []string { return append([]string(nil), s.tools...) }

// handler adapts a registry tool to the SDK. Registry errors are returned as
// IsError results so the calling model can see them and adapt.
func (s *Server) handler(name string) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		v, err := s.reg.Invoke(ctx, name, req.Params.Arguments)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		text, err := toolhost.ResultText(v)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return &mcpsdk.CallToolResult{
			Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
			StructuredContent: map[string]any{"result": v},
		}, nil
	}
}

func errorResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
		IsError: true,
	}
}
