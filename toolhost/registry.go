// Package toolhost implements the tool host: a data-driven catalog of tools
// with JSON schema validated arguments.
package toolhost

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// Interface compliance checks.
var (
	_ relay.ToolCatalog  = (*Registry)(nil)
	_ relay.ToolExecutor = (*Registry)(nil)
)

// Handler computes a tool's result from validated arguments.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

type entry struct {
	tool    relay.Tool
	schema  *gojsonschema.Schema
	handler Handler
}

// Registry maps tool names to descriptors and handlers. It is safe for
// concurrent use; the set of tools only grows.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	logger  zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for invocation records.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]entry),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. It fails when the name is empty or taken, or when
// the parameter schema does not compile. A failed registration leaves the
// registry unchanged.
func (r *Registry) Register(tool relay.Tool, h Handler) error {
	if tool.Name == "" {
		return errors.Wrap(relay.ErrValidation, "tool name is empty")
	}
	if h == nil {
		return errors.Wrapf(relay.ErrValidation, "tool %s has no handler", tool.Name)
	}
	params := tool.Parameters
	if len(params) == 0 {
		params = json.RawMessage(`{"type":"object"}`)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(params))
	if err != nil {
		return errors.Wrapf(relay.ErrValidation, "tool %s: invalid parameter schema: %v", tool.Name, err)
	}
	tool.Parameters = slices.Clone(params)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[tool.Name]; ok {
		return errors.Wrapf(relay.ErrDuplicateTool, "%s", tool.Name)
	}
	r.entries[tool.Name] = entry{tool: tool, schema: schema, handler: h}
	return nil
}

// ListTools returns every registered tool sorted by name.
func (r *Registry) ListTools(_ context.Context) ([]relay.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]relay.Tool, 0, len(r.entries))
	for _, e := range r.entries {
		t := e.tool
		t.Parameters = slices.Clone(t.Parameters)
		tools = append(tools, t)
	}
	slices.SortFunc(tools, func(a, b relay.Tool) int { return strings.Compare(a.Name, b.Name) })
	return tools, nil
}

// Invoke validates args against the tool's schema and runs its handler.
// Errors are marked ErrUnknownTool, ErrSchemaMismatch (as *relay.SchemaError)
// or ErrHandler.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (result any, err error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(relay.ErrUnknownTool, "%s", name)
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	start := time.Now()
	defer func() {
		evt := r.logger.Info()
		if err != nil {
			evt = r.logger.Warn().Err(err)
		}
		if json.Valid(args) {
			evt = evt.RawJSON("args", args)
		} else {
			evt = evt.Bytes("args", args)
		}
		evt.Str("tool", name).
			Interface("result", result).
			Dur("duration", time.Since(start)).
			Msg("tool invoked")
	}()

	if err := validate(name, e.schema, args); err != nil {
		return nil, err
	}
	return runHandler(ctx, name, e.handler, args)
}

// Execute adapts Invoke to relay.ToolExecutor. Tool-level failures become
// IsError results; the returned error is reserved for infrastructure failures,
// which an in-process registry has none of.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (*relay.ToolResult, error) {
	v, err := r.Invoke(ctx, name, args)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return relay.ErrorResult(err.Error()), nil
	}
	text, err := ResultText(v)
	if err != nil {
		return relay.ErrorResult(err.Error()), nil
	}
	res := relay.TextResult(text)
	res.Structured = map[string]any{"result": v}
	return res, nil
}

// ResultText renders a handler result for the model. Strings pass through,
// everything else is JSON encoded.
func ResultText(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(relay.ErrHandler, err.Error())
	}
	return string(b), nil
}

func validate(name string, schema *gojsonschema.Schema, args json.RawMessage) error {
	res, err := schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		// Arguments that are not JSON at all.
		return &relay.SchemaError{Tool: name, Fields: []relay.FieldError{{Field: "(root)", Description: err.Error()}}}
	}
	if res.Valid() {
		return nil
	}
	se := &relay.SchemaError{Tool: name}
	for _, re := range res.Errors() {
		se.Fields = append(se.Fields, relay.FieldError{Field: re.Field(), Description: re.Description()})
	}
	return se
}

func runHandler(ctx context.Context, name string, h Handler, args json.RawMessage) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = errors.Wrapf(relay.ErrHandler, "%s: panic: %v", name, p)
		}
	}()
	v, err := h(ctx, args)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "%s", name), relay.ErrHandler)
	}
	return v, nil
}
