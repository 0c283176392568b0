package mock

import (
	"context"
	"encoding/json"

	"github.com/fwojciec/relay"
)

// Interface compliance checks.
var (
	_ relay.ToolExecutor = (*ToolExecutor)(nil)
	_ relay.ToolCatalog  = (*ToolCatalog)(nil)
)

// ToolExecutor is a test double for relay.ToolExecutor.
// Set ExecuteFn before calling Execute.
type ToolExecutor struct {
	ExecuteFn func(ctx context.Context, name string, args json.RawMessage) (*relay.ToolResult, error)
}

// Execute delegates to ExecuteFn.
func (e *ToolExecutor) Execute(ctx context.Context, name string, args json.RawMessage) (*relay.ToolResult, error) {
	return e.ExecuteFn(ctx, name, args)
}

// ToolCatalog is a test double for relay.ToolCatalog.
// Set ListToolsFn before calling ListTools.
type ToolCatalog struct {
	ListToolsFn func(ctx context.Context) ([]relay.Tool, error)
}

// ListTools delegates to ListToolsFn.
func (c *ToolCatalog) ListTools(ctx context.Context) ([]relay.Tool, error) {
	return c.ListToolsFn(ctx)
}
