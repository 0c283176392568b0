// Package mock provides test doubles for relay interfaces using function fields.
package mock

import (
	"context"

	"github.com/fwojciec/relay"
)

// Interface compliance check.
var _ relay.Provider = (*Provider)(nil)

// Provider is a test double for relay.Provider.
// Set StreamFn before calling Stream.
type Provider struct {
	StreamFn func(ctx context.Context, req relay.Request) (relay.Stream, error)
}

// Stream delegates to StreamFn.
func (p *Provider) Stream(ctx context.Context, req relay.Request) (relay.Stream, error) {
	return p.StreamFn(ctx, req)
}
