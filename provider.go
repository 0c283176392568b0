package relay

import "context"

// Provider is a strategy pattern interface for model hosts.
//
// The Request is passed by value, so appending to its slices never grows the
// caller's. Elements are shared, and providers must not modify them.
type Provider interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}
