package gemini

import (
	"context"
	"iter"

	"github.com/fwojciec/relay"
	"google.golang.org/genai"
)

// NewStreamFromIter exposes stream construction over a fake iterator.
func NewStreamFromIter(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error]) relay.Stream {
	return newStream(ctx, seq)
}

// BuildConfig exposes request config construction.
func (c *Client) BuildConfig(req relay.Request) (*genai.GenerateContentConfig, error) {
	return c.buildConfig(req)
}
