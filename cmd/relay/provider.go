package main

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/config"
	"github.com/fwojciec/relay/gemini"
	"github.com/fwojciec/relay/ollama"
)

// newProvider constructs the configured Model Host client. The model is
// checked for availability when cfg.Validate is set.
func newProvider(ctx context.Context, cfg config.ModelConfig, hc *http.Client) (relay.Provider, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		client, err := ollama.New(cfg.URL,
			ollama.WithModel(cfg.ModelName()),
			ollama.WithNumPredict(cfg.NumPredict),
			ollama.WithHTTPClient(hc),
		)
		if err != nil {
			return nil, err
		}
		if cfg.Validate {
			if err := client.Validate(ctx); err != nil {
				return nil, err
			}
		}
		return client, nil
	case config.ProviderGemini:
		client, err := gemini.New(ctx, cfg.APIKey,
			gemini.WithModel(cfg.ModelName()),
			gemini.WithMaxOutputTokens(cfg.NumPredict),
			gemini.WithHTTPClient(hc),
		)
		if err != nil {
			return nil, err
		}
		if cfg.Validate {
			if err := client.Validate(ctx); err != nil {
				return nil, err
			}
		}
		return client, nil
	default:
		return nil, errors.Newf("unknown provider %q: must be %q or %q", cfg.Provider, config.ProviderOllama, config.ProviderGemini)
	}
}
