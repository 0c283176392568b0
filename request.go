package relay

import "github.com/cockroachdb/errors"

// Request carries model selection and generation parameters.
// The provider uses its own defaults when fields are zero/nil.
type Request struct {
	Model        string // model ID, provider-specific; empty = provider default
	SystemPrompt string
	Messages     []Message
	Tools        []Tool
	MaxTokens    int      // 0 = provider default
	Temperature  *float64 // nil = provider default
	Think        *bool    // nil = provider default
}

// Validate checks universal constraints on Request.
// Provider implementations may apply additional provider-specific validation.
func (r Request) Validate() error {
	if r.Temperature != nil {
		if *r.Temperature < 0 || *r.Temperature > 2 {
			return errors.Wrapf(ErrValidation, "temperature must be in [0, 2], got %g", *r.Temperature)
		}
	}
	if r.MaxTokens < 0 {
		return errors.Wrapf(ErrValidation, "max_tokens must be non-negative, got %d", r.MaxTokens)
	}
	for i, t := range r.Tools {
		if t.Name == "" {
			return errors.Wrapf(ErrValidation, "tool %d has no name", i)
		}
	}
	return nil
}
