package agent

import (
	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
)

// FilterTools returns the tools whose names match any of patterns, keeping
// their order. Patterns use doublestar syntax, e.g. "add_*". An empty pattern
// list allows every tool.
func FilterTools(tools []relay.Tool, patterns []string) ([]relay.Tool, error) {
	if len(patterns) == 0 {
		return tools, nil
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Wrapf(relay.ErrValidation, "invalid tool pattern %q", p)
		}
	}
	var kept []relay.Tool
	for _, t := range tools {
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, t.Name); ok {
				kept = append(kept, t)
				break
			}
		}
	}
	return kept, nil
}
