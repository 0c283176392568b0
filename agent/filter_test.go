package agent_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterTools(t *testing.T) {
	t.Parallel()

	tools := []relay.Tool{{Name: "add_numbers"}, {Name: "add_dates"}, {Name: "subtract"}}

	t.Run("empty patterns allow all", func(t *testing.T) {
		t.Parallel()
		got, err := agent.FilterTools(tools, nil)
		require.NoError(t, err)
		assert.Equal(t, tools, got)
	})

	t.Run("glob keeps matching tools in order", func(t *testing.T) {
		t.Parallel()
		got, err := agent.FilterTools(tools, []string{"add_*"})
		require.NoError(t, err)
		assert.Equal(t, []relay.Tool{{Name: "add_numbers"}, {Name: "add_dates"}}, got)
	})

	t.Run("any pattern matches once", func(t *testing.T) {
		t.Parallel()
		got, err := agent.FilterTools(tools, []string{"subtract", "*"})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("no matches", func(t *testing.T) {
		t.Parallel()
		got, err := agent.FilterTools(tools, []string{"multiply"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("invalid pattern", func(t *testing.T) {
		t.Parallel()
		_, err := agent.FilterTools(tools, []string{"add_["})
		require.Error(t, err)
		assert.True(t, errors.Is(err, relay.ErrValidation))
	})
}
