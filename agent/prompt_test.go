package agent_test

import (
	"testing"
	"time"

	"github.com/fwojciec/relay/agent"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestSystemPrompt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.October, 18, 14, 30, 5, 0, time.UTC)

	t.Run("embeds current date and time", func(t *testing.T) {
		t.Parallel()
		got := agent.SystemPrompt(now, language.English)
		assert.Contains(t, got, "Current date/time: Sunday, October 18, 2026 02:30:05 PM UTC (+0000)")
	})

	t.Run("default fallback is English", func(t *testing.T) {
		t.Parallel()
		got := agent.SystemPrompt(now, language.English)
		assert.Contains(t, got, "Reply in the user's language if it is clear from the input; otherwise default to English.")
	})

	t.Run("configured fallback language", func(t *testing.T) {
		t.Parallel()
		got := agent.SystemPrompt(now, language.MustParse("fr-CA"))
		assert.Contains(t, got, "otherwise default to French.")
	})

	t.Run("mentions tool policy", func(t *testing.T) {
		t.Parallel()
		got := agent.SystemPrompt(now, language.English)
		assert.Contains(t, got, "Tool use policy:")
		assert.Contains(t, got, "Never invent tool results.")
	})
}

func TestLanguageName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag  string
		want string
	}{
		{"en", "English"},
		{"en-GB", "English"},
		{"de", "German"},
		{"pl", "Polish"},
		{"ja", "Japanese"},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, agent.LanguageName(language.MustParse(tt.tag)))
		})
	}
}
