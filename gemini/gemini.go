// Package gemini implements [relay.Provider] for the Google Gemini API.
//
// It wraps the google.golang.org/genai SDK. The SDK's streaming iterator is
// pulled on demand to satisfy the pull-based [relay.Stream] interface, the
// same way the ollama package adapts its callback stream.
package gemini

const (
	defaultModel           = "gemini-2.5-flash"
	defaultMaxOutputTokens = 4096
)
