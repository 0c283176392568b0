// Package ollama implements [relay.Provider] for an Ollama model server.
//
// It wraps the github.com/ollama/ollama/api client. The SDK streams chat
// responses through a callback; the callback is adapted to an iter.Seq2 and
// pulled on demand to satisfy the pull-based [relay.Stream] interface.
package ollama

const (
	defaultModel      = "qwen3:30b"
	defaultNumPredict = 4096
)
