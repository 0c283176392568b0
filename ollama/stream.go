package ollama

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
)

// stream implements [relay.Stream] over the chunks of a streaming chat call.
// One chunk can carry thinking, text and several tool calls, so decoded
// events are queued and handed out one per Next call.
type stream struct {
	ctx     context.Context
	pull    func() (api.ChatResponse, error, bool)
	stop    func()
	state   relay.StreamState
	pending []relay.Event
	blocks  []*blockState
	msg     relay.AssistantMessage
	done    bool
	err     error
}

// blockState tracks a content block being assembled.
type blockState struct {
	kind string // "text", "thinking" or "tool"
	buf  strings.Builder
	call relay.ToolCallBlock
}

// Interface compliance check.
var _ relay.Stream = (*stream)(nil)

func newStream(ctx context.Context, seq iter.Seq2[api.ChatResponse, error]) *stream {
	next, stop := iter.Pull2(seq)
	return &stream{
		ctx:   ctx,
		pull:  next,
		stop:  stop,
		state: relay.StreamStateNew,
	}
}

// Next returns the next semantic event. Returns io.EOF once the final chunk
// has been consumed.
func (s *stream) Next() (relay.Event, error) {
	switch s.state {
	case relay.StreamStateComplete:
		return nil, io.EOF
	case relay.StreamStateError:
		return nil, s.err
	case relay.StreamStateClosed:
		return nil, relay.ErrStreamClosed
	}

	for {
		if len(s.pending) > 0 {
			evt := s.pending[0]
			s.pending = s.pending[1:]
			return evt, nil
		}
		if s.done {
			s.state = relay.StreamStateComplete
			s.stop()
			return nil, io.EOF
		}

		resp, err, ok := s.pull()
		if !ok {
			s.terminate(errors.New("ollama: unexpected end of stream"))
			return nil, s.err
		}
		if err != nil {
			s.terminate(relay.MarkConnection(errors.Wrap(err, "ollama")))
			return nil, s.err
		}
		s.state = relay.StreamStateStreaming
		s.process(resp)
	}
}

func (s *stream) process(resp api.ChatResponse) {
	if resp.Message.Thinking != "" {
		idx := s.appendDelta("thinking", resp.Message.Thinking)
		s.pending = append(s.pending, relay.EventThinkingDelta{Index: idx, Delta: resp.Message.Thinking})
	}
	if resp.Message.Content != "" {
		idx := s.appendDelta("text", resp.Message.Content)
		s.pending = append(s.pending, relay.EventTextDelta{Index: idx, Delta: resp.Message.Content})
	}
	for _, tc := range resp.Message.ToolCalls {
		args, err := json.Marshal(tc.Function.Arguments)
		if err != nil || string(args) == "null" {
			args = json.RawMessage(`{}`)
		}
		call := relay.ToolCallBlock{
			ID:        uuid.NewString(),
			Name:      tc.Function.Name,
			Arguments: args,
		}
		s.blocks = append(s.blocks, &blockState{kind: "tool", call: call})
		s.pending = append(s.pending,
			relay.EventToolCallBegin{ID: call.ID, Name: call.Name},
			relay.EventToolCallDelta{ID: call.ID, Delta: string(args)},
			relay.EventToolCallEnd{Call: call},
		)
	}
	if resp.Done {
		s.done = true
		s.finish(resp)
	}
}

// appendDelta extends the trailing block of the same kind or starts a new
// one, returning the block index.
func (s *stream) appendDelta(kind, delta string) int {
	if n := len(s.blocks); n > 0 && s.blocks[n-1].kind == kind {
		s.blocks[n-1].buf.WriteString(delta)
		return n - 1
	}
	b := &blockState{kind: kind}
	b.buf.WriteString(delta)
	s.blocks = append(s.blocks, b)
	return len(s.blocks) - 1
}

func (s *stream) finish(resp api.ChatResponse) {
	s.msg.Usage = relay.Usage{
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
	}
	s.msg.RawStopReason = resp.DoneReason
	s.msg.Timestamp = resp.CreatedAt
	if s.msg.Timestamp.IsZero() {
		s.msg.Timestamp = time.Now()
	}
	hasCalls := false
	for _, b := range s.blocks {
		if b.kind == "tool" {
			hasCalls = true
		}
	}
	switch {
	case hasCalls:
		s.msg.StopReason = relay.StopToolUse
	case resp.DoneReason == "stop" || resp.DoneReason == "":
		s.msg.StopReason = relay.StopEndTurn
	case resp.DoneReason == "length":
		s.msg.StopReason = relay.StopLength
	default:
		s.msg.StopReason = relay.StopUnknown
	}
}

// terminate records a terminal error and sets the appropriate stop reason.
func (s *stream) terminate(err error) {
	s.state = relay.StreamStateError
	s.err = err
	if s.ctx.Err() != nil {
		s.msg.StopReason = relay.StopAborted
		s.msg.RawStopReason = "aborted"
	} else {
		s.msg.StopReason = relay.StopError
		s.msg.RawStopReason = "error"
	}
}

// State returns the current stream state.
func (s *stream) State() relay.StreamState {
	return s.state
}

// Message returns the assembled AssistantMessage.
func (s *stream) Message() (relay.AssistantMessage, error) {
	if s.state == relay.StreamStateNew {
		return relay.AssistantMessage{}, relay.ErrStreamNotReady
	}
	msg := s.msg
	msg.Content = make([]relay.ContentBlock, 0, len(s.blocks))
	for _, b := range s.blocks {
		switch b.kind {
		case "text":
			msg.Content = append(msg.Content, relay.TextBlock{Text: b.buf.String()})
		case "thinking":
			msg.Content = append(msg.Content, relay.ThinkingBlock{Thinking: b.buf.String()})
		case "tool":
			msg.Content = append(msg.Content, b.call)
		}
	}
	return msg, nil
}

// Close abandons the in-flight request.
func (s *stream) Close() error {
	if s.state != relay.StreamStateComplete && s.state != relay.StreamStateError {
		s.state = relay.StreamStateClosed
		s.msg.StopReason = relay.StopAborted
		s.msg.RawStopReason = "aborted"
	}
	s.stop()
	return nil
}
