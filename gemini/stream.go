package gemini

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
	"google.golang.org/genai"
)

// stream implements [relay.Stream] over the chunks of a streaming generate
// call. One chunk can carry several parts, so decoded events are queued and
// handed out one per Next call.
type stream struct {
	ctx     context.Context
	pull    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	state   relay.StreamState
	pending []relay.Event
	blocks  []*blockState
	msg     relay.AssistantMessage
	reason  genai.FinishReason
	err     error
}

// blockState tracks a content block being assembled.
type blockState struct {
	kind      string // "text", "thinking" or "tool"
	buf       strings.Builder
	signature []byte
	call      relay.ToolCallBlock
}

// Interface compliance check.
var _ relay.Stream = (*stream)(nil)

func newStream(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error]) *stream {
	next, stop := iter.Pull2(seq)
	return &stream{
		ctx:   ctx,
		pull:  next,
		stop:  stop,
		state: relay.StreamStateNew,
	}
}

// Next returns the next semantic event. Returns io.EOF once the iterator is
// exhausted.
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

		resp, err, ok := s.pull()
		if !ok {
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				s.terminate(errors.Wrap(ctxErr, "gemini"))
				return nil, s.err
			}
			s.finish()
			return nil, io.EOF
		}
		if err != nil {
			s.terminate(relay.MarkConnection(errors.Wrap(err, "gemini")))
			return nil, s.err
		}
		s.state = relay.StreamStateStreaming
		if err := s.process(resp); err != nil {
			s.terminate(err)
			return nil, s.err
		}
	}
}

func (s *stream) process(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return nil
	}
	if u := resp.UsageMetadata; u != nil {
		s.msg.Usage = relay.Usage{InputTokens: int(u.PromptTokenCount), OutputTokens: int(u.CandidatesTokenCount)}
	}
	if len(resp.Candidates) == 0 {
		if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != "" {
			return errors.Newf("gemini: prompt blocked: %s", pf.BlockReason)
		}
		return nil
	}
	cand := resp.Candidates[0]
	if cand.FinishReason != "" {
		s.reason = cand.FinishReason
	}
	if cand.Content == nil {
		return nil
	}
	for _, part := range cand.Content.Parts {
		if part == nil {
			continue
		}
		switch {
		case part.FunctionCall != nil:
			if err := s.addCall(part); err != nil {
				return err
			}
		case part.Thought:
			idx := s.appendDelta("thinking", part.Text)
			if part.ThoughtSignature != nil {
				s.blocks[idx].signature = part.ThoughtSignature
			}
			if part.Text != "" {
				s.pending = append(s.pending, relay.EventThinkingDelta{Index: idx, Delta: part.Text})
			}
		case part.Text != "":
			idx := s.appendDelta("text", part.Text)
			s.pending = append(s.pending, relay.EventTextDelta{Index: idx, Delta: part.Text})
		}
	}
	return nil
}

// addCall records a function call. Gemini omits call IDs on some models, so
// a missing ID is generated to correlate the tool result.
func (s *stream) addCall(part *genai.Part) error {
	fc := part.FunctionCall
	args := json.RawMessage(`{}`)
	if len(fc.Args) > 0 {
		b, err := json.Marshal(fc.Args)
		if err != nil {
			return errors.Wrapf(err, "gemini: tool call %s arguments", fc.Name)
		}
		args = b
	}
	id := fc.ID
	if id == "" {
		id = uuid.NewString()
	}
	call := relay.ToolCallBlock{ID: id, Name: fc.Name, Arguments: args, Signature: part.ThoughtSignature}
	s.blocks = append(s.blocks, &blockState{kind: "tool", call: call})
	s.pending = append(s.pending,
		relay.EventToolCallBegin{ID: call.ID, Name: call.Name},
		relay.EventToolCallDelta{ID: call.ID, Delta: string(args)},
		relay.EventToolCallEnd{Call: call},
	)
	return nil
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

func (s *stream) finish() {
	s.state = relay.StreamStateComplete
	s.stop()
	s.msg.Timestamp = time.Now()
	s.msg.RawStopReason = string(s.reason)
	hasCalls := false
	for _, b := range s.blocks {
		if b.kind == "tool" {
			hasCalls = true
		}
	}
	switch {
	case hasCalls:
		s.msg.StopReason = relay.StopToolUse
	case s.reason == "" || s.reason == genai.FinishReasonStop:
		s.msg.StopReason = relay.StopEndTurn
	case s.reason == genai.FinishReasonMaxTokens:
		s.msg.StopReason = relay.StopLength
	default:
		s.msg.StopReason = relay.StopUnknown
	}
}

// terminate records a terminal error and sets the appropriate stop reason.
func (s *stream) terminate(err error) {
	s.state = relay.StreamStateError
	s.err = err
	s.pending = nil
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
			msg.Content = append(msg.Content, relay.ThinkingBlock{Thinking: b.buf.String(), Signature: b.signature})
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
