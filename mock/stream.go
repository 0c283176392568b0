package mock

import (
	"io"

	"github.com/fwojciec/relay"
)

// Interface compliance check.
var _ relay.Stream = (*Stream)(nil)

// Stream is a test double for relay.Stream.
// Set the function fields for the methods you need. NextFn and MessageFn
// panic when nil to catch missing setup. CloseFn and StateFn are nil-safe
// (no-op and zero value) because test code commonly calls defer stream.Close()
// and these methods rarely need custom behavior.
type Stream struct {
	NextFn    func() (relay.Event, error)
	StateFn   func() relay.StreamState
	MessageFn func() (relay.AssistantMessage, error)
	CloseFn   func() error
}

// Next delegates to NextFn.
func (s *Stream) Next() (relay.Event, error) {
	return s.NextFn()
}

// State delegates to StateFn. Returns StreamStateNew when StateFn is nil.
func (s *Stream) State() relay.StreamState {
	if s.StateFn == nil {
		return relay.StreamStateNew
	}
	return s.StateFn()
}

// Message delegates to MessageFn.
func (s *Stream) Message() (relay.AssistantMessage, error) {
	return s.MessageFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Stream) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}

// Reply returns a Stream that emits events in order, then io.EOF, and whose
// Message returns msg. It is the common shape of a scripted model response.
func Reply(msg relay.AssistantMessage, events ...relay.Event) *Stream {
	i := 0
	return &Stream{
		NextFn: func() (relay.Event, error) {
			if i >= len(events) {
				return nil, io.EOF
			}
			e := events[i]
			i++
			return e, nil
		},
		MessageFn: func() (relay.AssistantMessage, error) {
			return msg, nil
		},
	}
}
