package relay

// Event is a sealed interface representing a streaming event.
// Events are purely semantic. Transport/protocol errors come from
// Next()'s error return, not from events.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// EventTextDelta represents a text content delta.
type EventTextDelta struct {
	Index int
	Delta string
}

func (EventTextDelta) event() {}

// EventThinkingDelta represents a thinking content delta.
type EventThinkingDelta struct {
	Index int
	Delta string
}

func (EventThinkingDelta) event() {}

// EventToolCallBegin signals the start of a tool call.
type EventToolCallBegin struct {
	ID   string
	Name string
}

func (EventToolCallBegin) event() {}

// EventToolCallDelta represents an argument delta for a tool call.
type EventToolCallDelta struct {
	ID    string
	Delta string
}

func (EventToolCallDelta) event() {}

// EventToolCallEnd signals the completion of a tool call with the assembled block.
type EventToolCallEnd struct {
	Call ToolCallBlock
}

func (EventToolCallEnd) event() {}

// EventToolResult carries the text of a resolved tool call. Emitted by the
// agent loop, not by providers.
type EventToolResult struct {
	ID       string
	ToolName string
	Content  string
	IsError  bool
}

func (EventToolResult) event() {}

// EventState reports a transition of the agent loop.
type EventState struct {
	From LoopState
	To   LoopState
	Err  error // set when To is StateFailed
}

func (EventState) event() {}

// EventDone is the last event of a successful run. Message is the final
// assistant message, which carries no tool calls.
type EventDone struct {
	Message AssistantMessage
}

func (EventDone) event() {}

// Interface compliance checks.
var (
	_ Event = EventTextDelta{}
	_ Event = EventThinkingDelta{}
	_ Event = EventToolCallBegin{}
	_ Event = EventToolCallDelta{}
	_ Event = EventToolCallEnd{}
	_ Event = EventToolResult{}
	_ Event = EventState{}
	_ Event = EventDone{}
)
