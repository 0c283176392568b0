// Package agent orchestrates the conversation loop between a Provider and a ToolExecutor.
package agent

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

const (
	defaultMaxIterations   = 10
	defaultCallTimeout     = 2 * time.Minute
	defaultToolConcurrency = 4
)

// Loop orchestrates the conversation between a Provider and a ToolExecutor.
// It drives a turn through AWAITING_MODEL and AWAITING_TOOL until it reaches
// DONE or FAILED.
type Loop struct {
	provider      relay.Provider
	executor      relay.ToolExecutor
	maxIterations int
	callTimeout   time.Duration
	concurrency   int
	logger        zerolog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxIterations caps the number of tool-call rounds per turn. A model
// that still requests tools after n rounds fails the turn. Non-positive
// values are ignored.
func WithMaxIterations(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

// WithCallTimeout bounds every model call and every tool call. Non-positive
// values are ignored.
func WithCallTimeout(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.callTimeout = d
		}
	}
}

// WithToolConcurrency sets how many tool calls of one model response run at
// once. Non-positive values are ignored.
func WithToolConcurrency(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// New creates a new Loop with the given provider and tool executor.
func New(provider relay.Provider, executor relay.ToolExecutor, opts ...Option) *Loop {
	l := &Loop{
		provider:      provider,
		executor:      executor,
		maxIterations: defaultMaxIterations,
		callTimeout:   defaultCallTimeout,
		concurrency:   defaultToolConcurrency,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RunOption configures a single Run invocation.
type RunOption func(*runConfig)

type runConfig struct {
	onEvent     func(relay.Event)
	model       string
	temperature *float64
	think       *bool
	maxTokens   int
}

// WithEventHandler sets a callback that receives each event during the run:
// provider stream events, tool results, state transitions and the final
// EventDone. Calls are serialized. If nil or not set, events are discarded.
func WithEventHandler(h func(relay.Event)) RunOption {
	return func(c *runConfig) {
		c.onEvent = h
	}
}

// WithModel sets the model ID for provider requests during this run.
// Empty string means the provider uses its default model.
func WithModel(model string) RunOption {
	return func(c *runConfig) {
		c.model = model
	}
}

// WithTemperature sets the sampling temperature for this run.
func WithTemperature(t float64) RunOption {
	return func(c *runConfig) {
		c.temperature = &t
	}
}

// WithThink enables or disables the model's reasoning output for this run.
func WithThink(think bool) RunOption {
	return func(c *runConfig) {
		c.think = &think
	}
}

// WithMaxTokens sets the generation limit for each model call.
func WithMaxTokens(n int) RunOption {
	return func(c *runConfig) {
		c.maxTokens = n
	}
}

// run holds the mutable state of one Run.
type run struct {
	cfg   runConfig
	mu    sync.Mutex
	state relay.LoopState
}

func (r *run) emit(evt relay.Event) {
	if r.cfg.onEvent == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.onEvent(evt)
}

func (r *run) transition(to relay.LoopState, err error) {
	from := r.state
	r.state = to
	r.emit(relay.EventState{From: from, To: to, Err: err})
}

// Run executes the agent loop for one user turn. It sends the conversation to
// the provider, streams the response, executes any tool calls and repeats
// until the assistant answers without requesting tools. Messages are appended
// to conv only when a step completes, so a failed turn never leaves a tool
// request without its results. A nil error means the loop reached DONE.
func (l *Loop) Run(ctx context.Context, conv *relay.Conversation, tools []relay.Tool, opts ...RunOption) error {
	r := &run{state: relay.StateAwaitingModel}
	for _, opt := range opts {
		opt(&r.cfg)
	}

	fail := func(err error) error {
		r.transition(relay.StateFailed, err)
		l.logger.Debug().Err(err).Msg("turn failed")
		return err
	}

	rounds := 0
	for {
		msg, err := l.callModel(ctx, r, conv, tools)
		if err != nil {
			return fail(err)
		}

		calls := msg.ToolCalls()
		if len(calls) == 0 {
			conv.Messages = append(conv.Messages, msg)
			conv.UpdatedAt = time.Now()
			r.transition(relay.StateDone, nil)
			r.emit(relay.EventDone{Message: msg})
			return nil
		}
		if rounds >= l.maxIterations {
			return fail(errors.Wrapf(relay.ErrIterationLimit, "model requested tools after %d rounds", rounds))
		}
		rounds++
		conv.Messages = append(conv.Messages, msg)
		conv.UpdatedAt = time.Now()

		r.transition(relay.StateAwaitingTool, nil)
		l.logger.Debug().Int("round", rounds).Int("calls", len(calls)).Msg("dispatching tool calls")
		results, err := l.callTools(ctx, r, calls)
		if err != nil {
			// Drop the unanswered request so the conversation stays consistent.
			conv.Messages = conv.Messages[:len(conv.Messages)-1]
			return fail(err)
		}
		for _, res := range results {
			conv.Messages = append(conv.Messages, res)
		}
		conv.UpdatedAt = time.Now()
		r.transition(relay.StateAwaitingModel, nil)
	}
}

// callModel streams one model response, forwarding events as they arrive.
func (l *Loop) callModel(ctx context.Context, r *run, conv *relay.Conversation, tools []relay.Tool) (relay.AssistantMessage, error) {
	if err := ctx.Err(); err != nil {
		return relay.AssistantMessage{}, err
	}
	callCtx, cancel := context.WithTimeout(ctx, l.callTimeout)
	defer cancel()

	req := relay.Request{
		Model:        r.cfg.model,
		SystemPrompt: conv.SystemPrompt,
		Messages:     conv.Messages,
		Tools:        tools,
		MaxTokens:    r.cfg.maxTokens,
		Temperature:  r.cfg.temperature,
		Think:        r.cfg.think,
	}

	stream, err := l.provider.Stream(callCtx, req)
	if err != nil {
		return relay.AssistantMessage{}, l.classify(ctx, callCtx, err, "model call")
	}
	defer stream.Close()

	// Drain the stream, forwarding events to the handler.
	for {
		evt, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return relay.AssistantMessage{}, l.classify(ctx, callCtx, err, "model call")
		}
		r.emit(evt)
	}
	// Some providers end an interrupted stream with io.EOF and an aborted message.
	if err := callCtx.Err(); err != nil {
		return relay.AssistantMessage{}, l.classify(ctx, callCtx, err, "model call")
	}

	msg, err := stream.Message()
	if err != nil {
		return relay.AssistantMessage{}, err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return msg, nil
}

// callTools executes the calls of one model response concurrently and returns
// their results in request order once every call has finished.
func (l *Loop) callTools(ctx context.Context, r *run, calls []relay.ToolCallBlock) ([]relay.ToolResultMessage, error) {
	results := make([]relay.ToolResultMessage, len(calls))
	p := pool.New().
		WithContext(ctx).
		WithMaxGoroutines(l.concurrency).
		WithCancelOnError().
		WithFirstError()
	for i, tc := range calls {
		p.Go(func(ctx context.Context) error {
			res, err := l.callTool(ctx, tc)
			if err != nil {
				return err
			}
			results[i] = relay.ToolResultMessage{
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
				Content:    res.Content,
				IsError:    res.IsError,
				Timestamp:  time.Now(),
			}
			r.emit(relay.EventToolResult{
				ID:       tc.ID,
				ToolName: tc.Name,
				Content:  res.Text(),
				IsError:  res.IsError,
			})
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// callTool runs a single tool call under the call timeout. Tool-level errors
// are converted to error results for the model. Connection failures,
// timeouts and cancellation are returned as errors.
func (l *Loop) callTool(ctx context.Context, tc relay.ToolCallBlock) (*relay.ToolResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, l.callTimeout)
	defer cancel()

	start := time.Now()
	res, err := l.executor.Execute(callCtx, tc.Name, tc.Arguments)
	l.logger.Debug().
		Str("tool", tc.Name).
		Str("id", tc.ID).
		Dur("duration", time.Since(start)).
		Err(err).
		Msg("tool call finished")
	if err != nil {
		if ctx.Err() != nil || callCtx.Err() != nil || errors.Is(err, relay.ErrConnection) {
			return nil, l.classify(ctx, callCtx, err, "tool call "+tc.Name)
		}
		return relay.ErrorResult(err.Error()), nil
	}
	if res == nil {
		return relay.ErrorResult("tool returned no result"), nil
	}
	return res, nil
}

// classify marks err as a timeout when the per-call deadline, not the
// caller's context, ended the call.
func (l *Loop) classify(ctx, callCtx context.Context, err error, what string) error {
	if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return errors.Mark(errors.Wrapf(err, "%s exceeded %s", what, l.callTimeout), relay.ErrTimeout)
	}
	return err
}
