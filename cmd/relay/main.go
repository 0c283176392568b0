// Command relay runs one agent turn: it sends the user's prompt to a model
// host, executes the tools the model requests on an MCP tool host, and streams
// the conversation to stdout.
//
// Usage:
//
//	echo "What is 12 + 30?" | relay [flags]
//	relay [flags]              # asks for the prompt interactively
//
// Flags:
//
//	--config string          Path to a YAML config file (default: relay.yaml in . or ~/.relay)
//	--provider string        Model host: ollama or gemini (default "ollama")
//	--model string           Model ID (default "qwen3:30b", or "gemini-2.5-flash" for gemini)
//	--model-url string       Model host URL (default "http://localhost:11434")
//	--temperature float      Sampling temperature (default 0.8)
//	--think                  Request reasoning output (default true)
//	--toolhost-url string    Tool host MCP endpoint (default "http://localhost:13744/mcp")
//	--wait duration          Wait for the tool host to become healthy
//	--allow strings          Tool name patterns to expose
//	--language string        Fallback reply language (default "en")
//	--timeout duration       Timeout for each model and tool call (default 2m)
//	--max-iterations int     Maximum tool-call rounds (default 10)
//	--transcript string      Write the conversation to this JSON file
//
// Every flag has a RELAY_* environment equivalent, e.g. RELAY_MODEL_NAME.
// The exit code is 0 when the turn completes and 1 otherwise.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/agent"
	bt "github.com/fwojciec/relay/bubbletea"
	"github.com/fwojciec/relay/config"
	relayjson "github.com/fwojciec/relay/json"
	"github.com/fwojciec/relay/mcp"
	"github.com/fwojciec/relay/terminal"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

const version = "0.1.0"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load(config.ClientFlags(), args)
	if err != nil {
		return err
	}
	logger := cfg.Log.Logger(stderr)

	// Handle OS signals for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hc := &http.Client{}

	var provider relay.Provider
	err = bounded(ctx, cfg.Agent.Timeout, "model host check", func(ctx context.Context) error {
		provider, err = newProvider(ctx, cfg.Model, hc)
		return err
	})
	if err != nil {
		return err
	}

	if cfg.ToolHost.Wait > 0 {
		healthURL, err := mcp.HealthURL(cfg.ToolHost.URL)
		if err != nil {
			return err
		}
		logger.Debug().Str("url", healthURL).Dur("timeout", cfg.ToolHost.Wait).Msg("waiting for tool host")
		if err := mcp.WaitHealthy(ctx, hc, healthURL, cfg.ToolHost.Wait); err != nil {
			return err
		}
	}

	var client *mcp.Client
	err = bounded(ctx, cfg.Agent.Timeout, "tool host connect", func(ctx context.Context) error {
		client, err = mcp.Dial(ctx, cfg.ToolHost.URL,
			mcp.WithHTTPClient(hc),
			mcp.WithClientImplementation("relay", version),
		)
		return err
	})
	if err != nil {
		return err
	}
	defer client.Close()

	var tools []relay.Tool
	err = bounded(ctx, cfg.Agent.Timeout, "tool discovery", func(ctx context.Context) error {
		tools, err = client.ListTools(ctx)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "discover tools")
	}
	tools, err = agent.FilterTools(tools, cfg.ToolHost.Allow)
	if err != nil {
		return err
	}
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	logger.Info().Strs("tools", names).Str("model", cfg.Model.ModelName()).Msg("discovered tools")

	theme := relay.DefaultTheme()
	prompt, err := bt.ReadPrompt(ctx, stdin, stderr, theme)
	if err != nil {
		return err
	}

	now := time.Now()
	conv := &relay.Conversation{
		ID:           uuid.NewString(),
		SystemPrompt: agent.SystemPrompt(now, cfg.Language()),
		CreatedAt:    now,
		UpdatedAt:    now,
		Messages: []relay.Message{
			relay.UserMessage{Content: []relay.ContentBlock{relay.TextBlock{Text: prompt}}, Timestamp: now},
		},
	}

	loop := agent.New(provider, client,
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
		agent.WithCallTimeout(cfg.Agent.Timeout),
		agent.WithToolConcurrency(cfg.Agent.ToolConcurrency),
		agent.WithLogger(logger),
	)
	printer := terminal.NewPrinter(stdout, theme)
	runErr := loop.Run(ctx, conv, tools,
		agent.WithEventHandler(printer.Handle),
		agent.WithModel(cfg.Model.ModelName()),
		agent.WithTemperature(cfg.Model.Temperature),
		agent.WithThink(cfg.Model.Think),
		agent.WithMaxTokens(cfg.Model.NumPredict),
	)
	if err := printer.Finish(); err != nil && runErr == nil {
		runErr = errors.Wrap(err, "write output")
	}

	if cfg.Agent.Transcript != "" {
		if err := relayjson.Save(cfg.Agent.Transcript, *conv); err != nil {
			logger.Error().Err(err).Str("path", cfg.Agent.Transcript).Msg("save transcript")
			if runErr == nil {
				runErr = errors.Wrap(err, "save transcript")
			}
		} else {
			logger.Info().Str("path", cfg.Agent.Transcript).Msg("transcript saved")
		}
	}
	return runErr
}

// bounded runs fn under the per-call timeout. Expiry of that deadline, while
// ctx itself is still live, is marked relay.ErrTimeout.
func bounded(ctx context.Context, d time.Duration, what string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	err := fn(callCtx)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return errors.Mark(errors.Wrapf(err, "%s exceeded %s", what, d), relay.ErrTimeout)
	}
	return err
}
