// Command toolhost serves the bundled tools over MCP streamable HTTP.
//
// Usage:
//
//	toolhost [flags]
//
// Flags:
//
//	--config string      Path to a YAML config file (default: relay.yaml in . or ~/.relay)
//	--addr string        Listen address (default "0.0.0.0:13744")
//	--path string        MCP endpoint path (default "/mcp")
//	--log-level string   Log level (default "info")
//	--log-format string  Log format: console or json (default "console")
//
// Every flag has a RELAY_* environment equivalent, e.g. RELAY_SERVER_ADDR.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay/arith"
	"github.com/fwojciec/relay/config"
	"github.com/fwojciec/relay/mcp"
	"github.com/fwojciec/relay/toolhost"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/pflag"
)

const (
	version         = "0.1.0"
	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "toolhost: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	cfg, err := config.Load(config.ServerFlags(), args)
	if err != nil {
		return err
	}
	logger := cfg.Log.Logger(stderr)

	// Handle OS signals for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", cfg.Server.Addr)
	}
	return serve(ctx, ln, cfg.Server, logger)
}

// serve runs the tool host on ln until ctx is cancelled, then drains
// in-flight requests.
func serve(ctx context.Context, ln net.Listener, cfg config.ServerConfig, logger zerolog.Logger) error {
	reg := toolhost.NewRegistry(toolhost.WithLogger(logger))
	if err := arith.Register(reg); err != nil {
		return errors.Wrap(err, "register tools")
	}
	srv, err := mcp.NewServer(ctx, reg,
		mcp.WithPath(cfg.Path),
		mcp.WithImplementation("relay-toolhost", version),
		mcp.WithServerLogger(logger),
	)
	if err != nil {
		return err
	}
	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info().
		Str("addr", ln.Addr().String()).
		Str("path", srv.Path()).
		Str("health", mcp.HealthPath).
		Strs("tools", srv.Tools()).
		Msg("tool host listening")

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(context.Context) error {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve")
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	err = p.Wait()
	logger.Info().Msg("tool host stopped")
	return err
}
