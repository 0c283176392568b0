package relay

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request or message failed validation.
	ErrValidation = errors.New("validation error")

	// ErrStreamNotReady indicates Message() was called before Next().
	ErrStreamNotReady = errors.New("stream not ready: call Next() first")

	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrConnection indicates the model host or tool host could not be reached.
	// It is fatal to the turn and never retried silently.
	ErrConnection = errors.New("connection error")

	// ErrTimeout indicates a model or tool call exceeded the configured call timeout.
	ErrTimeout = errors.New("timeout")

	// ErrIterationLimit indicates the model kept requesting tools past the
	// configured number of tool-call rounds.
	ErrIterationLimit = errors.New("iteration limit exceeded")

	// ErrUnknownTool indicates the requested tool does not exist.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrSchemaMismatch indicates tool arguments do not match the tool's input schema.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrHandler indicates a tool handler failed while executing.
	ErrHandler = errors.New("handler error")

	// ErrDuplicateTool indicates a tool name is already registered.
	ErrDuplicateTool = errors.New("duplicate tool")
)

// FieldError describes one argument that failed schema validation.
type FieldError struct {
	Field       string
	Description string
}

// SchemaError lists every offending field of a rejected tool invocation.
// errors.Is(err, ErrSchemaMismatch) reports true for a SchemaError.
type SchemaError struct {
	Tool   string
	Fields []FieldError
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Description)
	}
	return fmt.Sprintf("%s: %s: %s", ErrSchemaMismatch, e.Tool, strings.Join(parts, "; "))
}

// Is reports whether target is ErrSchemaMismatch.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// MarkConnection marks err as ErrConnection when it is a network-level
// failure (dial, DNS, reset). Context errors and nil pass through unchanged.
func MarkConnection(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	var urlErr *url.Error
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr),
		errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return errors.Mark(err, ErrConnection)
	case errors.As(err, &urlErr) && !urlErr.Timeout():
		return errors.Mark(err, ErrConnection)
	}
	return err
}
