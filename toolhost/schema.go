package toolhost

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
	"github.com/invopop/jsonschema"
)

// SchemaFor derives an inline JSON schema from the argument struct T. Fields
// without omitempty are required and unknown properties are rejected.
func SchemaFor[T any]() (json.RawMessage, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
		Anonymous:      true,
	}
	var zero T
	s := r.Reflect(&zero)
	s.Version = ""
	b, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "marshal schema")
	}
	return b, nil
}

// Func builds a typed tool. Arguments are validated against the schema of T
// before being decoded into T, with numbers kept as json.Number where T asks
// for them.
func Func[T any](name, description string, fn func(ctx context.Context, args T) (any, error)) (relay.Tool, Handler, error) {
	params, err := SchemaFor[T]()
	if err != nil {
		return relay.Tool{}, nil, errors.Wrapf(err, "tool %s", name)
	}
	tool := relay.Tool{Name: name, Description: description, Parameters: params}
	h := func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args T
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&args); err != nil {
			return nil, errors.Wrap(err, "decode arguments")
		}
		return fn(ctx, args)
	}
	return tool, h, nil
}
