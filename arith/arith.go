// Package arith provides the arithmetic tools served by the tool host.
package arith

import (
	"context"
	"encoding/json"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay/toolhost"
)

// AddArgs are the arguments of add_numbers. Both inputs must be JSON numbers;
// the schema rejects strings and other non-numeric values without coercion.
type AddArgs struct {
	Num1 json.Number `json:"num1" jsonschema:"type=number,description=first number to add."`
	Num2 json.Number `json:"num2" jsonschema:"type=number,description=second number to add."`
}

// Register adds every arithmetic tool to reg.
func Register(reg *toolhost.Registry) error {
	tool, h, err := toolhost.Func("add_numbers",
		"Add two numbers and return the sum of both the input numbers.",
		func(_ context.Context, args AddArgs) (any, error) {
			return Add(args.Num1, args.Num2)
		})
	if err != nil {
		return err
	}
	return reg.Register(tool, h)
}

// Add sums two numbers. Integers are summed exactly as int64 unless the sum
// overflows; any fractional or exponent input is summed as float64.
func Add(a, b json.Number) (any, error) {
	ai, aerr := a.Int64()
	bi, berr := b.Int64()
	if aerr == nil && berr == nil {
		if sum, ok := addInt64(ai, bi); ok {
			return sum, nil
		}
	}
	af, err := a.Float64()
	if err != nil {
		return nil, errors.Wrapf(err, "num1 %q", a.String())
	}
	bf, err := b.Float64()
	if err != nil {
		return nil, errors.Wrapf(err, "num2 %q", b.String())
	}
	sum := af + bf
	if math.IsInf(sum, 0) {
		return nil, errors.Newf("sum of %s and %s overflows", a, b)
	}
	return sum, nil
}

func addInt64(a, b int64) (int64, bool) {
	s := a + b
	if (a > 0 && b > 0 && s < 0) || (a < 0 && b < 0 && s >= 0) {
		return 0, false
	}
	return s, true
}
