package arith_test

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/arith"
	"github.com/fwojciec/relay/toolhost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *toolhost.Registry {
	t.Helper()
	reg := toolhost.NewRegistry()
	require.NoError(t, arith.Register(reg))
	return reg
}

func TestRegister(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	tools, err := reg.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "add_numbers", tools[0].Name)
	assert.NotEmpty(t, tools[0].Description)

	var schema struct {
		Type                 string                    `json:"type"`
		Required             []string                  `json:"required"`
		AdditionalProperties bool                      `json:"additionalProperties"`
		Properties           map[string]map[string]any `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(tools[0].Parameters, &schema))
	assert.Equal(t, "object", schema.Type)
	assert.ElementsMatch(t, []string{"num1", "num2"}, schema.Required)
	assert.False(t, schema.AdditionalProperties)
	assert.Equal(t, "number", schema.Properties["num1"]["type"])
	assert.Equal(t, "number", schema.Properties["num2"]["type"])

	err = arith.Register(reg)
	assert.True(t, errors.Is(err, relay.ErrDuplicateTool), "registering twice fails")
}

func TestAddNumbers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args string
		want any
	}{
		{"integers", `{"num1":12,"num2":30}`, int64(42)},
		{"negative", `{"num1":-5,"num2":3}`, int64(-2)},
		{"floats", `{"num1":0.5,"num2":0.25}`, 0.75},
		{"mixed", `{"num1":1,"num2":0.5}`, 1.5},
		{"exponent", `{"num1":1e2,"num2":1}`, 101.0},
		{"beyond float precision", `{"num1":9007199254740993,"num2":0}`, int64(9007199254740993)},
		{"int64 overflow", `{"num1":9223372036854775807,"num2":1}`, float64(math.MaxInt64) + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reg := newRegistry(t)
			got, err := reg.Invoke(context.Background(), "add_numbers", json.RawMessage(tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddNumbers_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		args  string
		field string
	}{
		{"numeric string", `{"num1":"12","num2":30}`, "num1"},
		{"word", `{"num1":12,"num2":"thirty"}`, "num2"},
		{"boolean", `{"num1":true,"num2":1}`, "num1"},
		{"null", `{"num1":1,"num2":null}`, "num2"},
		{"missing", `{"num1":1}`, "(root)"},
		{"extra", `{"num1":1,"num2":2,"num3":3}`, "(root)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reg := newRegistry(t)
			_, err := reg.Invoke(context.Background(), "add_numbers", json.RawMessage(tt.args))
			var se *relay.SchemaError
			require.True(t, errors.As(err, &se), "got %v", err)
			require.NotEmpty(t, se.Fields)
			assert.Equal(t, tt.field, se.Fields[0].Field)
		})
	}
}

func TestAdd(t *testing.T) {
	t.Parallel()

	_, err := arith.Add("1e308", "1e308")
	assert.Error(t, err, "float overflow")

	got, err := arith.Add("2", "2")
	require.NoError(t, err)
	assert.Equal(t, int64(4), got)
}

func TestAddNumbers_Execute(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	res, err := reg.Execute(context.Background(), "add_numbers", json.RawMessage(`{"num1":12,"num2":30}`))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "42", res.Text())
}
