package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naab-lang/naab/core/value"
)

func TestCBORRoundTrip(t *testing.T) {
	d := value.NewDict()
	d.Set("double", value.Int(14))
	d.Set("items", value.NewList(value.Str("a"), value.Bool(true), value.Null))

	data, err := value.Encode(d)
	require.NoError(t, err)

	got, err := value.Decode(data)
	require.NoError(t, err)
	assert.True(t, d.Equal(got))
}

func TestCBOREncodeRejectsFunction(t *testing.T) {
	_, err := value.Encode(&value.Function{Name: "f"})
	require.Error(t, err)
	var unsupported *value.UnsupportedEncodingError
	assert.ErrorAs(t, err, &unsupported)
}

func TestCBORRoundTripStruct(t *testing.T) {
	def := value.NewStructDef("Point", []string{"x", "y"}, []string{"int", "int"})
	s := value.NewStruct(def, []value.Value{value.Int(3), value.Int(4)})

	data, err := value.Encode(s)
	require.NoError(t, err)

	got, err := value.Decode(data)
	require.NoError(t, err)
	assert.True(t, s.Equal(got))
}
