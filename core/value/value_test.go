package value_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naab-lang/naab/core/value"
)

func TestTruthy(t *testing.T) {
	cases := []struct {
		name string
		v    value.Value
		want bool
	}{
		{"null", value.Null, false},
		{"zero int", value.Int(0), false},
		{"nonzero int", value.Int(1), true},
		{"zero float", value.Float(0), false},
		{"false bool", value.Bool(false), false},
		{"true bool", value.Bool(true), true},
		{"empty string", value.Str(""), false},
		{"nonempty string", value.Str("x"), true},
		{"empty list", value.NewList(), false},
		{"nonempty list", value.NewList(value.Int(1)), true},
		{"empty dict", value.NewDict(), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.v.Truthy())
		})
	}
}

func TestListEquality(t *testing.T) {
	a := value.NewList(value.Int(1), value.Str("x"))
	b := value.NewList(value.Int(1), value.Str("x"))
	c := value.NewList(value.Int(1), value.Str("y"))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestDictInsertionOrderPreserved(t *testing.T) {
	d := value.NewDict()
	d.Set("b", value.Int(2))
	d.Set("a", value.Int(1))
	d.Set("b", value.Int(20)) // overwrite keeps original position

	require.Equal(t, []string{"b", "a"}, d.Keys())
	v, ok := d.Get("b")
	require.True(t, ok)
	assert.Equal(t, value.Int(20), v)
}

func TestDictKeyMiss(t *testing.T) {
	d := value.NewDict()
	_, ok := d.Get("missing")
	assert.False(t, ok)
}

func TestListIndexOutOfBounds(t *testing.T) {
	l := value.NewList(value.Int(1))
	_, ok := l.Get(5)
	assert.False(t, ok)
	_, ok = l.Get(-1)
	assert.False(t, ok)
}

func TestCyclicListDisplayTerminates(t *testing.T) {
	l := value.NewList(value.Int(1))
	l.Append(l) // x = [1]; x = x + [x] style cycle via mutation

	done := make(chan string, 1)
	go func() { done <- l.Display() }()

	select {
	case out := <-done:
		assert.Contains(t, out, "...")
	case <-time.After(2 * time.Second):
		t.Fatal("Display did not terminate on a cyclic list")
	}
}

func TestStructFieldAccessByNameAndIndexAgree(t *testing.T) {
	def := value.NewStructDef("Point", []string{"x", "y"}, []string{"int", "int"})
	s := value.NewStruct(def, []value.Value{value.Int(3), value.Int(4)})

	byName, ok := s.FieldByName("y")
	require.True(t, ok)
	assert.Equal(t, s.Fields[def.IndexOf("y")], byName)
}

func TestStructEquality(t *testing.T) {
	def := value.NewStructDef("Point", []string{"x", "y"}, []string{"int", "int"})
	a := value.NewStruct(def, []value.Value{value.Int(1), value.Int(2)})
	b := value.NewStruct(def, []value.Value{value.Int(1), value.Int(2)})
	assert.True(t, a.Equal(b))
}

func TestFunctionAndBlockCompareByReference(t *testing.T) {
	f1 := &value.Function{Name: "f"}
	f2 := &value.Function{Name: "f"}
	assert.True(t, f1.Equal(f1))
	assert.False(t, f1.Equal(f2))

	b1 := &value.Block{Metadata: value.BlockMetadata{Language: "python"}}
	b2 := &value.Block{Metadata: value.BlockMetadata{Language: "python"}}
	assert.True(t, b1.Equal(b1))
	assert.False(t, b1.Equal(b2))
}

func TestForeignDropIsIdempotent(t *testing.T) {
	count := 0
	f := value.NewForeign("python", nil, func() { count++ })
	f.Drop()
	f.Drop()
	f.Drop()
	assert.Equal(t, 1, count)
}
