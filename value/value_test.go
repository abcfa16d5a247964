package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stelladb/stellator/value"
)

func TestDictSetPreservesInsertionOrder(t *testing.T) {
	v := value.NewDict()
	v.Set("b", value.Int(2))
	v.Set("a", value.Int(1))
	v.Set("b", value.Int(20))

	assert.Equal(t, []string{"b", "a"}, v.Keys())
	got, ok := v.Get("b")
	assert.True(t, ok)
	i, _ := got.AsInt()
	assert.Equal(t, int64(20), i)
}

func TestDictDelete(t *testing.T) {
	v := value.Dict(
		value.Pair{Key: "x", Value: value.Int(1)},
		value.Pair{Key: "y", Value: value.Int(2)},
	)
	v.Delete("x")
	assert.False(t, v.Has("x"))
	assert.True(t, v.Has("y"))
	assert.Equal(t, 1, v.Len())
}

func TestEqualDictIgnoresOrder(t *testing.T) {
	a := value.Dict(value.Pair{Key: "x", Value: value.Int(1)}, value.Pair{Key: "y", Value: value.Int(2)})
	b := value.Dict(value.Pair{Key: "y", Value: value.Int(2)}, value.Pair{Key: "x", Value: value.Int(1)})
	assert.True(t, value.Equal(a, b))
}

func TestEqualFloatNaN(t *testing.T) {
	a := value.Float(nan())
	b := value.Float(nan())
	assert.True(t, value.Equal(a, b))
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestArrayAppendFromNull(t *testing.T) {
	var v value.Value
	v.Append(value.Int(1))
	v.Append(value.Int(2))
	assert.Equal(t, value.KindArray, v.Kind())
	assert.Equal(t, 2, v.Len())
}
