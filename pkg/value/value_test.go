package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmerejkowsky/libqi/pkg/signature"
)

func TestScalarSignatures(t *testing.T) {
	cases := map[string]Value{
		"b": Bool(true),
		"c": Int8(-1),
		"C": UInt8(1),
		"w": Int16(-2),
		"W": UInt16(2),
		"i": Int32(-3),
		"I": UInt32(3),
		"l": Int64(-4),
		"L": UInt64(4),
		"f": Float32(1.5),
		"d": Float64(2.5),
		"s": String("hello"),
		"r": Raw([]byte{1, 2}),
		"m": Dynamic(Int32(7)),
		"v": Void(),
	}
	for sig, v := range cases {
		assert.Equal(t, sig, v.Signature().String())
		assert.True(t, v.IsValid())
	}
}

func TestContainerSignatures(t *testing.T) {
	list := List(TypeOfKind(signature.KindInt32), Int32(1), Int32(2))
	assert.Equal(t, "[i]", list.Signature().String())

	tuple := Tuple(Int32(1), String("x"))
	assert.Equal(t, "(is)", tuple.Signature().String())

	m := Map(TypeOfKind(signature.KindString), TypeOfKind(signature.KindInt64),
		MapEntry{Key: String("a"), Value: Int64(1)})
	assert.Equal(t, "{sl}", m.Signature().String())

	nested := List(TupleType{Members: []Type{TypeOfKind(signature.KindInt32), TypeOfKind(signature.KindDouble)}},
		Tuple(Int32(1), Float64(0.5)))
	assert.Equal(t, "[(id)]", nested.Signature().String())
}

func TestClone_DeepCopiesRaw(t *testing.T) {
	original := Raw([]byte{1, 2, 3})
	clone := original.Clone()

	data := original.Interface().([]byte)
	data[0] = 99
	cloned := clone.Interface().([]byte)
	assert.EqualValues(t, 1, cloned[0], "clone must not share the backing array")
}

func TestClone_DeepCopiesContainers(t *testing.T) {
	inner := Raw([]byte{5})
	list := List(rawType{}, inner)
	clone := list.Clone()

	list.Interface().([]Value)[0].Interface().([]byte)[0] = 42
	clonedItems := clone.Interface().([]Value)
	assert.EqualValues(t, 5, clonedItems[0].Interface().([]byte)[0])
}

func TestFromInterface(t *testing.T) {
	cases := []struct {
		in  interface{}
		sig string
	}{
		{true, "b"},
		{int8(1), "c"},
		{int16(1), "w"},
		{int32(1), "i"},
		{int64(1), "l"},
		{1, "l"},
		{uint64(1), "L"},
		{float32(1), "f"},
		{float64(1), "d"},
		{"x", "s"},
		{[]byte{1}, "r"},
		{nil, "v"},
		{[]interface{}{1, "a"}, "[m]"},
		{map[string]interface{}{"k": 1}, "{sm}"},
	}
	for _, c := range cases {
		v, err := FromInterface(c.in)
		require.NoError(t, err, "input %#v", c.in)
		assert.Equal(t, c.sig, v.Signature().String(), "input %#v", c.in)
	}

	_, err := FromInterface(struct{}{})
	assert.Error(t, err)
}

func TestParamsSignature(t *testing.T) {
	sig := ParamsSignature([]Value{Int32(1), String("a")})
	assert.Equal(t, "(is)", sig.String())
}

func TestZeroValueIsInvalid(t *testing.T) {
	var v Value
	assert.False(t, v.IsValid())
	assert.False(t, v.Signature().IsValid())
	assert.False(t, v.Clone().IsValid())
}
