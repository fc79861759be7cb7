package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmerejkowsky/libqi/pkg/signature"
	"github.com/dmerejkowsky/libqi/pkg/value"
)

func roundTrip(t *testing.T, v value.Value) value.Value {
	t.Helper()
	sig, payload, err := Encode(v)
	require.NoError(t, err)
	decoded, err := Decode(sig, payload)
	require.NoError(t, err)
	assert.Equal(t, v.Signature().String(), decoded.Signature().String())
	return decoded
}

func TestCodec_Scalars(t *testing.T) {
	assert.Equal(t, true, roundTrip(t, value.Bool(true)).Interface())
	assert.Equal(t, int8(-5), roundTrip(t, value.Int8(-5)).Interface())
	assert.Equal(t, uint16(7), roundTrip(t, value.UInt16(7)).Interface())
	assert.Equal(t, int32(-100), roundTrip(t, value.Int32(-100)).Interface())
	assert.Equal(t, int64(1<<40), roundTrip(t, value.Int64(1<<40)).Interface())
	assert.Equal(t, float32(1.5), roundTrip(t, value.Float32(1.5)).Interface())
	assert.Equal(t, 2.25, roundTrip(t, value.Float64(2.25)).Interface())
	assert.Equal(t, "héllo", roundTrip(t, value.String("héllo")).Interface())
	assert.Nil(t, roundTrip(t, value.Void()).Interface())
}

func TestCodec_Raw(t *testing.T) {
	decoded := roundTrip(t, value.Raw([]byte{0, 1, 255}))
	assert.Equal(t, []byte{0, 1, 255}, decoded.Interface())
}

func TestCodec_Containers(t *testing.T) {
	list := value.List(value.TypeOfKind(signature.KindInt32),
		value.Int32(1), value.Int32(2), value.Int32(3))
	decoded := roundTrip(t, list)
	items := decoded.Interface().([]value.Value)
	require.Len(t, items, 3)
	assert.Equal(t, int32(2), items[1].Interface())

	tuple := value.Tuple(value.Int32(4), value.String("x"), value.Bool(false))
	decoded = roundTrip(t, tuple)
	members := decoded.Interface().([]value.Value)
	require.Len(t, members, 3)
	assert.Equal(t, "x", members[1].Interface())

	m := value.Map(value.TypeOfKind(signature.KindString), value.TypeOfKind(signature.KindInt64),
		value.MapEntry{Key: value.String("a"), Value: value.Int64(1)},
		value.MapEntry{Key: value.String("b"), Value: value.Int64(2)})
	decoded = roundTrip(t, m)
	entries := decoded.Interface().([]value.MapEntry)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key.Interface())
	assert.Equal(t, int64(2), entries[1].Value.Interface())
}

func TestCodec_Dynamic(t *testing.T) {
	dyn := value.Dynamic(value.String("inside"))
	decoded := roundTrip(t, dyn)
	inner, ok := decoded.Interface().(value.Value)
	require.True(t, ok)
	assert.Equal(t, "inside", inner.Interface())
	assert.Equal(t, "s", inner.Signature().String())
}

func TestCodec_Params(t *testing.T) {
	params := []value.Value{value.Int32(1), value.String("two"), value.Float64(3)}
	sig, payload, err := EncodeParams(params)
	require.NoError(t, err)
	assert.Equal(t, "(isd)", sig)

	decoded, err := DecodeParams(sig, payload)
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	assert.Equal(t, int32(1), decoded[0].Interface())
	assert.Equal(t, "two", decoded[1].Interface())
	assert.Equal(t, 3.0, decoded[2].Interface())
}

func TestCodec_EmptyParams(t *testing.T) {
	sig, payload, err := EncodeParams(nil)
	require.NoError(t, err)
	assert.Equal(t, "()", sig)

	decoded, err := DecodeParams(sig, payload)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestCodec_Errors(t *testing.T) {
	_, _, err := Encode(value.Value{})
	assert.Error(t, err)

	_, err = Decode("i", []byte(`"not a number"`))
	assert.Error(t, err)

	_, err = Decode("q", []byte(`1`))
	assert.Error(t, err)

	_, err = DecodeParams("(ii)", []byte(`[1]`))
	assert.Error(t, err, "parameter count mismatch must fail")

	_, err = DecodeParams("i", []byte(`[1]`))
	assert.Error(t, err, "parameters must be a tuple")
}
