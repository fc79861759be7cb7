package value

import (
	"fmt"

	"github.com/dmerejkowsky/libqi/pkg/signature"
)

// scalarType covers every kind whose values copy by assignment.
type scalarType struct {
	kind signature.Kind
}

func (t scalarType) Kind() signature.Kind            { return t.kind }
func (t scalarType) Signature() signature.Signature  { return signature.FromKind(t.kind) }
func (t scalarType) Clone(v interface{}) interface{} { return v }

var (
	voidType    = scalarType{signature.KindVoid}
	boolType    = scalarType{signature.KindBool}
	int8Type    = scalarType{signature.KindInt8}
	uint8Type   = scalarType{signature.KindUInt8}
	int16Type   = scalarType{signature.KindInt16}
	uint16Type  = scalarType{signature.KindUInt16}
	int32Type   = scalarType{signature.KindInt32}
	uint32Type  = scalarType{signature.KindUInt32}
	int64Type   = scalarType{signature.KindInt64}
	uint64Type  = scalarType{signature.KindUInt64}
	floatType   = scalarType{signature.KindFloat}
	doubleType  = scalarType{signature.KindDouble}
	stringType  = scalarType{signature.KindString}
	unknownType = scalarType{signature.KindUnknown}
)

// rawType values are byte slices; clone copies the backing array.
type rawType struct{}

func (rawType) Kind() signature.Kind           { return signature.KindRaw }
func (rawType) Signature() signature.Signature { return signature.FromKind(signature.KindRaw) }
func (rawType) Clone(v interface{}) interface{} {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// DynamicType wraps another Value; the signature is always 'm'.
type DynamicType struct{}

func (DynamicType) Kind() signature.Kind           { return signature.KindDynamic }
func (DynamicType) Signature() signature.Signature { return signature.FromKind(signature.KindDynamic) }
func (DynamicType) Clone(v interface{}) interface{} {
	inner, ok := v.(Value)
	if !ok {
		return v
	}
	return inner.Clone()
}

// ListType describes homogeneous lists; values are []Value.
type ListType struct {
	Element Type
}

func (t ListType) Kind() signature.Kind { return signature.KindList }

func (t ListType) Signature() signature.Signature {
	return signature.MustParse("[" + t.Element.Signature().String() + "]")
}

func (t ListType) Clone(v interface{}) interface{} {
	items, ok := v.([]Value)
	if !ok {
		return v
	}
	out := make([]Value, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

// MapEntry is one key/value pair of a map value.
type MapEntry struct {
	Key   Value
	Value Value
}

// MapType describes maps; values are []MapEntry to keep iteration order
// stable on the wire.
type MapType struct {
	Key     Type
	Element Type
}

func (t MapType) Kind() signature.Kind { return signature.KindMap }

func (t MapType) Signature() signature.Signature {
	return signature.MustParse("{" + t.Key.Signature().String() + t.Element.Signature().String() + "}")
}

func (t MapType) Clone(v interface{}) interface{} {
	entries, ok := v.([]MapEntry)
	if !ok {
		return v
	}
	out := make([]MapEntry, len(entries))
	for i, e := range entries {
		out[i] = MapEntry{Key: e.Key.Clone(), Value: e.Value.Clone()}
	}
	return out
}

// TupleType describes fixed-arity heterogeneous tuples; values are []Value.
type TupleType struct {
	Members []Type
}

func (t TupleType) Kind() signature.Kind { return signature.KindTuple }

func (t TupleType) Signature() signature.Signature {
	raw := "("
	for _, m := range t.Members {
		raw += m.Signature().String()
	}
	raw += ")"
	return signature.MustParse(raw)
}

func (t TupleType) Clone(v interface{}) interface{} {
	items, ok := v.([]Value)
	if !ok {
		return v
	}
	out := make([]Value, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

// Typed constructors.

// Void returns the unit value.
func Void() Value { return Value{v: nil, t: voidType} }

// Bool wraps a bool.
func Bool(b bool) Value { return Value{v: b, t: boolType} }

// Int8 wraps an int8.
func Int8(i int8) Value { return Value{v: i, t: int8Type} }

// UInt8 wraps a uint8.
func UInt8(i uint8) Value { return Value{v: i, t: uint8Type} }

// Int16 wraps an int16.
func Int16(i int16) Value { return Value{v: i, t: int16Type} }

// UInt16 wraps a uint16.
func UInt16(i uint16) Value { return Value{v: i, t: uint16Type} }

// Int32 wraps an int32.
func Int32(i int32) Value { return Value{v: i, t: int32Type} }

// UInt32 wraps a uint32.
func UInt32(i uint32) Value { return Value{v: i, t: uint32Type} }

// Int64 wraps an int64.
func Int64(i int64) Value { return Value{v: i, t: int64Type} }

// UInt64 wraps a uint64.
func UInt64(i uint64) Value { return Value{v: i, t: uint64Type} }

// Float32 wraps a float32.
func Float32(f float32) Value { return Value{v: f, t: floatType} }

// Float64 wraps a float64.
func Float64(f float64) Value { return Value{v: f, t: doubleType} }

// String wraps a string.
func String(s string) Value { return Value{v: s, t: stringType} }

// Raw wraps a byte slice.
func Raw(b []byte) Value { return Value{v: b, t: rawType{}} }

// Dynamic wraps an already-typed value in a dynamic slot.
func Dynamic(inner Value) Value { return Value{v: inner, t: DynamicType{}} }

// List builds a list value; every item must share elem's signature.
func List(elem Type, items ...Value) Value {
	return Value{v: items, t: ListType{Element: elem}}
}

// Tuple builds a tuple value from already-typed members.
func Tuple(items ...Value) Value {
	members := make([]Type, len(items))
	for i, item := range items {
		members[i] = item.Type()
	}
	return Value{v: items, t: TupleType{Members: members}}
}

// Map builds a map value from entries; keys and values must match the
// given descriptors.
func Map(key, elem Type, entries ...MapEntry) Value {
	return Value{v: entries, t: MapType{Key: key, Element: elem}}
}

// TypeOfKind returns the scalar descriptor for a primitive kind, or nil
// for containers.
func TypeOfKind(k signature.Kind) Type {
	switch k {
	case signature.KindVoid:
		return voidType
	case signature.KindBool:
		return boolType
	case signature.KindInt8:
		return int8Type
	case signature.KindUInt8:
		return uint8Type
	case signature.KindInt16:
		return int16Type
	case signature.KindUInt16:
		return uint16Type
	case signature.KindInt32:
		return int32Type
	case signature.KindUInt32:
		return uint32Type
	case signature.KindInt64:
		return int64Type
	case signature.KindUInt64:
		return uint64Type
	case signature.KindFloat:
		return floatType
	case signature.KindDouble:
		return doubleType
	case signature.KindString:
		return stringType
	case signature.KindRaw:
		return rawType{}
	case signature.KindDynamic:
		return DynamicType{}
	case signature.KindUnknown:
		return unknownType
	}
	return nil
}

// FromInterface infers a descriptor for a plain Go value. Integers map to
// their exact width, untyped collections land in dynamic slots.
func FromInterface(v interface{}) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Void(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case int8:
		return Int8(x), nil
	case uint8:
		return UInt8(x), nil
	case int16:
		return Int16(x), nil
	case uint16:
		return UInt16(x), nil
	case int32:
		return Int32(x), nil
	case uint32:
		return UInt32(x), nil
	case int:
		return Int64(int64(x)), nil
	case int64:
		return Int64(x), nil
	case uint64:
		return UInt64(x), nil
	case float32:
		return Float32(x), nil
	case float64:
		return Float64(x), nil
	case string:
		return String(x), nil
	case []byte:
		return Raw(x), nil
	case []interface{}:
		items := make([]Value, len(x))
		for i, item := range x {
			inner, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = Dynamic(inner)
		}
		return List(DynamicType{}, items...), nil
	case map[string]interface{}:
		entries := make([]MapEntry, 0, len(x))
		for k, item := range x {
			inner, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, MapEntry{Key: String(k), Value: Dynamic(inner)})
		}
		return Map(stringType, DynamicType{}, entries...), nil
	default:
		return Value{}, fmt.Errorf("no value mapping for type %T", v)
	}
}
