// Package transport carries qi calls, replies and events between nodes
// over websocket frames. The payload encoding pairs a signature string
// with a JSON body; the signature grammar stays the stable interchange,
// the body format is private to this transport.
package transport

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/dmerejkowsky/libqi/pkg/signature"
	"github.com/dmerejkowsky/libqi/pkg/value"
)

// Encode serializes a value to its signature and JSON body.
func Encode(v value.Value) (string, json.RawMessage, error) {
	if !v.IsValid() {
		return "", nil, fmt.Errorf("cannot encode invalid value")
	}
	body, err := encodeBody(v)
	if err != nil {
		return "", nil, err
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", nil, err
	}
	return v.Signature().String(), data, nil
}

// EncodeParams serializes a parameter list to the tuple signature and a
// JSON array body.
func EncodeParams(params []value.Value) (string, json.RawMessage, error) {
	sig := value.ParamsSignature(params)
	if !sig.IsValid() {
		return "", nil, fmt.Errorf("cannot encode invalid parameters")
	}
	bodies := make([]interface{}, len(params))
	for i, p := range params {
		body, err := encodeBody(p)
		if err != nil {
			return "", nil, err
		}
		bodies[i] = body
	}
	data, err := json.Marshal(bodies)
	if err != nil {
		return "", nil, err
	}
	return sig.String(), data, nil
}

func encodeBody(v value.Value) (interface{}, error) {
	switch v.Type().Kind() {
	case signature.KindVoid:
		return nil, nil
	case signature.KindRaw:
		b, _ := v.Interface().([]byte)
		return base64.StdEncoding.EncodeToString(b), nil
	case signature.KindDynamic:
		inner, ok := v.Interface().(value.Value)
		if !ok {
			return nil, fmt.Errorf("dynamic value does not wrap a value")
		}
		sig, body, err := Encode(inner)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"sig": sig, "val": json.RawMessage(body)}, nil
	case signature.KindList, signature.KindTuple:
		items, ok := v.Interface().([]value.Value)
		if !ok {
			return nil, fmt.Errorf("container value does not hold items")
		}
		bodies := make([]interface{}, len(items))
		for i, item := range items {
			body, err := encodeBody(item)
			if err != nil {
				return nil, err
			}
			bodies[i] = body
		}
		return bodies, nil
	case signature.KindMap:
		entries, ok := v.Interface().([]value.MapEntry)
		if !ok {
			return nil, fmt.Errorf("map value does not hold entries")
		}
		pairs := make([][2]interface{}, len(entries))
		for i, e := range entries {
			k, err := encodeBody(e.Key)
			if err != nil {
				return nil, err
			}
			val, err := encodeBody(e.Value)
			if err != nil {
				return nil, err
			}
			pairs[i] = [2]interface{}{k, val}
		}
		return pairs, nil
	case signature.KindObject:
		return nil, fmt.Errorf("objects do not serialize; pass a service reference instead")
	default:
		return v.Interface(), nil
	}
}

// Decode rebuilds a value from its signature and JSON body.
func Decode(sig string, payload json.RawMessage) (value.Value, error) {
	parsed, err := signature.Parse(sig)
	if err != nil {
		return value.Value{}, err
	}
	if parsed.Size() != 1 {
		return value.Value{}, fmt.Errorf("expected a single element signature, got %q", sig)
	}
	var body interface{}
	if err := json.Unmarshal(payload, &body); err != nil {
		return value.Value{}, err
	}
	return decodeElement(parsed.Elements()[0], body)
}

// DecodeParams rebuilds a parameter list from a tuple signature and a JSON
// array body.
func DecodeParams(sig string, payload json.RawMessage) ([]value.Value, error) {
	parsed, err := signature.Parse(sig)
	if err != nil {
		return nil, err
	}
	if parsed.Size() != 1 || parsed.Elements()[0].Kind != signature.KindTuple {
		return nil, fmt.Errorf("parameters must carry a tuple signature, got %q", sig)
	}
	var bodies []interface{}
	if err := json.Unmarshal(payload, &bodies); err != nil {
		return nil, err
	}
	elems := parsed.Elements()[0].Children().Elements()
	if len(bodies) != len(elems) {
		return nil, fmt.Errorf("parameter count mismatch: signature %q, %d bodies", sig, len(bodies))
	}
	params := make([]value.Value, len(bodies))
	for i, body := range bodies {
		p, err := decodeElement(elems[i], body)
		if err != nil {
			return nil, err
		}
		params[i] = p
	}
	return params, nil
}

func decodeElement(elem signature.Element, body interface{}) (value.Value, error) {
	switch elem.Kind {
	case signature.KindVoid:
		return value.Void(), nil
	case signature.KindBool:
		b, ok := body.(bool)
		if !ok {
			return value.Value{}, decodeError(elem, body)
		}
		return value.Bool(b), nil
	case signature.KindString:
		s, ok := body.(string)
		if !ok {
			return value.Value{}, decodeError(elem, body)
		}
		return value.String(s), nil
	case signature.KindRaw:
		s, ok := body.(string)
		if !ok {
			return value.Value{}, decodeError(elem, body)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return value.Value{}, err
		}
		return value.Raw(b), nil
	case signature.KindInt8, signature.KindUInt8, signature.KindInt16,
		signature.KindUInt16, signature.KindInt32, signature.KindUInt32,
		signature.KindInt64, signature.KindUInt64,
		signature.KindFloat, signature.KindDouble:
		f, ok := body.(float64)
		if !ok {
			return value.Value{}, decodeError(elem, body)
		}
		return decodeNumber(elem.Kind, f), nil
	case signature.KindDynamic:
		wrapper, ok := body.(map[string]interface{})
		if !ok {
			return value.Value{}, decodeError(elem, body)
		}
		innerSig, _ := wrapper["sig"].(string)
		innerBody, err := json.Marshal(wrapper["val"])
		if err != nil {
			return value.Value{}, err
		}
		inner, err := Decode(innerSig, innerBody)
		if err != nil {
			return value.Value{}, err
		}
		return value.Dynamic(inner), nil
	case signature.KindList:
		items, ok := body.([]interface{})
		if !ok {
			return value.Value{}, decodeError(elem, body)
		}
		child := elem.Children().Elements()[0]
		values := make([]value.Value, len(items))
		for i, item := range items {
			v, err := decodeElement(child, item)
			if err != nil {
				return value.Value{}, err
			}
			values[i] = v
		}
		return value.List(typeOfElement(child), values...), nil
	case signature.KindTuple:
		items, ok := body.([]interface{})
		if !ok {
			return value.Value{}, decodeError(elem, body)
		}
		children := elem.Children().Elements()
		if len(items) != len(children) {
			return value.Value{}, fmt.Errorf("tuple arity mismatch for %q", elem.Raw())
		}
		values := make([]value.Value, len(items))
		for i, item := range items {
			v, err := decodeElement(children[i], item)
			if err != nil {
				return value.Value{}, err
			}
			values[i] = v
		}
		return value.Tuple(values...), nil
	case signature.KindMap:
		pairs, ok := body.([]interface{})
		if !ok {
			return value.Value{}, decodeError(elem, body)
		}
		children := elem.Children().Elements()
		entries := make([]value.MapEntry, len(pairs))
		for i, raw := range pairs {
			pair, ok := raw.([]interface{})
			if !ok || len(pair) != 2 {
				return value.Value{}, decodeError(elem, raw)
			}
			k, err := decodeElement(children[0], pair[0])
			if err != nil {
				return value.Value{}, err
			}
			v, err := decodeElement(children[1], pair[1])
			if err != nil {
				return value.Value{}, err
			}
			entries[i] = value.MapEntry{Key: k, Value: v}
		}
		return value.Map(typeOfElement(children[0]), typeOfElement(children[1]), entries...), nil
	default:
		return value.Value{}, fmt.Errorf("cannot decode kind %q", elem.Kind)
	}
}

func decodeNumber(k signature.Kind, f float64) value.Value {
	switch k {
	case signature.KindInt8:
		return value.Int8(int8(f))
	case signature.KindUInt8:
		return value.UInt8(uint8(f))
	case signature.KindInt16:
		return value.Int16(int16(f))
	case signature.KindUInt16:
		return value.UInt16(uint16(f))
	case signature.KindInt32:
		return value.Int32(int32(f))
	case signature.KindUInt32:
		return value.UInt32(uint32(f))
	case signature.KindInt64:
		return value.Int64(int64(f))
	case signature.KindUInt64:
		return value.UInt64(uint64(f))
	case signature.KindFloat:
		return value.Float32(float32(f))
	default:
		return value.Float64(f)
	}
}

// typeOfElement resolves an element to a descriptor; containers recurse.
func typeOfElement(elem signature.Element) value.Type {
	switch elem.Kind {
	case signature.KindList:
		return value.ListType{Element: typeOfElement(elem.Children().Elements()[0])}
	case signature.KindMap:
		children := elem.Children().Elements()
		return value.MapType{Key: typeOfElement(children[0]), Element: typeOfElement(children[1])}
	case signature.KindTuple:
		children := elem.Children().Elements()
		members := make([]value.Type, len(children))
		for i, c := range children {
			members[i] = typeOfElement(c)
		}
		return value.TupleType{Members: members}
	default:
		return value.TypeOfKind(elem.Kind)
	}
}

func decodeError(elem signature.Element, body interface{}) error {
	return fmt.Errorf("cannot decode %T into signature %q", body, elem.Raw())
}
