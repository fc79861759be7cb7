// Package value implements the type-erased value the qi runtime passes
// across call boundaries: a Go value paired with a Type descriptor that
// knows its signature and how to clone it. Destruction is the garbage
// collector's job, so the descriptor surface is signature, kind and clone.
package value

import (
	"fmt"

	"github.com/dmerejkowsky/libqi/pkg/signature"
)

// Type describes a value kind: its wire signature and how to copy values
// of that kind. Kind-specific descriptors (lists, maps, tuples, objects)
// extend this interface.
type Type interface {
	Kind() signature.Kind
	Signature() signature.Signature
	Clone(v interface{}) interface{}
}

// Value is a type-erased value: the value itself plus its descriptor.
// The zero Value is invalid.
type Value struct {
	v interface{}
	t Type
}

// New pairs a raw value with its descriptor.
func New(v interface{}, t Type) Value {
	return Value{v: v, t: t}
}

// IsValid reports whether the value carries a descriptor.
func (v Value) IsValid() bool { return v.t != nil }

// Interface returns the underlying Go value.
func (v Value) Interface() interface{} { return v.v }

// Type returns the descriptor.
func (v Value) Type() Type { return v.t }

// Signature returns the descriptor's signature, or the invalid signature
// for the zero Value.
func (v Value) Signature() signature.Signature {
	if v.t == nil {
		return signature.Signature{}
	}
	return v.t.Signature()
}

// Clone deep-copies the value through its descriptor.
func (v Value) Clone() Value {
	if v.t == nil {
		return Value{}
	}
	return Value{v: v.t.Clone(v.v), t: v.t}
}

func (v Value) String() string {
	if v.t == nil {
		return "<invalid>"
	}
	return fmt.Sprintf("%v:%s", v.v, v.t.Signature())
}

// ParamsSignature builds the tuple signature describing a parameter list,
// the form method signatures carry after "::".
func ParamsSignature(params []Value) signature.Signature {
	raw := "("
	for _, p := range params {
		raw += p.Signature().String()
	}
	raw += ")"
	sig, err := signature.Parse(raw)
	if err != nil {
		// Only reachable with invalid values in params.
		return signature.Signature{}
	}
	return sig
}
