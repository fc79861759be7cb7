// Package metaobject implements the frozen, self-describing schema of an
// object: its methods and signals keyed by 32-bit ids, plus overload
// resolution over the signature grammar.
package metaobject

import (
	"fmt"

	"github.com/dmerejkowsky/libqi/pkg/signature"
)

// ReservedIDLimit is the first id available to user methods and signals;
// everything below is reserved for platform built-ins.
const ReservedIDLimit uint32 = 10

// Method describes one callable entry.
type Method struct {
	ID uint32
	// Name is the bare method name, without return or parameter parts.
	Name string
	// Parameters is the tuple signature of the parameters.
	Parameters signature.Signature
	// Returns is the return signature; the invalid signature means void.
	Returns signature.Signature
}

// Signal describes one event entry.
type Signal struct {
	ID uint32
	Name string
	// Parameters is the tuple signature of the emitted parameters.
	Parameters signature.Signature
}

// MethodNotFoundError is the failed outcome of overload resolution.
type MethodNotFoundError struct {
	Name       string
	Parameters string
}

func (e *MethodNotFoundError) Error() string {
	if e.Parameters == "" {
		return fmt.Sprintf("method not found: %s", e.Name)
	}
	return fmt.Sprintf("method not found: %s with parameters %s", e.Name, e.Parameters)
}

// MetaObject is a frozen description of an object's methods and signals.
// Build one with a Builder; a MetaObject never changes after Freeze.
type MetaObject struct {
	methods map[uint32]Method
	signals map[uint32]Signal
}

// Method returns the method registered under id.
func (m *MetaObject) Method(id uint32) (Method, bool) {
	method, ok := m.methods[id]
	return method, ok
}

// Signal returns the signal registered under id.
func (m *MetaObject) Signal(id uint32) (Signal, bool) {
	sig, ok := m.signals[id]
	return sig, ok
}

// Methods returns a copy of the method table.
func (m *MetaObject) Methods() map[uint32]Method {
	out := make(map[uint32]Method, len(m.methods))
	for id, method := range m.methods {
		out[id] = method
	}
	return out
}

// Signals returns a copy of the signal table.
func (m *MetaObject) Signals() map[uint32]Signal {
	out := make(map[uint32]Signal, len(m.signals))
	for id, sig := range m.signals {
		out[id] = sig
	}
	return out
}

// FindMethod resolves the overload of name that best accepts params,
// scored with the signature convertibility metric. Ties resolve to the
// lower id; when no candidate scores above zero the lookup fails with a
// *MethodNotFoundError.
func (m *MetaObject) FindMethod(name string, params signature.Signature) (Method, error) {
	var (
		best      Method
		bestScore float64
		found     bool
	)
	for _, method := range m.methods {
		if method.Name != name {
			continue
		}
		score := params.IsConvertibleTo(method.Parameters)
		if score == 0 {
			continue
		}
		if !found || score > bestScore || (score == bestScore && method.ID < best.ID) {
			best = method
			bestScore = score
			found = true
		}
	}
	if !found {
		return Method{}, &MethodNotFoundError{Name: name, Parameters: params.String()}
	}
	return best, nil
}
