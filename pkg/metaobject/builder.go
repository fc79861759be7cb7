package metaobject

import (
	"fmt"

	"github.com/dmerejkowsky/libqi/pkg/signature"
)

// Builder assembles a MetaObject from a stream of (id, name, signature)
// records, the form the registration layer produces.
type Builder struct {
	methods map[uint32]Method
	signals map[uint32]Signal
	err     error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		methods: make(map[uint32]Method),
		signals: make(map[uint32]Signal),
	}
}

// AddMethod records a method from its full signature
// "returnsig name::(paramsig)". Errors stick and surface from Freeze.
func (b *Builder) AddMethod(id uint32, fullSignature string) *Builder {
	if b.err != nil {
		return b
	}
	ret, name, params, err := signature.Split(fullSignature)
	if err != nil {
		b.err = err
		return b
	}
	if _, dup := b.methods[id]; dup {
		b.err = fmt.Errorf("duplicate method id %d", id)
		return b
	}
	method := Method{ID: id, Name: name}
	method.Parameters = signature.MustParse(params)
	if ret != "" {
		method.Returns = signature.MustParse(ret)
	}
	b.methods[id] = method
	return b
}

// AddSignal records a signal from its name and parameter tuple signature.
func (b *Builder) AddSignal(id uint32, name string, params string) *Builder {
	if b.err != nil {
		return b
	}
	sig, err := signature.Parse(params)
	if err != nil {
		b.err = err
		return b
	}
	if _, dup := b.signals[id]; dup {
		b.err = fmt.Errorf("duplicate signal id %d", id)
		return b
	}
	b.signals[id] = Signal{ID: id, Name: name, Parameters: sig}
	return b
}

// Freeze produces the immutable MetaObject, or the first recording error.
func (b *Builder) Freeze() (*MetaObject, error) {
	if b.err != nil {
		return nil, b.err
	}
	m := &MetaObject{
		methods: make(map[uint32]Method, len(b.methods)),
		signals: make(map[uint32]Signal, len(b.signals)),
	}
	for id, method := range b.methods {
		m.methods[id] = method
	}
	for id, sig := range b.signals {
		m.signals[id] = sig
	}
	return m, nil
}

// MustFreeze is Freeze for descriptions known valid at compile time.
func (b *Builder) MustFreeze() *MetaObject {
	m, err := b.Freeze()
	if err != nil {
		panic(err)
	}
	return m
}
