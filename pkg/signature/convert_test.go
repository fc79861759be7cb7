package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsConvertibleTo_Identity(t *testing.T) {
	for _, raw := range []string{"i", "s", "[i]", "{s(ii)}", "(sms)", "m", "X", "o<Thing>"} {
		sig := MustParse(raw)
		assert.Equal(t, 1.0, sig.IsConvertibleTo(sig), "identity score for %q", raw)
	}
}

func TestIsConvertibleTo_Impossible(t *testing.T) {
	cases := [][2]string{
		{"s", "i"},
		{"b", "s"},
		{"[i]", "{si}"},
		{"(ii)", "(iii)"},
		{"i", "(i)"},
		{"ii", "i"},
		{"X", "i"},
		{"i", "X"},
		{"s", "_"},
	}
	for _, c := range cases {
		src, dst := MustParse(c[0]), MustParse(c[1])
		assert.Equal(t, 0.0, src.IsConvertibleTo(dst), "%q -> %q", c[0], c[1])
	}
}

func TestIsConvertibleTo_NumericDecay(t *testing.T) {
	i := MustParse("i")

	same := i.IsConvertibleTo(MustParse("i"))
	unsigned := i.IsConvertibleTo(MustParse("I"))
	widened := i.IsConvertibleTo(MustParse("l"))
	toFloat := i.IsConvertibleTo(MustParse("f"))
	toDouble := i.IsConvertibleTo(MustParse("d"))

	assert.Equal(t, 1.0, same)
	assert.Greater(t, unsigned, 0.0)
	assert.Less(t, unsigned, same)
	assert.Greater(t, widened, 0.0)
	assert.Less(t, widened, same)
	assert.Greater(t, toDouble, 0.0)
	assert.Less(t, toFloat, same, "crossing to float is penalized")
	assert.Less(t, toDouble, toFloat, "crossing to float and widening both penalize")
}

func TestIsConvertibleTo_Containers(t *testing.T) {
	listI := MustParse("[i]")
	listL := MustParse("[l]")
	elemScore := MustParse("i").IsConvertibleTo(MustParse("l"))
	assert.Equal(t, elemScore, listI.IsConvertibleTo(listL))

	tuple := MustParse("(il)")
	target := MustParse("(ll)")
	assert.Equal(t, elemScore, tuple.IsConvertibleTo(target))

	mapSig := MustParse("{il}")
	mapTarget := MustParse("{ll}")
	assert.Equal(t, elemScore, mapSig.IsConvertibleTo(mapTarget))

	// Scores multiply through nesting.
	nested := MustParse("[(il)]")
	nestedTarget := MustParse("[(ll)]")
	assert.InDelta(t, elemScore, nested.IsConvertibleTo(nestedTarget), 1e-12)
}

func TestIsConvertibleTo_Dynamic(t *testing.T) {
	m := MustParse("m")
	assert.Equal(t, scoreDynamicTarget, MustParse("i").IsConvertibleTo(m))
	assert.Equal(t, scoreDynamicTarget, MustParse("[s]").IsConvertibleTo(m))
	assert.Equal(t, scoreDynamicSource, m.IsConvertibleTo(MustParse("i")))
	assert.Equal(t, 1.0, m.IsConvertibleTo(m))

	// Dynamic never beats an exact overload.
	assert.Less(t, MustParse("i").IsConvertibleTo(m), 1.0)
}

func TestIsConvertibleTo_None(t *testing.T) {
	none := MustParse("[_]")
	assert.Greater(t, none.IsConvertibleTo(MustParse("[i]")), 0.0)
	assert.Equal(t, 0.0, MustParse("[i]").IsConvertibleTo(none))
}

func TestIsConvertibleTo_AnnotationsIgnored(t *testing.T) {
	a := MustParse("(i<x>i<y>)")
	b := MustParse("(ii)")
	assert.Equal(t, 1.0, a.IsConvertibleTo(b))
	assert.Equal(t, 1.0, b.IsConvertibleTo(a))
}
