package metaobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmerejkowsky/libqi/pkg/signature"
)

func buildCalculator(t *testing.T) *MetaObject {
	t.Helper()
	mo, err := NewBuilder().
		AddMethod(ReservedIDLimit, "i add::(ii)").
		AddMethod(ReservedIDLimit+1, "d add::(dd)").
		AddMethod(ReservedIDLimit+2, "s describe::()").
		AddSignal(ReservedIDLimit, "resultReady", "(i)").
		Freeze()
	require.NoError(t, err)
	return mo
}

func TestMetaObject_Lookups(t *testing.T) {
	mo := buildCalculator(t)

	m, ok := mo.Method(ReservedIDLimit)
	require.True(t, ok)
	assert.Equal(t, "add", m.Name)
	assert.Equal(t, "(ii)", m.Parameters.String())
	assert.Equal(t, "i", m.Returns.String())

	_, ok = mo.Method(9999)
	assert.False(t, ok)

	s, ok := mo.Signal(ReservedIDLimit)
	require.True(t, ok)
	assert.Equal(t, "resultReady", s.Name)

	_, ok = mo.Signal(1)
	assert.False(t, ok)
}

func TestMetaObject_FindMethod(t *testing.T) {
	mo := buildCalculator(t)

	t.Run("exact overload wins", func(t *testing.T) {
		m, err := mo.FindMethod("add", signature.MustParse("(ii)"))
		require.NoError(t, err)
		assert.Equal(t, ReservedIDLimit, m.ID)

		m, err = mo.FindMethod("add", signature.MustParse("(dd)"))
		require.NoError(t, err)
		assert.Equal(t, ReservedIDLimit+1, m.ID)
	})

	t.Run("convertible parameters pick the best score", func(t *testing.T) {
		// float params land on the double overload, not the int one.
		m, err := mo.FindMethod("add", signature.MustParse("(ff)"))
		require.NoError(t, err)
		assert.Equal(t, ReservedIDLimit+1, m.ID)
	})

	t.Run("unknown name fails", func(t *testing.T) {
		_, err := mo.FindMethod("multiply", signature.MustParse("(ii)"))
		var notFound *MethodNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "multiply", notFound.Name)
	})

	t.Run("incompatible parameters fail", func(t *testing.T) {
		_, err := mo.FindMethod("add", signature.MustParse("(ss)"))
		var notFound *MethodNotFoundError
		require.ErrorAs(t, err, &notFound)
	})
}

func TestMetaObject_FindMethodTieBreaksOnLowerID(t *testing.T) {
	mo, err := NewBuilder().
		AddMethod(20, "i echo::(m)").
		AddMethod(12, "i echo::(m)").
		Freeze()
	require.NoError(t, err)

	m, err := mo.FindMethod("echo", signature.MustParse("(s)"))
	require.NoError(t, err)
	assert.EqualValues(t, 12, m.ID)
}

func TestBuilder_Errors(t *testing.T) {
	_, err := NewBuilder().AddMethod(10, "i broken").Freeze()
	assert.Error(t, err)

	_, err = NewBuilder().
		AddMethod(10, "i add::(ii)").
		AddMethod(10, "i add::(dd)").
		Freeze()
	assert.Error(t, err, "duplicate ids must be rejected")

	_, err = NewBuilder().AddSignal(10, "tick", "not-a-signature").Freeze()
	assert.Error(t, err)
}
