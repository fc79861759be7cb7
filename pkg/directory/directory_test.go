package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_RegisterAndLookup(t *testing.T) {
	dir := NewMemory()

	_, err := dir.Register("clock", "127.0.0.1:9559").Value()
	require.NoError(t, err)

	endpoint, err := dir.Lookup("clock").Value()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9559", endpoint)
}

func TestMemory_RegisterReplaces(t *testing.T) {
	dir := NewMemory()
	dir.Register("clock", "old:1")
	dir.Register("clock", "new:2")

	endpoint, err := dir.Lookup("clock").Value()
	require.NoError(t, err)
	assert.Equal(t, "new:2", endpoint)
}

func TestMemory_LookupUnknown(t *testing.T) {
	dir := NewMemory()
	msg, err := dir.Lookup("ghost").Error()
	require.NoError(t, err)
	assert.Contains(t, msg, "service not found")
}

func TestMemory_EmptyNameRejected(t *testing.T) {
	dir := NewMemory()
	f := dir.Register("", "somewhere:1")
	hasError, err := f.HasError(0)
	require.NoError(t, err)
	assert.True(t, hasError)
}

func TestMemory_Unregister(t *testing.T) {
	dir := NewMemory()
	dir.Register("clock", "127.0.0.1:9559")

	_, err := dir.Unregister("clock").Value()
	require.NoError(t, err)

	msg, err := dir.Lookup("clock").Error()
	require.NoError(t, err)
	assert.Contains(t, msg, "service not found")

	hasError, err := dir.Unregister("clock").HasError(0)
	require.NoError(t, err)
	assert.True(t, hasError, "unregistering twice must fail")
}

func TestMemory_ServicesSorted(t *testing.T) {
	dir := NewMemory()
	dir.Register("b", "1")
	dir.Register("a", "2")
	dir.Register("c", "3")

	names, err := dir.Services().Value()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)
}
