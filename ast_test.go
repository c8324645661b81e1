package grako

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrame_SetAutoPromotesToList(t *testing.T) {
	f := NewFrame()
	f.Set("x", "a", false)
	assert.Equal(t, "a", mustGet(t, f, "x"))

	f.Set("x", "b", false)
	assert.Equal(t, []Value{"a", "b"}, mustGet(t, f, "x"))
}

func TestFrame_ForceListAlwaysAccumulates(t *testing.T) {
	f := NewFrame()
	f.Set("items", "a", true)
	assert.Equal(t, []Value{"a"}, mustGet(t, f, "items"))

	f.Set("items", "b", true)
	assert.Equal(t, []Value{"a", "b"}, mustGet(t, f, "items"))
}

func TestFrame_Declare(t *testing.T) {
	f := NewFrame()
	f.Declare("scalar", false)
	f.Declare("list", true)

	v, ok := f.Get("scalar")
	assert.True(t, ok)
	assert.Nil(t, v)

	v, ok = f.Get("list")
	assert.True(t, ok)
	assert.Equal(t, []Value{}, v)
}

func TestFrame_Override(t *testing.T) {
	f := NewFrame()
	f.Set("a", "1", false)
	_, ok := f.Override()
	assert.False(t, ok)

	f.Set("@", "replacement", false)
	v, ok := f.Override()
	assert.True(t, ok)
	assert.Equal(t, "replacement", v)
}

func TestFrame_KeysPreservesOrder(t *testing.T) {
	f := NewFrame()
	f.Set("third", 3, false)
	f.Set("first", 1, false)
	f.Set("second", 2, false)
	assert.Equal(t, []string{"third", "first", "second"}, f.Keys())
}

func TestRewriteReserved(t *testing.T) {
	assert.Equal(t, "pos_", rewriteReserved("pos"))
	assert.Equal(t, "pos_", rewriteReserved("pos_"))
	assert.Equal(t, "name", rewriteReserved("name"))
}

func TestFrame_Merge(t *testing.T) {
	f := NewFrame()
	f.Set("a", "1", false)

	other := NewFrame()
	other.Set("a", "2", false)
	other.Set("b", "3", false)

	f.Merge(other)
	assert.Equal(t, []Value{"1", "2"}, mustGet(t, f, "a"))
	assert.Equal(t, "3", mustGet(t, f, "b"))
}

func mustGet(t *testing.T, f *Frame, name string) Value {
	t.Helper()
	v, ok := f.Get(name)
	assert.True(t, ok)
	return v
}
