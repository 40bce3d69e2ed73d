package vars

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore(t *testing.T) {
	s := NewStore()
	s.Set("b", 1)
	s.Merge(map[string]any{"a": "x", "b": 2})

	v, ok := s.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, []string{"a", "b"}, s.Names())

	snap := s.Snapshot()
	snap["c"] = 3
	assert.Equal(t, 2, s.Len())

	s.Delete("a")
	_, ok = s.Get("a")
	assert.False(t, ok)

	s.Clear()
	assert.Zero(t, s.Len())
}

func TestStore_NilAndZero(t *testing.T) {
	var nilStore *Store
	_, ok := nilStore.Get("x")
	assert.False(t, ok)
	assert.Zero(t, nilStore.Len())
	assert.Empty(t, nilStore.Snapshot())

	var zero Store
	zero.Set("x", 1)
	assert.Equal(t, 1, zero.Len())
}
