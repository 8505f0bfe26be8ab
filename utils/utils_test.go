package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToString(t *testing.T) {
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "abc", ToString("abc"))
	assert.Equal(t, "7", ToString(7))
	assert.Equal(t, "7", ToString(int64(7)))
	assert.Equal(t, "7.5", ToString(7.5))
	assert.Equal(t, "true", ToString(true))
}

func TestIDEqual(t *testing.T) {
	assert.True(t, IDEqual("a", "a"))
	assert.True(t, IDEqual(7, 7))
	assert.True(t, IDEqual(7, "7"), "ids compare by normalized string form")
	assert.True(t, IDEqual(int64(7), 7))
	assert.False(t, IDEqual("a", "b"))
	assert.False(t, IDEqual(nil, "a"))
	assert.True(t, IDEqual(nil, nil))
}

func TestContainsAndIndexOfID(t *testing.T) {
	ids := []interface{}{"a", 2, "c"}

	assert.True(t, ContainsID(ids, "a"))
	assert.True(t, ContainsID(ids, "2"))
	assert.False(t, ContainsID(ids, "x"))

	assert.Equal(t, 1, IndexOfID(ids, 2))
	assert.Equal(t, -1, IndexOfID(ids, "x"))
}

func TestHasDuplicateIDs(t *testing.T) {
	assert.False(t, HasDuplicateIDs(nil))
	assert.False(t, HasDuplicateIDs([]interface{}{"a", "b"}))
	assert.True(t, HasDuplicateIDs([]interface{}{"a", "a"}))
	assert.True(t, HasDuplicateIDs([]interface{}{7, "7"}), "duplicates across representations count")
}

func TestContains(t *testing.T) {
	assert.True(t, Contains([]string{"a", "b"}, "a"))
	assert.False(t, Contains([]string{"a", "b"}, "c"))
	assert.False(t, Contains(nil, "a"))
}
