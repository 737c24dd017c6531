package maps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromKeys(t *testing.T) {
	assert.Len(t, FromKeys([]string{"a", "b", "a"}), 2)
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]int{"c": 1, "a": 2, "b": 3}))
}
