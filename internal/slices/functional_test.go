package slices

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	assert.Equal(t, []string{"1", "2"}, Map([]int{1, 2}, strconv.Itoa))
	assert.Empty(t, Map([]int(nil), strconv.Itoa))
}

func TestUniq(t *testing.T) {
	assert.Equal(t, []int{3, 1, 2}, Uniq([]int{3, 1, 3, 2, 1}))
	assert.Nil(t, Uniq([]int{}))
}
