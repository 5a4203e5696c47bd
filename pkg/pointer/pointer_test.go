package pointer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointers(t *testing.T) {
	assert.EqualValues(t, 4, *Uint64(4))
	assert.EqualValues(t, 2.5, *Float64(2.5))
	assert.True(t, *Bool(true))
	assert.Equal(t, "value", *To("value"))

	// Each call returns a distinct copy
	a, b := Uint64(1), Uint64(1)
	assert.NotSame(t, a, b)
}

func TestValueOrDefault(t *testing.T) {
	assert.EqualValues(t, 7, ValueOrDefault(Uint64(7), 3))
	assert.EqualValues(t, 3, ValueOrDefault[uint64](nil, 3))
}
