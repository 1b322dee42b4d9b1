package abi

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlignTo(t *testing.T) {
	tests := []struct {
		offset, align, want uint32
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 8, 8},
		{7, 1, 7},
		{7, 0, 7},
		{9, 2, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AlignTo(tt.offset, tt.align), "AlignTo(%d, %d)", tt.offset, tt.align)
		assert.Equal(t, int(tt.want), AlignInt(int(tt.offset), int(tt.align)))
	}
}

func TestSafeArithmetic(t *testing.T) {
	v, ok := SafeMulU32(1<<16, 1<<15)
	assert.True(t, ok)
	assert.Equal(t, uint32(1<<31), v)

	_, ok = SafeMulU32(1<<16, 1<<16)
	assert.False(t, ok)

	_, ok = SafeAddU32(math.MaxUint32, 1)
	assert.False(t, ok)

	v, ok = SafeAddU32(3, 4)
	assert.True(t, ok)
	assert.Equal(t, uint32(7), v)
}
