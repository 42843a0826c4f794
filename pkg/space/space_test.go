package space

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		k      int
		length int
		total  uint64
	}{
		{name: "abc^3", k: 3, length: 3, total: 27},
		{name: "single symbol", k: 1, length: 40, total: 1},
		{name: "binary 64", k: 2, length: 63, total: 1 << 63},
		{name: "printable 9", k: 94, length: 9, total: 572994802228616704},
		{name: "length one", k: 94, length: 1, total: 94},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, err := New(tt.k, tt.length)
			require.NoError(t, err)

			assert.Equal(t, tt.total, d.Total)
			assert.Equal(t, uint64(tt.k), d.Base)
			assert.Equal(t, tt.length, d.Length)
		})
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	_, err := New(0, 3)
	require.ErrorIs(t, err, ErrInvalidAlphabet)

	_, err = New(3, 0)
	require.ErrorIs(t, err, ErrInvalidLength)

	_, err = New(94, 20)
	require.ErrorIs(t, err, ErrCombinatorialOverflow)

	_, err = New(2, 64)
	require.ErrorIs(t, err, ErrCombinatorialOverflow)

	_, err = New(94, 10)
	require.ErrorIs(t, err, ErrCombinatorialOverflow)
}

func TestDescriptor_Bytes(t *testing.T) {
	t.Parallel()

	d, err := New(3, 3)
	require.NoError(t, err)

	assert.Equal(t, uint64(4), d.RecordBytes(1))
	assert.Equal(t, uint64(108), d.Bytes(d.Total, 1))
	assert.Equal(t, uint64(10*27), d.Bytes(d.Total, 3))
	assert.Equal(t, uint64(math.MaxUint64), d.Bytes(math.MaxUint64, 1))
}

func TestDescriptor_Clamp(t *testing.T) {
	t.Parallel()

	d, err := New(10, 3)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), d.Clamp(0, 0))
	assert.Equal(t, uint64(42), d.Clamp(42, 0))
	assert.Equal(t, uint64(1000), d.Clamp(0, NoLimit))
	assert.Equal(t, uint64(10), d.Clamp(0, 10))
	assert.Equal(t, uint64(510), d.Clamp(500, 10))
	assert.Equal(t, uint64(1000), d.Clamp(995, 10))
	assert.Equal(t, uint64(1000), d.Clamp(5, math.MaxUint64))
}
