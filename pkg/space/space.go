// Package space describes the combination space for an alphabet size and a
// combination length, and partitions rank intervals into work ranges.
package space

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// Sentinel errors for space construction.
var (
	ErrInvalidAlphabet       = errors.New("alphabet must contain at least one symbol")
	ErrInvalidLength         = errors.New("combination length must be at least 1")
	ErrCombinatorialOverflow = errors.New("combination count overflows uint64")
)

// NoLimit is the limit value for an unbounded run.
const NoLimit uint64 = math.MaxUint64

// Descriptor is the immutable size of a combination space.
type Descriptor struct {
	// Base is the alphabet size K.
	Base uint64
	// Length is the combination length L.
	Length int
	// Total is K^L.
	Total uint64
}

// New computes K^L with an overflow check after every multiplication.
func New(k, length int) (Descriptor, error) {
	if k < 1 {
		return Descriptor{}, fmt.Errorf("%w: got %d", ErrInvalidAlphabet, k)
	}

	if length < 1 {
		return Descriptor{}, fmt.Errorf("%w: got %d", ErrInvalidLength, length)
	}

	base := uint64(k)
	total := uint64(1)

	for range length {
		hi, lo := bits.Mul64(total, base)
		if hi != 0 {
			return Descriptor{}, fmt.Errorf("%w: %d^%d", ErrCombinatorialOverflow, k, length)
		}

		total = lo
	}

	return Descriptor{Base: base, Length: length, Total: total}, nil
}

// RecordBytes returns the encoded size of one record for symbols of the given
// width, including the newline.
func (d Descriptor) RecordBytes(symbolWidth int) uint64 {
	return uint64(d.Length)*uint64(symbolWidth) + 1
}

// Bytes estimates the output size of count records, saturating at MaxUint64.
func (d Descriptor) Bytes(count uint64, symbolWidth int) uint64 {
	hi, lo := bits.Mul64(count, d.RecordBytes(symbolWidth))
	if hi != 0 {
		return math.MaxUint64
	}

	return lo
}

// Clamp returns the exclusive end of a run starting at start and producing at
// most limit combinations. The result never exceeds Total.
func (d Descriptor) Clamp(start, limit uint64) uint64 {
	end, carry := bits.Add64(start, limit, 0)
	if carry != 0 || end > d.Total {
		return d.Total
	}

	return end
}
