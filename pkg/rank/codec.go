// Package rank converts between a combination's rank and its digit vector,
// and renders digit vectors as symbol sequences.
//
// Digit 0 is the most significant position and the first emitted symbol; the
// last digit is the least significant one.
package rank

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/combogen/pkg/alphabet"
)

// ErrRankOutOfRange is returned when a rank does not fit the digit vector.
var ErrRankOutOfRange = errors.New("rank out of range")

// ToDigits writes the base-`base` expansion of r into digits.
// It fails when r >= base^len(digits).
func ToDigits(r, base uint64, digits []uint32) error {
	rem := r

	for pos := len(digits) - 1; pos >= 0; pos-- {
		digits[pos] = uint32(rem % base)
		rem /= base
	}

	if rem != 0 {
		return fmt.Errorf("%w: %d does not fit %d digits of base %d", ErrRankOutOfRange, r, len(digits), base)
	}

	return nil
}

// FromDigits is the inverse of ToDigits. The caller guarantees the result
// fits in uint64.
func FromDigits(digits []uint32, base uint64) uint64 {
	var r uint64

	for _, d := range digits {
		r = r*base + uint64(d)
	}

	return r
}

// Increment adds one to the digit vector, propagating the carry from the
// last position backwards. It reports true when the vector wrapped past the
// final combination; the digits are then all zero.
func Increment(digits []uint32, base uint32) bool {
	for pos := len(digits) - 1; pos >= 0; pos-- {
		digits[pos]++
		if digits[pos] < base {
			return false
		}

		digits[pos] = 0
	}

	return true
}

// AppendSymbols appends the symbols selected by digits to dst.
func AppendSymbols(dst []byte, digits []uint32, alpha *alphabet.Alphabet) []byte {
	if table := alpha.Bytes(); table != nil {
		for _, d := range digits {
			dst = append(dst, table[d])
		}

		return dst
	}

	for _, d := range digits {
		dst = append(dst, alpha.Symbol(int(d))...)
	}

	return dst
}
