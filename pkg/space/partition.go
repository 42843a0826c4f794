package space

import "fmt"

// Range is a half-open interval [Start, End) of ranks.
type Range struct {
	Start uint64
	End   uint64
}

// Len returns the number of ranks in the range.
func (r Range) Len() uint64 {
	return r.End - r.Start
}

// String implements fmt.Stringer.
func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Partition splits [start, end) into at most n contiguous ranges whose sizes
// differ by at most one; larger ranges come first. Fewer than n ranges are
// returned when the interval is shorter than n, and nil when it is empty.
func Partition(start, end uint64, n int) []Range {
	if end <= start || n < 1 {
		return nil
	}

	span := end - start
	parts := uint64(n)

	if span < parts {
		parts = span
	}

	per := span / parts
	extra := span % parts

	ranges := make([]Range, 0, parts)
	cur := start

	for i := range parts {
		size := per
		if i < extra {
			size++
		}

		ranges = append(ranges, Range{Start: cur, End: cur + size})
		cur += size
	}

	return ranges
}
