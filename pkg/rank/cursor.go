package rank

import (
	"github.com/Sumatoshi-tech/combogen/pkg/alphabet"
	"github.com/Sumatoshi-tech/combogen/pkg/safeconv"
)

const recordTerminator = '\n'

// Cursor walks consecutive ranks, keeping both the digit vector and the
// rendered newline-terminated record for the current rank.
//
// For single-byte alphabets Next rewrites only the positions touched by the
// carry, so stepping is O(1) amortized and emitting a record is one copy.
// Other alphabets re-render the record on every step.
type Cursor struct {
	alpha  *alphabet.Alphabet
	table  []byte
	digits []uint32
	record []byte
	base   uint32
	render func(c *Cursor)
}

// NewCursor positions a cursor of the given length at rank start.
func NewCursor(alpha *alphabet.Alphabet, length int, start uint64) (*Cursor, error) {
	base := safeconv.MustIntToUint32(alpha.Len())
	digits := make([]uint32, length)

	err := ToDigits(start, uint64(base), digits)
	if err != nil {
		return nil, err
	}

	c := &Cursor{
		alpha:  alpha,
		table:  alpha.Bytes(),
		digits: digits,
		base:   base,
		record: make([]byte, 0, length*alpha.MaxWidth()+1),
	}

	c.render = selectRenderer(c.table != nil, length)
	c.render(c)

	return c, nil
}

// selectRenderer picks the full-render routine once per cursor so the hot
// path never branches on length or encoding.
func selectRenderer(singleByte bool, length int) func(c *Cursor) {
	if !singleByte {
		return renderSymbols
	}

	switch length {
	case 1:
		return renderBytes1
	case 2:
		return renderBytes2
	case 3:
		return renderBytes3
	case 4:
		return renderBytes4
	default:
		return renderBytes
	}
}

func renderSymbols(c *Cursor) {
	c.record = AppendSymbols(c.record[:0], c.digits, c.alpha)
	c.record = append(c.record, recordTerminator)
}

func renderBytes(c *Cursor) {
	c.record = c.record[:len(c.digits)+1]

	for i, d := range c.digits {
		c.record[i] = c.table[d]
	}

	c.record[len(c.digits)] = recordTerminator
}

func renderBytes1(c *Cursor) {
	c.record = append(c.record[:0], c.table[c.digits[0]], recordTerminator)
}

func renderBytes2(c *Cursor) {
	c.record = append(c.record[:0], c.table[c.digits[0]], c.table[c.digits[1]], recordTerminator)
}

func renderBytes3(c *Cursor) {
	c.record = append(c.record[:0],
		c.table[c.digits[0]], c.table[c.digits[1]], c.table[c.digits[2]], recordTerminator)
}

func renderBytes4(c *Cursor) {
	c.record = append(c.record[:0],
		c.table[c.digits[0]], c.table[c.digits[1]], c.table[c.digits[2]], c.table[c.digits[3]],
		recordTerminator)
}

// Record returns the current record including its trailing newline. The
// slice is overwritten by Next.
func (c *Cursor) Record() []byte {
	return c.record
}

// AppendTo appends the current record to dst.
func (c *Cursor) AppendTo(dst []byte) []byte {
	return append(dst, c.record...)
}

// Next advances to the following rank. It reports true when the cursor
// wrapped past the last combination.
func (c *Cursor) Next() bool {
	if c.table == nil {
		wrapped := Increment(c.digits, c.base)
		c.render(c)

		return wrapped
	}

	for pos := len(c.digits) - 1; pos >= 0; pos-- {
		d := c.digits[pos] + 1
		if d < c.base {
			c.digits[pos] = d
			c.record[pos] = c.table[d]

			return false
		}

		c.digits[pos] = 0
		c.record[pos] = c.table[0]
	}

	return true
}
