package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/combogen/pkg/alphabet"
)

func collect(t *testing.T, alpha *alphabet.Alphabet, length int, start, count uint64) []string {
	t.Helper()

	c, err := NewCursor(alpha, length, start)
	require.NoError(t, err)

	out := make([]string, 0, count)

	for i := range count {
		out = append(out, string(c.Record()))

		wrapped := c.Next()
		if i+1 < count {
			require.False(t, wrapped)
		}
	}

	return out
}

func expected(alpha *alphabet.Alphabet, length int, start, count uint64) []string {
	base := uint64(alpha.Len())
	digits := make([]uint32, length)
	out := make([]string, 0, count)

	for r := start; r < start+count; r++ {
		_ = ToDigits(r, base, digits)
		out = append(out, string(AppendSymbols(nil, digits, alpha))+"\n")
	}

	return out
}

func TestCursor_MatchesCodec(t *testing.T) {
	t.Parallel()

	alphabets := []*alphabet.Alphabet{
		alphabet.MustNew("ab"),
		alphabet.MustNew("xyz"),
		alphabet.MustNew("aé€"),
	}

	for _, alpha := range alphabets {
		for length := 1; length <= 6; length++ {
			total := pow(uint64(alpha.Len()), length)

			assert.Equal(t, expected(alpha, length, 0, total), collect(t, alpha, length, 0, total),
				"alphabet %q length %d", alpha.String(), length)
		}
	}
}

func TestCursor_MidRangeStart(t *testing.T) {
	t.Parallel()

	alpha := alphabet.MustNew("0123456789")

	got := collect(t, alpha, 4, 998, 4)
	assert.Equal(t, []string{"0998\n", "0999\n", "1000\n", "1001\n"}, got)
}

func TestCursor_WrapsAtEnd(t *testing.T) {
	t.Parallel()

	c, err := NewCursor(alphabet.MustNew("abc"), 3, 26)
	require.NoError(t, err)

	assert.Equal(t, "ccc\n", string(c.Record()))
	assert.True(t, c.Next())
	assert.Equal(t, "aaa\n", string(c.Record()))
}

func TestCursor_OutOfRange(t *testing.T) {
	t.Parallel()

	_, err := NewCursor(alphabet.MustNew("abc"), 3, 27)
	require.ErrorIs(t, err, ErrRankOutOfRange)
}

func TestCursor_AppendTo(t *testing.T) {
	t.Parallel()

	c, err := NewCursor(alphabet.MustNew("ab"), 2, 1)
	require.NoError(t, err)

	buf := c.AppendTo(nil)
	c.Next()
	buf = c.AppendTo(buf)

	assert.Equal(t, "ab\nba\n", string(buf))
	assert.Equal(t, []uint32{1, 0}, c.digits)
}

func BenchmarkCursor_Next(b *testing.B) {
	c, err := NewCursor(alphabet.Default(), 8, 0)
	require.NoError(b, err)

	buf := make([]byte, 0, 1<<20)

	b.ResetTimer()

	for b.Loop() {
		buf = c.AppendTo(buf[:0])
		c.Next()
	}
}
