// Package units provides binary size multipliers and human-readable size parsing.
package units

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/combogen/pkg/safeconv"
)

// Binary size multipliers.
const (
	KiB = 1024
	MiB = 1024 * KiB
)

// ErrSizeTooLarge is returned when a parsed size does not fit in an int.
var ErrSizeTooLarge = errors.New("size too large")

// ParseSize parses sizes such as "64KiB", "2MB" or "4096" into bytes.
// An empty string yields def.
func ParseSize(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", s, err)
	}

	if n > uint64(safeconv.MaxInt) {
		return 0, fmt.Errorf("%w: %q", ErrSizeTooLarge, s)
	}

	return int(n), nil
}

// FormatSize renders a byte count using IEC units.
func FormatSize(n uint64) string {
	return humanize.IBytes(n)
}
