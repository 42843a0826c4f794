// Package alphabet provides the ordered, deduplicated symbol set that
// combinations are drawn from.
package alphabet

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode/utf8"
)

// Sentinel errors for alphabet construction.
var (
	ErrEmpty         = errors.New("alphabet is empty")
	ErrInvalidUTF8   = errors.New("alphabet is not valid UTF-8")
	ErrUnknownPreset = errors.New("unknown alphabet preset")
	ErrNewline       = errors.New("alphabet must not contain a newline")
)

// Printable ASCII bounds of the default alphabet.
const (
	printableFirst = '!'
	printableLast  = '~'
)

// Named presets.
const (
	PresetPrintable = "printable"
	PresetLower     = "lower"
	PresetUpper     = "upper"
	PresetDigits    = "digits"
	PresetAlnum     = "alnum"
	PresetHex       = "hex"
)

const (
	lowerSymbols = "abcdefghijklmnopqrstuvwxyz"
	upperSymbols = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitSymbols = "0123456789"
	hexSymbols   = "0123456789abcdef"
)

// Alphabet is an immutable ordered set of symbols. Each symbol is a single
// Unicode code point, stored UTF-8 encoded.
type Alphabet struct {
	symbols    []string
	singleByte []byte // Non-nil when every symbol encodes to one byte.
	maxWidth   int
}

// New builds an alphabet from the code points of s. Duplicates are dropped,
// keeping the first occurrence.
func New(s string) (*Alphabet, error) {
	if s == "" {
		return nil, ErrEmpty
	}

	if !utf8.ValidString(s) {
		return nil, ErrInvalidUTF8
	}

	seen := make(map[rune]struct{}, len(s))
	symbols := make([]string, 0, len(s))

	for _, r := range s {
		if r == '\n' {
			return nil, ErrNewline
		}

		if _, dup := seen[r]; dup {
			continue
		}

		seen[r] = struct{}{}
		symbols = append(symbols, string(r))
	}

	return fromSymbols(symbols), nil
}

// MustNew is like New but panics on error. Intended for constants and tests.
func MustNew(s string) *Alphabet {
	a, err := New(s)
	if err != nil {
		panic(fmt.Sprintf("alphabet: %v", err))
	}

	return a
}

// Default returns the 94 printable ASCII characters '!'..'~'.
func Default() *Alphabet {
	var sb strings.Builder

	for c := printableFirst; c <= printableLast; c++ {
		sb.WriteByte(byte(c))
	}

	return MustNew(sb.String())
}

// Preset returns a named alphabet.
func Preset(name string) (*Alphabet, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PresetPrintable:
		return Default(), nil
	case PresetLower:
		return New(lowerSymbols)
	case PresetUpper:
		return New(upperSymbols)
	case PresetDigits:
		return New(digitSymbols)
	case PresetAlnum:
		return New(lowerSymbols + upperSymbols + digitSymbols)
	case PresetHex:
		return New(hexSymbols)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
}

// Presets lists the preset names accepted by Preset.
func Presets() []string {
	return []string{PresetPrintable, PresetLower, PresetUpper, PresetDigits, PresetAlnum, PresetHex}
}

func fromSymbols(symbols []string) *Alphabet {
	a := &Alphabet{symbols: symbols}

	single := make([]byte, 0, len(symbols))

	for _, sym := range symbols {
		a.maxWidth = max(a.maxWidth, len(sym))

		if len(sym) == 1 {
			single = append(single, sym[0])
		}
	}

	if len(single) == len(symbols) {
		a.singleByte = single
	}

	return a
}

// Len returns the number of symbols K.
func (a *Alphabet) Len() int {
	return len(a.symbols)
}

// Symbol returns the i-th symbol.
func (a *Alphabet) Symbol(i int) string {
	return a.symbols[i]
}

// First returns the lowest-ordered symbol.
func (a *Alphabet) First() string {
	return a.symbols[0]
}

// Last returns the highest-ordered symbol.
func (a *Alphabet) Last() string {
	return a.symbols[len(a.symbols)-1]
}

// Bytes returns the symbol table when every symbol is a single byte, or nil.
// The returned slice must not be modified.
func (a *Alphabet) Bytes() []byte {
	return a.singleByte
}

// MaxWidth returns the widest symbol size in bytes.
func (a *Alphabet) MaxWidth() int {
	return a.maxWidth
}

// String returns the symbols concatenated in order.
func (a *Alphabet) String() string {
	return strings.Join(a.symbols, "")
}

// Fingerprint returns a stable 64-bit FNV-1a hash of the ordered symbols.
// Two alphabets with the same symbols in a different order differ.
func (a *Alphabet) Fingerprint() uint64 {
	h := fnv.New64a()

	for _, sym := range a.symbols {
		_, _ = h.Write([]byte(sym))
		_, _ = h.Write([]byte{0})
	}

	return h.Sum64()
}
