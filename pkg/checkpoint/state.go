// Package checkpoint persists the resume point of a generation run.
//
// The resume record is a single decimal integer followed by a newline: the
// next rank to generate. A YAML sidecar next to it describes the space the
// rank belongs to, so a resume against a different alphabet or length is
// rejected instead of silently skipping the wrong ranks.
package checkpoint

import "strconv"

// MetadataVersion is the current sidecar format version.
const MetadataVersion = 1

// Space identifies the combination space a checkpoint belongs to.
type Space struct {
	AlphabetSize int
	Fingerprint  uint64
	Length       int
	Total        uint64
}

// Metadata is the sidecar record written alongside the resume value.
type Metadata struct {
	Version      int    `yaml:"version"`
	RunID        string `yaml:"run_id,omitempty"`
	AlphabetSize int    `yaml:"alphabet_size"`
	Fingerprint  string `yaml:"alphabet_fingerprint"`
	Length       int    `yaml:"length"`
	Total        uint64 `yaml:"total"`
	Next         uint64 `yaml:"next"`
	UpdatedAt    string `yaml:"updated_at"`
}

func fingerprintString(fp uint64) string {
	return strconv.FormatUint(fp, 16)
}

func (m *Metadata) space() Space {
	fp, _ := strconv.ParseUint(m.Fingerprint, 16, 64)

	return Space{
		AlphabetSize: m.AlphabetSize,
		Fingerprint:  fp,
		Length:       m.Length,
		Total:        m.Total,
	}
}
