package process

import (
	"fmt"
	"strconv"
	"strings"
)

// ProcessMemoryAddress represents an absolute address inside a memory image
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

// Add offsets the address by a signed displacement
func (pma ProcessMemoryAddress) Add(delta int64) ProcessMemoryAddress {
	return ProcessMemoryAddress(int64(pma) + delta)
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint

func (pms ProcessMemorySize) ToString() string {
	return fmt.Sprintf("%d bytes", uint(pms))
}

// AOB (Array of Bytes) represents a pattern to search for in memory
type AOB struct {
	Pattern []byte // The byte pattern to search for
	Mask    []byte // Mask where 0x00 means wildcard and anything else exact match
}

// IsValid checks if the AOB pattern is valid
func (aob AOB) IsValid() bool {
	return len(aob.Pattern) > 0 && len(aob.Pattern) == len(aob.Mask)
}

// Len returns the pattern length in bytes
func (aob AOB) Len() int {
	return len(aob.Pattern)
}

// IsWildcard reports whether position i matches any byte
func (aob AOB) IsWildcard(i int) bool {
	return aob.Mask[i] == 0
}

// String renders the pattern the way ParseAOB accepts it, e.g. "48 8D 15 ?? ?? ?? ??"
func (aob AOB) String() string {
	var sb strings.Builder
	for i, b := range aob.Pattern {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if aob.IsWildcard(i) {
			sb.WriteString("??")
			continue
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

func NewAOB(pattern, mask []byte) (AOB, error) {
	if len(pattern) != len(mask) {
		return AOB{}, fmt.Errorf("pattern and mask must be of the same length")
	}
	if len(pattern) == 0 {
		return AOB{}, fmt.Errorf("empty pattern")
	}
	return AOB{Pattern: pattern, Mask: mask}, nil
}

// ParseAOB parses a signature such as "48 8D 15 ?? ?? ?? ??" or "48,8d,15,?,?".
// "?" and "??" are wildcards, everything else must be a hex byte.
func ParseAOB(s string) (AOB, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	pattern := make([]byte, 0, len(parts))
	mask := make([]byte, 0, len(parts))

	for _, part := range parts {
		if part == "??" || part == "?" {
			pattern = append(pattern, 0)
			mask = append(mask, 0)
			continue
		}

		val, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(part), "0x"), 16, 8)
		if err != nil {
			return AOB{}, fmt.Errorf("invalid hex byte: %s", part)
		}
		pattern = append(pattern, byte(val))
		mask = append(mask, 0xFF)
	}

	return NewAOB(pattern, mask)
}
