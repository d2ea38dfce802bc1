// Package accessor gives the decoder bounds-checked, fault-tolerant reads over a
// memory image. Every read either succeeds or reports the address unreadable,
// nothing here panics on bad input.
package accessor

import (
	"encoding/binary"
	"fmt"

	"refldump/process"
)

// CStringState distinguishes why a string read produced what it did
type CStringState int

const (
	CStringAbsent  CStringState = iota // pointer null or outside readable memory
	CStringEmpty                       // first byte terminates
	CStringFaulted                     // read failed before a terminator
	CStringOK
)

func (s CStringState) String() string {
	switch s {
	case CStringAbsent:
		return "absent"
	case CStringEmpty:
		return "empty"
	case CStringFaulted:
		return "faulted"
	case CStringOK:
		return "ok"
	}
	return fmt.Sprintf("CStringState(%d)", int(s))
}

// CString is the result of ReadCString. Value holds the printable prefix that was
// read, it can be non-empty even when State is CStringFaulted.
type CString struct {
	State CStringState
	Value string
	// Stopped is true when reading ended on a non-printable byte rather than NUL
	Stopped bool
}

// MaxASCIILength is the longest string IsASCIILike accepts
const MaxASCIILength = 128

// Accessor reads typed values out of an image
type Accessor struct {
	image process.Image
}

func New(image process.Image) *Accessor {
	return &Accessor{image: image}
}

func (a *Accessor) Image() process.Image {
	return a.image
}

func (a *Accessor) read(addr process.ProcessMemoryAddress, n int) ([]byte, error) {
	data, err := a.image.ReadMemory(addr, process.ProcessMemorySize(n))
	if err != nil {
		return nil, fmt.Errorf("read %d bytes at %s: %w", n, addr.ToString(), process.ErrUnreadable)
	}
	if len(data) < n {
		return nil, fmt.Errorf("read %d of %d bytes at %s: %w", len(data), n, addr.ToString(), process.ErrUnreadable)
	}
	return data, nil
}

// ReadU32 reads a little-endian uint32
func (a *Accessor) ReadU32(addr process.ProcessMemoryAddress) (uint32, error) {
	data, err := a.read(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// ReadU64 reads a little-endian uint64
func (a *Accessor) ReadU64(addr process.ProcessMemoryAddress) (uint64, error) {
	data, err := a.read(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

// ReadPointer reads a 64-bit pointer
func (a *Accessor) ReadPointer(addr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	v, err := a.ReadU64(addr)
	return process.ProcessMemoryAddress(v), err
}

// ReadBytes returns up to n bytes at addr, short (possibly empty) when the read
// runs into unreadable memory.
func (a *Accessor) ReadBytes(addr process.ProcessMemoryAddress, n int) []byte {
	if n <= 0 {
		return []byte{}
	}
	data, _ := a.image.ReadMemory(addr, process.ProcessMemorySize(n))
	if data == nil {
		return []byte{}
	}
	return data
}

// IsValidPointer reports whether addr is non-null and lies in initialized, readable memory
func (a *Accessor) IsValidPointer(addr process.ProcessMemoryAddress) bool {
	return addr != 0 && a.image.IsValidAddress(addr)
}

func isPrintable(b byte) bool {
	return b >= 0x20 && b <= 0x7E
}

// ReadCString reads at most limit bytes at addr, stopping at NUL or at the first
// non-printable byte.
func (a *Accessor) ReadCString(addr process.ProcessMemoryAddress, limit int) CString {
	if !a.IsValidPointer(addr) {
		return CString{State: CStringAbsent}
	}
	if limit <= 0 {
		return CString{State: CStringEmpty}
	}

	data, err := a.image.ReadMemory(addr, process.ProcessMemorySize(limit))

	for i, b := range data {
		if b == 0 || !isPrintable(b) {
			if i == 0 {
				return CString{State: CStringEmpty, Stopped: b != 0}
			}
			return CString{State: CStringOK, Value: string(data[:i]), Stopped: b != 0}
		}
	}

	if err != nil || len(data) < limit {
		return CString{State: CStringFaulted, Value: string(data)}
	}

	// limit reached without a terminator
	return CString{State: CStringOK, Value: string(data)}
}

// IsASCIILike accepts only successfully read, printable strings of at most MaxASCIILength bytes
func IsASCIILike(s CString) bool {
	if s.State != CStringOK || len(s.Value) == 0 || len(s.Value) > MaxASCIILength {
		return false
	}
	for i := 0; i < len(s.Value); i++ {
		if !isPrintable(s.Value[i]) {
			return false
		}
	}
	return true
}
