// Package reflection locates and decodes the engine's class initializer records:
// the static tables that register every reflected class with its name, parent and
// member list.
package reflection

import (
	"fmt"

	"refldump/accessor"
	"refldump/process"
)

// ClassInitializer is the 40-byte record registering one class
type ClassInitializer struct {
	Name        uint64 // 0x00 char*
	ParentName  uint64 // 0x08 char*
	Unknown     uint64 // 0x10
	Members     uint64 // 0x18 MemberInitializer*
	MemberCount uint32 // 0x20
	_           uint32
}

// MemberInitializer is the 24-byte record describing one field
type MemberInitializer struct {
	Signature uint64 // 0x00 type tag or char*
	Name      uint64 // 0x08 char*
	TypeData  uint64 // 0x10 offset | flags<<16
}

const (
	ClassInitializerSize  = 0x28
	MemberInitializerSize = 0x18
)

// Limits bound how much a corrupted or hostile image can make the dumper read
type Limits struct {
	MaxMembers  int // members decoded per class
	MaxClasses  int // candidates taken from a pattern scan
	StringLimit int // bytes read per string
}

func DefaultLimits() Limits {
	return Limits{
		MaxMembers:  4096,
		MaxClasses:  20000,
		StringLimit: 128,
	}
}

// ClassRecord is a ClassInitializer as read from the image, with its name resolved
// and its member count clamped.
type ClassRecord struct {
	Address     process.ProcessMemoryAddress
	Raw         ClassInitializer
	Name        accessor.CString
	MemberCount int
	Clamped     bool
}

// DecodedField is one member line of a dumped class
type DecodedField struct {
	Offset uint16
	Flags  uint16
	Type   string
	Name   string
}

// DecodedClass is a class ready to be emitted
type DecodedClass struct {
	Address        process.ProcessMemoryAddress
	Name           string
	Parent         string // empty when the class has no parent
	Fields         []DecodedField
	RawMemberCount uint32
	Clamped        bool
	Truncated      bool
	TruncatedAt    int
}

// Policy selects how implausible records are treated
type Policy int

const (
	// PolicyStrict drops records that fail validation
	PolicyStrict Policy = iota
	// PolicyLenient renders every record, with placeholder names where needed
	PolicyLenient
)

func (p Policy) String() string {
	switch p {
	case PolicyStrict:
		return "strict"
	case PolicyLenient:
		return "lenient"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}
