package sanitize

import "fmt"

// UnknownType is rendered when a member carries no usable type information
const UnknownType = "unknown_t"

// DecodeTypeData splits a member's packed type data into its field offset
// (low 16 bits) and flags (next 16 bits). The upper 32 bits are ignored.
func DecodeTypeData(v uint64) (offset, flags uint16) {
	return uint16(v & 0xFFFF), uint16((v >> 16) & 0xFFFF)
}

// TagTable maps small integer type tags to primitive type names.
// The mapping is a best guess and callers may substitute their own. Table names
// are trusted and not passed through TypeName.
type TagTable map[uint64]string

// DefaultTagTable returns a fresh copy of the built-in tag mapping
func DefaultTagTable() TagTable {
	return TagTable{
		0x1: "bool",
		0x2: "short",
		0x3: "int",
		0x4: "float",
		0x5: "long long",
		0x6: "double",
		0x7: "void*",
	}
}

// StringLookup resolves a value as a pointer to a printable string
type StringLookup func(ptr uint64) (string, bool)

// DescribeType renders a member's signature/type value as a C++ type name.
// Strings found through lookup are sanitized, anything unusable becomes TypeTag_0x<HEX>.
func DescribeType(sig uint64, table TagTable, lookup StringLookup) string {
	if sig == 0 {
		return UnknownType
	}

	if name, ok := table[sig]; ok {
		return name
	}

	if lookup != nil {
		if s, ok := lookup(sig); ok {
			if safe := TypeName(s, ""); safe != "" {
				return safe
			}
		}
	}

	return fmt.Sprintf("TypeTag_0x%X", sig)
}
