package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		raw, want string
	}{
		{"m_health", "m_health"},
		{"hello world", "hello_world"},
		{"__a--b__", "a_b"},
		{"9lives", "_9lives"},
		{"a.b::c", "a_b_c"},
		{"", "fb"},
		{"!!!", "fb"},
		{"___", "fb"},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, Identifier(test.raw, "fb"), "raw %q", test.raw)
	}

	long := Identifier(strings.Repeat("x", 300), "fb")
	assert.Len(t, long, MaxIdentifierLength)
}

func TestIdentifierProperties(t *testing.T) {
	inputs := []string{"a", "A b c", "\x01\x02", "0", "__init__", "héllo", "x<y>", strings.Repeat("_a", 100)}
	for _, in := range inputs {
		out := Identifier(in, "fallback")
		assert.Regexp(t, `^[A-Za-z_][A-Za-z0-9_]*$`, out, "input %q", in)
		assert.LessOrEqual(t, len(out), MaxIdentifierLength)
	}
}

func TestTypeName(t *testing.T) {
	tests := []struct {
		raw, want string
	}{
		{"int", "int"},
		{"unsigned   long long", "unsigned long long"},
		{"void*", "void*"},
		{"hkArray<hkVector4>", "hkArray<hkVector4>"},
		{"hkArray<int, hkContainerHeapAllocator>", "hkArray<int, hkContainerHeapAllocator>"},
		{"std::vector<int>", "fb"},
		{"const unsigned int*", "const unsigned int*"},
		{"Foo&&", "Foo&&"},
		{"hkpRigidBody*", "hkpRigidBody*"},
		{"Foo[4]", "fb"},
		{"pm4B", "fb"},
		{"hka4B*", "fb"},
		{"hkArray<hka4B>", "fb"},
		{"x", "fb"},
		{"Foo<bar>", "fb"},
		{"Foo;", "fb"},
		{"***", "fb"},
		{"", "fb"},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, TypeName(test.raw, "fb"), "raw %q", test.raw)
	}
}

func TestIsNoiseArtifact(t *testing.T) {
	for _, s := range []string{"pm4B", "xc4B", "t4B", "xb4B", "abc1234B"} {
		assert.True(t, IsNoiseArtifact(s), s)
	}
	for _, s := range []string{"Pm4B", "pm4b", "wxyz1B", "m_value", "pm12345B"} {
		assert.False(t, IsNoiseArtifact(s), s)
	}
}

func TestDecodeTypeData(t *testing.T) {
	offset, flags := DecodeTypeData(0)
	assert.Equal(t, uint16(0), offset)
	assert.Equal(t, uint16(0), flags)

	offset, flags = DecodeTypeData(0xFFFFFFFFFFFFFFFF)
	assert.Equal(t, uint16(0xFFFF), offset)
	assert.Equal(t, uint16(0xFFFF), flags)

	offset, flags = DecodeTypeData(0x1234_0003_0010)
	assert.Equal(t, uint16(0x0010), offset)
	assert.Equal(t, uint16(0x0003), flags)
}

func TestDescribeType(t *testing.T) {
	strs := map[uint64]string{
		0x5000: "hkStringPtr",
		0x6000: "garbage type!",
	}
	lookup := func(ptr uint64) (string, bool) {
		s, ok := strs[ptr]
		return s, ok
	}
	table := DefaultTagTable()

	assert.Equal(t, UnknownType, DescribeType(0, table, lookup))
	assert.Equal(t, "int", DescribeType(3, table, lookup))
	assert.Equal(t, "void*", DescribeType(7, table, lookup))
	assert.Equal(t, "hkStringPtr", DescribeType(0x5000, table, lookup))
	assert.Equal(t, "TypeTag_0x6000", DescribeType(0x6000, table, lookup))
	assert.Equal(t, "TypeTag_0x8", DescribeType(8, table, nil))

	custom := TagTable{8: "hkHalf"}
	assert.Equal(t, "hkHalf", DescribeType(8, custom, nil))
	assert.Equal(t, "TypeTag_0x3", DescribeType(3, custom, nil))
}
