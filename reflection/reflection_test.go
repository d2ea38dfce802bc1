package reflection_test

import (
	"context"
	"testing"

	"refldump/accessor"
	"refldump/pod"
	"refldump/process"
	"refldump/process/memory_map"
	"refldump/process_blob"
	"refldump/reflection"
	"refldump/reflection/reflectiontest"
	"refldump/sanitize"
	"refldump/search"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(v uint64) process.ProcessMemoryAddress {
	return process.ProcessMemoryAddress(v)
}

func TestValidate(t *testing.T) {
	b := reflectiontest.NewBuilder()
	foo := reflectiontest.Foo(b)
	nullName := b.Class(reflection.ClassInitializer{Name: 0, Members: foo, MemberCount: 1})
	wildName := b.Class(reflection.ClassInitializer{Name: 0xDEAD0000, MemberCount: 0})
	binaryName := b.Class(reflection.ClassInitializer{Name: b.Bytes([]byte{0x01, 0x02, 0x00}), MemberCount: 0})
	badList := b.Class(reflection.ClassInitializer{Name: b.String("Bar"), Members: 0x10, MemberCount: 1})
	noMembers := b.Class(reflection.ClassInitializer{Name: b.String("Baz"), Members: 0x10, MemberCount: 0})
	huge := b.Class(reflection.ClassInitializer{Name: b.String("Huge"), Members: foo, MemberCount: 100000})
	image, err := b.Image()
	require.NoError(t, err)
	acc := accessor.New(image)
	limits := reflection.DefaultLimits()

	v := reflection.Validate(acc, addr(foo), limits)
	assert.True(t, v.Plausible)
	assert.Equal(t, "Foo", v.Record.Name.Value)
	assert.Equal(t, 2, v.Record.MemberCount)

	tests := []struct {
		at     uint64
		reason reflection.Reason
	}{
		{nullName, reflection.ReasonClassNamePointer},
		{wildName, reflection.ReasonClassNamePointer},
		{binaryName, reflection.ReasonClassName},
		{badList, reflection.ReasonMemberListPointer},
		{0x10, reflection.ReasonUnreadable},
		{b.DataEnd() - 8, reflection.ReasonUnreadable},
	}
	for _, test := range tests {
		v := reflection.Validate(acc, addr(test.at), limits)
		assert.False(t, v.Plausible, "0x%x", test.at)
		assert.Equal(t, test.reason, v.Reason, "0x%x", test.at)
	}

	assert.True(t, reflection.Validate(acc, addr(noMembers), limits).Plausible, "member list is only checked when there are members")

	v = reflection.Validate(acc, addr(huge), limits)
	assert.True(t, v.Plausible)
	assert.True(t, v.Record.Clamped)
	assert.Equal(t, limits.MaxMembers, v.Record.MemberCount)
}

func TestValidateRecordEndingAtSegmentEnd(t *testing.T) {
	const base = 0x140200000
	data := make([]byte, 0x10+0x24)
	copy(data, "Tail\x00")
	record := pod.WriteT(reflection.ClassInitializer{Name: base, MemberCount: 0})
	copy(data[0x10:], record[:0x24])

	image := process_blob.NewProcessDump()
	require.NoError(t, image.AddRegion(memory_map.MemoryMapItem{
		Address: base, Size: uint(len(data)), Perms: "rw-p", Initialized: true, Loaded: true,
	}, data))

	v := reflection.Validate(accessor.New(image), addr(base+0x10), reflection.DefaultLimits())
	assert.True(t, v.Plausible, v.Reason.String())
	assert.Equal(t, "Tail", v.Record.Name.Value)

	v = reflection.Validate(accessor.New(image), addr(base+0x14), reflection.DefaultLimits())
	assert.Equal(t, reflection.ReasonUnreadable, v.Reason)
}

func TestDecodeFoo(t *testing.T) {
	b := reflectiontest.NewBuilder()
	foo := reflectiontest.Foo(b)
	image, err := b.Image()
	require.NoError(t, err)

	class, verdict := reflection.NewDecoder(accessor.New(image)).Decode(addr(foo), reflection.PolicyStrict)
	require.True(t, verdict.Plausible)
	require.NotNil(t, class)
	assert.Equal(t, "Foo", class.Name)
	assert.Empty(t, class.Parent)
	assert.False(t, class.Truncated)
	assert.Equal(t, []reflection.DecodedField{
		{Offset: 0, Flags: 0, Type: "int", Name: "x"},
		{Offset: 4, Flags: 1, Type: "float", Name: "y"},
	}, class.Fields)
}

func TestDecodeNamesAndTypes(t *testing.T) {
	b := reflectiontest.NewBuilder()
	noise := b.String("pm4B")
	members := b.Members(
		reflectiontest.Member{Signature: b.String("hkArray<hkVector4>"), Name: b.String("m_points"), Offset: 0x10},
		reflectiontest.Member{Signature: 0, Name: noise, Offset: 0x20},
		reflectiontest.Member{Signature: 0x99, Name: 0, Offset: 0x28},
		reflectiontest.Member{Signature: 0, Name: b.String("m value"), Offset: 0x30},
	)
	self := b.String("hkpShape")
	cls := b.Class(reflection.ClassInitializer{Name: self, ParentName: b.String("hkReferencedObject"), Members: members, MemberCount: 4})
	selfParent := b.Class(reflection.ClassInitializer{Name: self, ParentName: self})
	image, err := b.Image()
	require.NoError(t, err)
	dec := reflection.NewDecoder(accessor.New(image))

	class, _ := dec.Decode(addr(cls), reflection.PolicyStrict)
	require.NotNil(t, class)
	assert.Equal(t, "hkReferencedObject", class.Parent)
	require.Len(t, class.Fields, 4)
	assert.Equal(t, reflection.DecodedField{Offset: 0x10, Type: "hkArray<hkVector4>", Name: "m_points"}, class.Fields[0])
	assert.Equal(t, "unknown_t", class.Fields[1].Type)
	assert.Equal(t, fmtMember(noise), class.Fields[1].Name)
	assert.Equal(t, "TypeTag_0x99", class.Fields[2].Type)
	assert.Equal(t, "member_0x0", class.Fields[2].Name)
	assert.Equal(t, "unknown_t", class.Fields[3].Type)
	assert.Equal(t, "m_value", class.Fields[3].Name)

	class, _ = dec.Decode(addr(selfParent), reflection.PolicyStrict)
	require.NotNil(t, class)
	assert.Empty(t, class.Parent)
}

func TestDecodeCustomTagTable(t *testing.T) {
	b := reflectiontest.NewBuilder()
	members := b.Members(
		reflectiontest.Member{Signature: 9, Name: b.String("m_count"), Offset: 0x8},
		reflectiontest.Member{Signature: 3, Name: b.String("m_size"), Offset: 0xC},
	)
	cls := b.Class(reflection.ClassInitializer{Name: b.String("hkCounter"), Members: members, MemberCount: 2})
	image, err := b.Image()
	require.NoError(t, err)

	dec := reflection.NewDecoder(accessor.New(image), reflection.WithTagTable(sanitize.TagTable{9: "uint32_t"}))
	class, _ := dec.Decode(addr(cls), reflection.PolicyStrict)
	require.NotNil(t, class)
	require.Len(t, class.Fields, 2)
	assert.Equal(t, "uint32_t", class.Fields[0].Type)
	assert.Equal(t, "TypeTag_0x3", class.Fields[1].Type)
}

func TestDecodeTruncated(t *testing.T) {
	b := reflectiontest.NewBuilder()
	members := b.Members(reflectiontest.Member{Signature: 3, Name: b.String("a")})
	// count says 10 but the image ends 72 bytes into the list
	cls := b.Class(reflection.ClassInitializer{Name: b.String("Short"), Members: members, MemberCount: 10})
	image, err := b.Image()
	require.NoError(t, err)

	class, _ := reflection.NewDecoder(accessor.New(image)).Decode(addr(cls), reflection.PolicyStrict)
	require.NotNil(t, class)
	// the string and the record after the list decode as two more entries
	assert.True(t, class.Truncated)
	assert.Equal(t, 3, class.TruncatedAt)
	assert.Len(t, class.Fields, 3)
	assert.Equal(t, "a", class.Fields[0].Name)
}

func TestDecodeLenient(t *testing.T) {
	b := reflectiontest.NewBuilder()
	junk := b.Bytes([]byte{0xFF, 0xFE, 0x00})
	cls := b.Class(reflection.ClassInitializer{Name: junk, ParentName: b.String("!!!"), MemberCount: 2, Members: 0x10})
	image, err := b.Image()
	require.NoError(t, err)
	dec := reflection.NewDecoder(accessor.New(image))

	class, verdict := dec.Decode(addr(cls), reflection.PolicyStrict)
	assert.Nil(t, class)
	assert.Equal(t, reflection.ReasonClassName, verdict.Reason)

	class, _ = dec.Decode(addr(cls), reflection.PolicyLenient)
	require.NotNil(t, class)
	assert.Equal(t, fmtClass(junk), class.Name)
	assert.Equal(t, "Base", class.Parent)
	assert.True(t, class.Truncated)
	assert.Empty(t, class.Fields)

	class, verdict = dec.Decode(addr(0x10), reflection.PolicyLenient)
	assert.Nil(t, class)
	assert.Equal(t, reflection.ReasonUnreadable, verdict.Reason)
}

func TestPatternDiscovery(t *testing.T) {
	b := reflectiontest.NewBuilder()
	foo := reflectiontest.Foo(b)
	bad := b.Class(reflection.ClassInitializer{Name: 0})
	b.Registration(foo)
	b.Registration(foo)
	b.Registration(bad)
	b.Code([]byte{0x90, 0x90})
	image, err := b.Image()
	require.NoError(t, err)

	aob, err := process.ParseAOB(reflection.DefaultSignature)
	require.NoError(t, err)
	d := reflection.NewPatternDiscovery(image, aob, search.NewScanner(), reflection.DefaultLimits())
	assert.Equal(t, reflection.PolicyStrict, d.Policy())

	candidates, err := d.Candidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, candidates.Total)
	assert.Equal(t, 1, candidates.Rejected)

	var got []process.ProcessMemoryAddress
	for c := range candidates.Seq {
		got = append(got, c.Address)
		assert.Nil(t, c.Range)
	}
	assert.Equal(t, []process.ProcessMemoryAddress{addr(foo)}, got)
}

func TestPatternDiscoveryMaxClasses(t *testing.T) {
	b := reflectiontest.NewBuilder()
	for range 5 {
		b.Registration(reflectiontest.Foo(b))
	}
	image, err := b.Image()
	require.NoError(t, err)

	aob, err := process.ParseAOB(reflection.DefaultSignature)
	require.NoError(t, err)
	limits := reflection.DefaultLimits()
	limits.MaxClasses = 3

	candidates, err := reflection.NewPatternDiscovery(image, aob, search.NewScanner(), limits).Candidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, candidates.Total)
}

func TestPatternDiscoveryNoCandidates(t *testing.T) {
	b := reflectiontest.NewBuilder()
	reflectiontest.Foo(b)
	b.Code([]byte{0xC3})
	image, err := b.Image()
	require.NoError(t, err)

	aob, err := process.ParseAOB(reflection.DefaultSignature)
	require.NoError(t, err)
	_, err = reflection.NewPatternDiscovery(image, aob, search.NewScanner(), reflection.DefaultLimits()).Candidates(context.Background())
	assert.ErrorIs(t, err, reflection.ErrNoCandidates)
}

func TestRangeDiscovery(t *testing.T) {
	r := reflection.Range{Start: 0x1000, End: 0x1000 + 3*reflection.ClassInitializerSize}
	d := reflection.NewRangeDiscovery(r, reflection.Range{Start: 0x2000, End: 0x2001})
	assert.Equal(t, reflection.PolicyLenient, d.Policy())

	candidates, err := d.Candidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, candidates.Total)

	var got []process.ProcessMemoryAddress
	for c := range candidates.Seq {
		require.NotNil(t, c.Range)
		got = append(got, c.Address)
	}
	assert.Equal(t, []process.ProcessMemoryAddress{0x1000, 0x1028, 0x1050, 0x2000}, got)

	_, err = reflection.NewRangeDiscovery(reflection.Range{Start: 0x2000, End: 0x2000}).Candidates(context.Background())
	assert.ErrorIs(t, err, reflection.ErrNoCandidates)
	_, err = reflection.NewRangeDiscovery(reflection.Range{Start: 0x3000, End: 0x2000}).Candidates(context.Background())
	assert.ErrorIs(t, err, reflection.ErrNoCandidates)
}

func TestAddressDiscovery(t *testing.T) {
	d := reflection.NewAddressDiscovery(0x10, 0x20, 0x10)
	assert.Equal(t, reflection.PolicyStrict, d.Policy())
	candidates, err := d.Candidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, candidates.Total)

	_, err = reflection.NewAddressDiscovery().Candidates(context.Background())
	assert.ErrorIs(t, err, reflection.ErrNoCandidates)
}
