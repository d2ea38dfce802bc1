package search

import (
	"context"
	"encoding/binary"
	"testing"

	"refldump/process"
	"refldump/process/memory_map"
	"refldump/process_blob"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reflectionSignature = "48 8D 15 ?? ?? ?? ?? 48 8B CB FF 50 08"

func codeRegion(addr uint64, size int) memory_map.MemoryMapItem {
	return memory_map.MemoryMapItem{Address: addr, Size: uint(size), Perms: "r-xp", Initialized: true, Loaded: true}
}

// leaWindow encodes lea rdx, [rip+disp] followed by mov rcx, rbx; call [rax+8]
func leaWindow(disp int32) []byte {
	out := []byte{0x48, 0x8D, 0x15, 0, 0, 0, 0, 0x48, 0x8B, 0xCB, 0xFF, 0x50, 0x08}
	binary.LittleEndian.PutUint32(out[3:], uint32(disp))
	return out
}

func TestScanStraddlesChunkBoundary(t *testing.T) {
	aob, err := process.ParseAOB(reflectionSignature)
	require.NoError(t, err)

	const base = 0x140001000
	size := 2*DefaultChunkSize + 64
	code := make([]byte, size)
	// the first read ends at DefaultChunkSize, the second starts 12 bytes before it
	// and ends at 2*DefaultChunkSize-12
	offsets := []int{0, DefaultChunkSize - 5, DefaultChunkSize + 20, 2*DefaultChunkSize - 20, size - aob.Len()}
	var want []process.ProcessMemoryAddress
	for i, off := range offsets {
		copy(code[off:], leaWindow(int32(i)))
		want = append(want, process.ProcessMemoryAddress(base+off))
	}

	image := process_blob.NewProcessDump()
	require.NoError(t, image.AddRegion(codeRegion(base, size), code))

	hits, err := NewScanner().Scan(context.Background(), image, aob)
	require.NoError(t, err)
	assert.Equal(t, want, hits)
}

func TestScanSmallChunks(t *testing.T) {
	aob, err := process.ParseAOB("AA ?? CC")
	require.NoError(t, err)

	code := make([]byte, 100)
	var want []process.ProcessMemoryAddress
	for _, off := range []int{3, 15, 19, 31, 97} {
		copy(code[off:], []byte{0xAA, byte(off), 0xCC})
		want = append(want, process.ProcessMemoryAddress(0x1000+off))
	}

	image := process_blob.NewProcessDump()
	require.NoError(t, image.AddRegion(codeRegion(0x1000, len(code)), code))

	for _, chunk := range []int{1, 3, 4, 16, 17, 1000} {
		hits, err := NewScanner(WithChunkSize(chunk)).Scan(context.Background(), image, aob)
		require.NoError(t, err)
		assert.Equal(t, want, hits, "chunk size %d", chunk)
	}
}

func TestScanNearMiss(t *testing.T) {
	aob, err := process.ParseAOB(reflectionSignature)
	require.NoError(t, err)

	code := make([]byte, 0x200)
	copy(code[0x40:], leaWindow(0x100))
	nearMiss := leaWindow(0x100)
	nearMiss[9] = 0xCA
	copy(code[0x100:], nearMiss)

	image := process_blob.NewProcessDump()
	require.NoError(t, image.AddRegion(codeRegion(0x140001000, len(code)), code))

	hits, err := NewScanner().Scan(context.Background(), image, aob)
	require.NoError(t, err)
	assert.Equal(t, []process.ProcessMemoryAddress{0x140001040}, hits)
}

func TestMatchMaskIsExactOrWildcard(t *testing.T) {
	aob, err := process.NewAOB([]byte{0x48, 0x01, 0x00}, []byte{0xFF, 0x01, 0x00})
	require.NoError(t, err)

	assert.True(t, Match([]byte{0x48, 0x01, 0x7F}, 0, aob))
	assert.False(t, Match([]byte{0x48, 0x03, 0x7F}, 0, aob), "a partial mask byte still compares the whole byte")
	assert.False(t, Match([]byte{0x49, 0x01, 0x7F}, 0, aob))
}

func TestScanSkipsNonCodeSegments(t *testing.T) {
	aob, err := process.ParseAOB(reflectionSignature)
	require.NoError(t, err)
	window := leaWindow(0)

	image := process_blob.NewProcessDump()
	require.NoError(t, image.AddRegion(memory_map.MemoryMapItem{Address: 0x1000, Size: 0x100, Perms: "rw-p", Initialized: true, Loaded: true}, append(window, make([]byte, 0x100-len(window))...)))
	overlay := codeRegion(0x2000, 0x100)
	overlay.Loaded = false
	require.NoError(t, image.AddRegion(overlay, append(window, make([]byte, 0x100-len(window))...)))
	bss := codeRegion(0x3000, 0x100)
	bss.Initialized = false
	require.NoError(t, image.AddRegion(bss, nil))

	hits, err := NewScanner().Scan(context.Background(), image, aob)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestScanCancelled(t *testing.T) {
	aob, err := process.ParseAOB("AA")
	require.NoError(t, err)

	image := process_blob.NewProcessDump()
	require.NoError(t, image.AddRegion(codeRegion(0x1000, 16), make([]byte, 16)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewScanner().Scan(ctx, image, aob)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveRIPRelative(t *testing.T) {
	code := make([]byte, 0x40)
	copy(code[0x10:], leaWindow(0x1000))
	copy(code[0x20:], leaWindow(-0x20))
	copy(code[0x30:], []byte{0x48, 0x8D, 0x0D, 0, 0, 0, 0}) // lea rcx

	image := process_blob.NewProcessDump()
	require.NoError(t, image.AddRegion(codeRegion(0x140001000, len(code)), code))

	target, err := ResolveRIPRelative(image, 0x140001010)
	require.NoError(t, err)
	assert.Equal(t, process.ProcessMemoryAddress(0x140001010+7+0x1000), target)

	target, err = ResolveRIPRelative(image, 0x140001020)
	require.NoError(t, err)
	assert.Equal(t, process.ProcessMemoryAddress(0x140001020+7-0x20), target)

	_, err = ResolveRIPRelative(image, 0x140001030)
	assert.ErrorIs(t, err, ErrNotRIPRelative)

	_, err = ResolveRIPRelative(image, 0x14000103C)
	assert.ErrorIs(t, err, process.ErrAddressNotMapped)
}
