// Package reflectiontest builds synthetic memory images holding class initializer
// records, for tests of the decoder, the dumper and the command line.
package reflectiontest

import (
	"encoding/binary"

	"refldump/pod"
	"refldump/process/memory_map"
	"refldump/process_blob"
	"refldump/reflection"
)

const (
	DefaultDataBase = 0x140200000
	DefaultCodeBase = 0x140001000
)

// Member describes one MemberInitializer to write
type Member struct {
	Signature uint64
	Name      uint64
	Offset    uint16
	Flags     uint16
}

// Builder lays out strings, records and code into two regions, a read-write data
// region and an executable code region. Addresses it returns are absolute.
type Builder struct {
	DataBase uint64
	CodeBase uint64
	data     []byte
	code     []byte
}

func NewBuilder() *Builder {
	return &Builder{DataBase: DefaultDataBase, CodeBase: DefaultCodeBase}
}

func (b *Builder) alloc(p []byte) uint64 {
	for len(b.data)%8 != 0 {
		b.data = append(b.data, 0)
	}
	addr := b.DataBase + uint64(len(b.data))
	b.data = append(b.data, p...)
	return addr
}

// Bytes places p in the data region
func (b *Builder) Bytes(p []byte) uint64 {
	return b.alloc(p)
}

// String places a NUL-terminated string in the data region
func (b *Builder) String(s string) uint64 {
	return b.alloc(append([]byte(s), 0))
}

// Members places a contiguous MemberInitializer list
func (b *Builder) Members(members ...Member) uint64 {
	var out []byte
	for _, m := range members {
		out = append(out, pod.WriteT(reflection.MemberInitializer{
			Signature: m.Signature,
			Name:      m.Name,
			TypeData:  uint64(m.Offset) | uint64(m.Flags)<<16,
		})...)
	}
	return b.alloc(out)
}

// Class places a ClassInitializer
func (b *Builder) Class(ci reflection.ClassInitializer) uint64 {
	return b.alloc(pod.WriteT(ci))
}

// Put overwrites data at an address the builder returned earlier
func (b *Builder) Put(addr uint64, p []byte) {
	copy(b.data[addr-b.DataBase:], p)
}

// Code appends raw bytes to the code region
func (b *Builder) Code(p []byte) uint64 {
	addr := b.CodeBase + uint64(len(b.code))
	b.code = append(b.code, p...)
	return addr
}

// Registration appends lea rdx, [rip+target]; mov rcx, rbx; call [rax+8]
func (b *Builder) Registration(target uint64) uint64 {
	window := []byte{0x48, 0x8D, 0x15, 0, 0, 0, 0, 0x48, 0x8B, 0xCB, 0xFF, 0x50, 0x08}
	addr := b.CodeBase + uint64(len(b.code))
	binary.LittleEndian.PutUint32(window[3:], uint32(int32(int64(target)-int64(addr+7))))
	return b.Code(window)
}

// DataEnd is the first address past the data written so far
func (b *Builder) DataEnd() uint64 {
	return b.DataBase + uint64(len(b.data))
}

// Image maps the regions into a ProcessDump
func (b *Builder) Image() (*process_blob.ProcessDump, error) {
	image := process_blob.NewProcessDump()
	if len(b.data) > 0 {
		if err := image.AddRegion(memory_map.MemoryMapItem{
			Address: b.DataBase, Size: uint(len(b.data)), Perms: "rw-p", Initialized: true, Loaded: true, Name: ".data",
		}, b.data); err != nil {
			return nil, err
		}
	}
	if len(b.code) > 0 {
		if err := image.AddRegion(memory_map.MemoryMapItem{
			Address: b.CodeBase, Size: uint(len(b.code)), Perms: "r-xp", Initialized: true, Loaded: true, Name: ".text",
		}, b.code); err != nil {
			return nil, err
		}
	}
	return image, nil
}

// Foo writes the class used across tests: Foo with int x at 0 and float y at 4
// (flags 1), no parent. It returns the initializer address.
func Foo(b *Builder) uint64 {
	members := b.Members(
		Member{Signature: 3, Name: b.String("x"), Offset: 0, Flags: 0},
		Member{Signature: 4, Name: b.String("y"), Offset: 4, Flags: 1},
	)
	return b.Class(reflection.ClassInitializer{
		Name:        b.String("Foo"),
		Members:     members,
		MemberCount: 2,
	})
}
