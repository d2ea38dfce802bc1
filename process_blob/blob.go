package process_blob

import (
	"encoding/binary"
	"fmt"

	"refldump/process"
)

// ProcessBlob is a window of bytes read from an image at a fixed base address.
// Offsets are relative to that base.
type ProcessBlob struct {
	baseaddress process.ProcessMemoryAddress
	data        []byte
}

func NewProcessBlob(baseAddress process.ProcessMemoryAddress, data []byte) *ProcessBlob {
	return &ProcessBlob{
		baseaddress: baseAddress,
		data:        data,
	}
}

// ReadBlob reads size bytes at addr and fails unless all of them were read
func ReadBlob(image process.Image, addr process.ProcessMemoryAddress, size process.ProcessMemorySize) (*ProcessBlob, error) {
	data, err := image.ReadMemory(addr, size)
	if err != nil {
		return nil, err
	}
	if len(data) < int(size) {
		return nil, fmt.Errorf("read %d of %d bytes at %s: %w", len(data), size, addr.ToString(), process.ErrUnreadable)
	}
	return NewProcessBlob(addr, data), nil
}

func (p *ProcessBlob) Base() process.ProcessMemoryAddress {
	return p.baseaddress
}

func (p *ProcessBlob) Data() []byte {
	return p.data
}

func (p *ProcessBlob) slice(offset process.ProcessMemoryAddress, size int) ([]byte, error) {
	if uint64(offset)+uint64(size) > uint64(len(p.data)) {
		return nil, fmt.Errorf("offset 0x%x+%d outside blob of %d bytes at %s", uint64(offset), size, len(p.data), p.baseaddress.ToString())
	}
	return p.data[offset : uint64(offset)+uint64(size)], nil
}

// OffsetUINT8 returns an unsigned 8-bit integer at offset
func (p *ProcessBlob) OffsetUINT8(offset process.ProcessMemoryAddress) (uint8, error) {
	data, err := p.slice(offset, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// OffsetUINT32 returns an unsigned 32-bit integer at offset
func (p *ProcessBlob) OffsetUINT32(offset process.ProcessMemoryAddress) (uint32, error) {
	data, err := p.slice(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// OffsetINT32 returns a signed 32-bit integer at offset
func (p *ProcessBlob) OffsetINT32(offset process.ProcessMemoryAddress) (int32, error) {
	v, err := p.OffsetUINT32(offset)
	return int32(v), err
}

// OffsetUINT64 returns an unsigned 64-bit integer at offset
func (p *ProcessBlob) OffsetUINT64(offset process.ProcessMemoryAddress) (uint64, error) {
	data, err := p.slice(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

// OffsetPOINTER returns a 64-bit pointer at offset
func (p *ProcessBlob) OffsetPOINTER(offset process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	v, err := p.OffsetUINT64(offset)
	return process.ProcessMemoryAddress(v), err
}
