package process

import (
	"refldump/process/memory_map"
)

// BASEADDRESS is the preferred load address of 64-bit Windows executables
var BASEADDRESS = ProcessMemoryAddress(0x140000000)

// Image is the read-only view of a program's address space that the dumper works on.
// Implementations are expected to be stable for the duration of one dump run.
type Image interface {
	// GetMemoryMap returns a copy of the segment list, sorted by address
	GetMemoryMap() ([]memory_map.MemoryMapItem, error)

	// IsValidAddress checks if the given memory address is mapped, initialized and readable
	IsValidAddress(addr ProcessMemoryAddress) bool

	// ReadMemory reads size bytes at addr. On a partial failure it returns the bytes
	// that could be read together with a non-nil error; it never zero-fills.
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)
}

// Process is a live image backed by an operating system process
type Process interface {
	Image

	// Open opens a process with the given PID for memory operations
	Open(pid ProcessID) error

	// Close closes the process and releases resources
	Close() error

	// GetPID returns the process ID
	GetPID() ProcessID

	// UpdateMemoryMap refreshes the memory map for the process
	UpdateMemoryMap() error
}

// ProcessID represents a unique identifier for a process
type ProcessID int
