package memory_map

import (
	"fmt"
	"sort"
)

// MemoryMapItem represents a segment of an image's address space
type MemoryMapItem struct {
	Address     uint64 `json:"Address"`     // The starting address of the memory region
	Size        uint   `json:"Size"`        // The size of the memory region in bytes
	Perms       string `json:"Perms"`       // Permissions (e.g., "r-xp" for read, execute, private)
	Initialized bool   `json:"Initialized"` // Backed by real bytes (false for .bss style regions)
	Loaded      bool   `json:"Loaded"`      // Part of the loaded program, not an overlay or header
	Name        string `json:"Name,omitempty"`
}

// String returns a string representation of the memory map item
func (mmItem MemoryMapItem) String() string {
	name := mmItem.Name
	if name == "" {
		name = "-"
	}
	return fmt.Sprintf("%016x-%016x %s init=%t loaded=%t %s",
		mmItem.Address, mmItem.End(), mmItem.Perms, mmItem.Initialized, mmItem.Loaded, name)
}

// End returns the first address past the region
func (mmItem MemoryMapItem) End() uint64 {
	return mmItem.Address + uint64(mmItem.Size)
}

// Contains reports whether addr falls inside the region
func (mmItem MemoryMapItem) Contains(addr uint64) bool {
	return addr >= mmItem.Address && addr < mmItem.End()
}

func (mmItem MemoryMapItem) IsReadable() bool {
	return len(mmItem.Perms) > 0 && mmItem.Perms[0] == 'r'
}

func (mmItem MemoryMapItem) IsWritable() bool {
	return len(mmItem.Perms) > 1 && mmItem.Perms[1] == 'w'
}

func (mmItem MemoryMapItem) IsExecutable() bool {
	return len(mmItem.Perms) > 2 && mmItem.Perms[2] == 'x'
}

// IsScannable reports whether the region may contain code worth signature scanning
func (mmItem MemoryMapItem) IsScannable() bool {
	return mmItem.Initialized && mmItem.Loaded && mmItem.IsExecutable()
}

// MemoryMap defines the interface for operations related to a process's memory map
type MemoryMap interface {
	// ReadMemoryMap reads and parses the memory map for a process
	ReadMemoryMap(pid int) ([]MemoryMapItem, error)
}

// Sort orders the regions by start address, which FindRegion relies on
func Sort(memoryMap []MemoryMapItem) {
	sort.Slice(memoryMap, func(i, j int) bool {
		return memoryMap[i].Address < memoryMap[j].Address
	})
}

// FindRegion returns the region containing addr. memoryMap must be sorted.
func FindRegion(addr uint64, memoryMap []MemoryMapItem) *MemoryMapItem {
	i := sort.Search(len(memoryMap), func(i int) bool {
		return memoryMap[i].End() > addr
	})
	if i < len(memoryMap) && memoryMap[i].Address <= addr {
		return &memoryMap[i]
	}

	return nil
}

// IsValidAddress checks if an address is within an initialized, readable memory region.
// memoryMap must be sorted.
func IsValidAddress(addr uint64, memoryMap []MemoryMapItem) bool {
	item := FindRegion(addr, memoryMap)
	return item != nil && item.Initialized && item.IsReadable()
}
