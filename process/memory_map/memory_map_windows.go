//go:build windows

package memory_map

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const memImage = 0x1000000

// WindowsMemoryMap implements MemoryMap for Windows
type WindowsMemoryMap struct{}

// NewWindowsMemoryMap creates a new WindowsMemoryMap instance
func NewWindowsMemoryMap() *WindowsMemoryMap {
	return &WindowsMemoryMap{}
}

// ReadMemoryMap opens pid for query access and walks its committed regions
func (w *WindowsMemoryMap) ReadMemoryMap(pid int) ([]MemoryMapItem, error) {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		return nil, fmt.Errorf("OpenProcess %d: %w", pid, err)
	}
	defer windows.CloseHandle(handle)

	return ReadMemoryMapHandle(handle)
}

// ReadMemoryMapHandle walks the address space of an already opened process with VirtualQueryEx
func ReadMemoryMapHandle(handle windows.Handle) ([]MemoryMapItem, error) {
	var result []MemoryMapItem
	var mbi windows.MemoryBasicInformation

	addr := uintptr(0)
	for {
		err := windows.VirtualQueryEx(handle, addr, &mbi, unsafe.Sizeof(mbi))
		if err != nil {
			break // past the top of the user address space
		}
		if mbi.RegionSize == 0 {
			break
		}

		if mbi.State == windows.MEM_COMMIT {
			perms := protectPerms(mbi.Protect)
			result = append(result, MemoryMapItem{
				Address:     uint64(mbi.BaseAddress),
				Size:        uint(mbi.RegionSize),
				Perms:       perms,
				Initialized: perms[0] == 'r',
				Loaded:      mbi.Type == memImage,
			})
		}

		next := mbi.BaseAddress + mbi.RegionSize
		if next <= addr {
			break
		}
		addr = next
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("VirtualQueryEx returned no committed regions")
	}

	Sort(result)
	return result, nil
}

// protectPerms renders a PAGE_* protection value in /proc/pid/maps style
func protectPerms(protect uint32) string {
	if protect&(windows.PAGE_GUARD|windows.PAGE_NOACCESS) != 0 {
		return "---p"
	}

	switch protect & 0xff {
	case windows.PAGE_READONLY:
		return "r--p"
	case windows.PAGE_READWRITE, windows.PAGE_WRITECOPY:
		return "rw-p"
	case windows.PAGE_EXECUTE:
		return "--xp"
	case windows.PAGE_EXECUTE_READ:
		return "r-xp"
	case windows.PAGE_EXECUTE_READWRITE, windows.PAGE_EXECUTE_WRITECOPY:
		return "rwxp"
	}
	return "---p"
}
