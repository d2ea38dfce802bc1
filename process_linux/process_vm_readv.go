//go:build linux

package process_linux

import (
	"fmt"
	"unsafe"

	"refldump/process"
	"refldump/process/memory_map"

	"golang.org/x/sys/unix"
)

// process_vm_readv reads remote memory into a fresh buffer. The kernel stops at the
// first page it cannot read, so the result may be short.
func process_vm_readv(pid process.ProcessID, remoteAddr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	localBuf := make([]byte, size)

	localIov := unix.Iovec{Base: &localBuf[0]}
	localIov.SetLen(int(size))
	remoteIov := unix.RemoteIovec{
		Base: uintptr(remoteAddr),
		Len:  int(size),
	}

	n, _, errno := unix.Syscall6(
		unix.SYS_PROCESS_VM_READV,
		uintptr(pid),
		uintptr(unsafe.Pointer(&localIov)),
		uintptr(1),
		uintptr(unsafe.Pointer(&remoteIov)),
		uintptr(1),
		uintptr(0),
	)

	if errno != 0 {
		return localBuf[:0], fmt.Errorf("process_vm_readv failed: %s (errno: %d)", errno.Error(), errno)
	}
	if int(n) != int(size) {
		return localBuf[:n], fmt.Errorf("partial read: %d of %d bytes", n, size)
	}

	return localBuf, nil
}

// ReadMemory reads memory from the process at the specified address
func (p *LinuxProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	p.mu.Lock()
	pid := p.pid
	valid := memory_map.IsValidAddress(uint64(addr), p.mm)
	p.mu.Unlock()

	if pid == 0 {
		return nil, process.ErrProcessNotOpen
	}
	if !valid {
		return nil, fmt.Errorf("read %s: %w", addr.ToString(), process.ErrAddressNotMapped)
	}

	data, err := process_vm_readv(pid, addr, size)
	if err != nil {
		return data, fmt.Errorf("read %s: %v: %w", addr.ToString(), err, process.ErrUnreadable)
	}

	return data, nil
}
