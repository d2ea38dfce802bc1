// Package process defines the address types and the memory image contract shared by
// every image provider and by the reflection dumper.
package process

import "errors"

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrUnreadable is returned when an address is mapped but not initialized or not readable,
	// or when a read stops short of the requested size.
	ErrUnreadable = errors.New("memory not readable")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")
)
