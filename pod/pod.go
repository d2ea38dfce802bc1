// Package pod reads fixed-layout little-endian records out of a memory image
// straight into Go structs. Record types must be POD: fixed-size fields only,
// with explicit padding so the Go layout matches the target layout byte for byte.
package pod

import (
	"errors"
	"fmt"
	"reflect"
	"unsafe"

	"refldump/process"
)

var ErrNotPOD = errors.New("type contains pointers; not POD-safe")

func SizeOf[T any]() process.ProcessMemorySize {
	var t T
	return process.ProcessMemorySize(unsafe.Sizeof(t))
}

// ReadT reads one T at addr. A short read is an error.
func ReadT[T any](image process.Image, addr process.ProcessMemoryAddress) (T, error) {
	var zero T
	size := SizeOf[T]()
	if size == 0 {
		return zero, errors.New("ReadT: size of T is zero")
	}

	data, err := image.ReadMemory(addr, size)
	if err != nil {
		return zero, fmt.Errorf("ReadT at %s: %w", addr.ToString(), err)
	}

	return FromBytes[T](data)
}

// ReadSliceT reads count consecutive T values at addr. When the read stops early it
// returns every element that was read completely together with the error.
func ReadSliceT[T any](image process.Image, addr process.ProcessMemoryAddress, count int) ([]T, error) {
	if count < 0 {
		return nil, errors.New("ReadSliceT: count must be positive")
	}

	size := SizeOf[T]()
	if size == 0 || count == 0 {
		return []T{}, nil
	}

	data, readErr := image.ReadMemory(addr, size*process.ProcessMemorySize(count))

	n := len(data) / int(size)
	result := make([]T, 0, n)
	for i := range n {
		element, err := FromBytes[T](data[i*int(size):])
		if err != nil {
			return result, fmt.Errorf("ReadSliceT: element %d: %w", i, err)
		}
		result = append(result, element)
	}

	if readErr != nil {
		return result, fmt.Errorf("ReadSliceT at %s: stopped at element %d of %d: %w", addr.ToString(), n, count, readErr)
	}
	return result, nil
}

// FromBytes copies the first sizeof(T) bytes of data into a new T
func FromBytes[T any](data []byte) (T, error) {
	var tmp T

	if hasPointers[T]() {
		return tmp, ErrNotPOD
	}

	size := int(unsafe.Sizeof(tmp))
	if len(data) < size {
		return tmp, fmt.Errorf("buffer too small: %d < %d: %w", len(data), size, process.ErrUnreadable)
	}

	dst := unsafe.Slice((*byte)(unsafe.Pointer(&tmp)), size)
	copy(dst, data[:size])

	return tmp, nil
}

// WriteT serializes a POD struct T using its in-memory layout
func WriteT[T any](v T) []byte {
	size := int(unsafe.Sizeof(v))
	if size == 0 {
		return []byte{}
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(&v)), size)
	out := make([]byte, size)
	copy(out, src)
	return out
}

// hasPointers reports whether T (recursively) contains any pointer-like fields.
func hasPointers[T any]() bool {
	var t T
	return typeHasPointers(reflect.TypeOf(t))
}

func typeHasPointers(rt reflect.Type) bool {
	switch rt.Kind() {
	case reflect.Ptr, reflect.UnsafePointer, reflect.Interface, reflect.Func, reflect.Map, reflect.Slice, reflect.String, reflect.Chan:
		return true
	case reflect.Array:
		return typeHasPointers(rt.Elem())
	case reflect.Struct:
		for i := 0; i < rt.NumField(); i++ {
			if typeHasPointers(rt.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
