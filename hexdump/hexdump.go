// Package hexdump renders raw memory as hex and ASCII, optionally annotating
// qwords that look like pointers into the image.
package hexdump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Options defines options for customizing the hexdump output
type Options struct {
	// BytesPerLine defines the number of bytes to display per line
	BytesPerLine int

	// StartOffset is the address of the first byte
	StartOffset uint64

	// OffsetWidth is the width of the offset column in hex digits
	OffsetWidth int

	// MaxLines is the maximum number of lines to show (0 for no limit)
	MaxLines int

	// IsPointer, when set, marks aligned qwords it accepts at the end of the line
	IsPointer func(v uint64) bool
}

// DefaultOptions returns the default hexdump options
func DefaultOptions() Options {
	return Options{
		BytesPerLine: 16,
		OffsetWidth:  16,
	}
}

// Dump creates a hex dump of the given data with specified options
func Dump(data []byte, options Options) string {
	var buffer bytes.Buffer
	DumpToWriter(&buffer, data, options)
	return buffer.String()
}

// DumpWithOffset creates a hex dump whose offsets start at startOffset
func DumpWithOffset(data []byte, startOffset uint64) string {
	options := DefaultOptions()
	options.StartOffset = startOffset
	return Dump(data, options)
}

// DumpToWriter writes a hex dump of the given data to the specified writer
func DumpToWriter(writer io.Writer, data []byte, options Options) {
	if options.BytesPerLine <= 0 {
		options.BytesPerLine = 16
	}
	if options.OffsetWidth <= 0 {
		options.OffsetWidth = 16
	}

	lineCount := 0
	for offset := 0; offset < len(data); offset += options.BytesPerLine {
		if options.MaxLines > 0 && lineCount >= options.MaxLines {
			fmt.Fprintf(writer, "... %d more bytes\n", len(data)-offset)
			break
		}

		end := min(offset+options.BytesPerLine, len(data))
		formatLine(writer, data[offset:end], options.StartOffset+uint64(offset), options)
		lineCount++
	}
}

func formatLine(writer io.Writer, data []byte, offset uint64, options Options) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%0*x  ", options.OffsetWidth, offset)

	half := options.BytesPerLine / 2
	for i := 0; i < options.BytesPerLine; i++ {
		if i > 0 {
			if i == half && options.BytesPerLine >= 8 {
				sb.WriteString(" | ")
			} else {
				sb.WriteByte(' ')
			}
		}
		if i < len(data) {
			fmt.Fprintf(&sb, "%02x", data[i])
		} else {
			// keep the ASCII column aligned on short lines
			sb.WriteString("  ")
		}
	}

	sb.WriteString(" | ")
	for _, b := range data {
		if b >= 0x20 && b <= 0x7E {
			sb.WriteByte(b)
		} else {
			sb.WriteByte('.')
		}
	}

	if options.IsPointer != nil {
		var ptrs []string
		for i := 0; i+8 <= len(data); i += 8 {
			if (offset+uint64(i))%8 != 0 {
				continue
			}
			if v := binary.LittleEndian.Uint64(data[i:]); v != 0 && options.IsPointer(v) {
				ptrs = append(ptrs, fmt.Sprintf("+%x->0x%x", i, v))
			}
		}
		if len(ptrs) > 0 {
			sb.WriteString(strings.Repeat(" ", options.BytesPerLine-len(data)))
			sb.WriteString(" | ")
			sb.WriteString(strings.Join(ptrs, " "))
		}
	}

	fmt.Fprintln(writer, sb.String())
}
