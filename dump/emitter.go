package dump

import (
	"fmt"
	"io"
	"strings"

	"refldump/reflection"
)

const separator = "//----------------------------------------------------\n"

// Summary is what the trailer reports about a run
type Summary struct {
	Classes    int
	Members    int
	Rejected   int
	Cancelled  bool
	OutputPath string
}

// Emitter writes the header text. It only appends, and a class is either
// written completely or not at all.
type Emitter struct {
	w io.Writer
}

type flusher interface {
	Flush() error
}

func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

func (e *Emitter) write(s string) error {
	if _, err := io.WriteString(e.w, s); err != nil {
		return err
	}
	if f, ok := e.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// Header starts the file. description names how the classes were found.
func (e *Emitter) Header(description string) error {
	var sb strings.Builder
	sb.WriteString("#pragma once\n\n")
	sb.WriteString("// This file was generated by refldump. Do not edit.\n")
	if description != "" {
		fmt.Fprintf(&sb, "// Discovery: %s\n", description)
	}
	sb.WriteString("\n")
	return e.write(sb.String())
}

// Block marks the start of a walked address range
func (e *Emitter) Block(r reflection.Range) error {
	return e.write(fmt.Sprintf("// Dumping block: 0x%X - 0x%X\n", uint64(r.Start), uint64(r.End)))
}

// Class writes one decoded class
func (e *Emitter) Class(class *reflection.DecodedClass) error {
	return e.write(FormatClass(class))
}

// FormatClass renders a class exactly as it appears in the dump
func FormatClass(class *reflection.DecodedClass) string {
	var sb strings.Builder
	sb.WriteString(separator)
	fmt.Fprintf(&sb, "// Class: %s (Initializer @ 0x%X)\n", class.Name, uint64(class.Address))
	if class.Parent != "" {
		fmt.Fprintf(&sb, "struct %s : public %s {\n", class.Name, class.Parent)
	} else {
		fmt.Fprintf(&sb, "struct %s {\n", class.Name)
	}
	for _, field := range class.Fields {
		fmt.Fprintf(&sb, "    /* 0x%04X */ %-40s %s; // Flags: 0x%04X\n", field.Offset, field.Type, field.Name, field.Flags)
	}
	if class.Truncated {
		fmt.Fprintf(&sb, "    // Read error in member list at entry %d\n", class.TruncatedAt)
	}
	sb.WriteString("};\n\n")
	return sb.String()
}

// Summary closes the file
func (e *Emitter) Summary(s Summary) error {
	var sb strings.Builder
	sb.WriteString("\n// --- Summary ---\n")
	if s.Cancelled {
		sb.WriteString("// --- Dump Cancelled ---\n")
	} else {
		sb.WriteString("// --- Dump Finished ---\n")
	}
	fmt.Fprintf(&sb, "// Successfully dumped %d classes and %d members.\n", s.Classes, s.Members)
	fmt.Fprintf(&sb, "// Rejected %d candidates.\n", s.Rejected)
	if s.OutputPath != "" {
		fmt.Fprintf(&sb, "// Output saved to: %s\n", s.OutputPath)
	}
	return e.write(sb.String())
}
