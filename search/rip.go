package search

import (
	"bytes"
	"errors"
	"fmt"

	"refldump/process"
	"refldump/process_blob"

	"golang.org/x/arch/x86/x86asm"
)

// LEARDXPrefix is the encoding of lea rdx, [rip+disp32] up to the displacement
var LEARDXPrefix = []byte{0x48, 0x8D, 0x15}

// LEAInstructionLength is the size of lea r64, [rip+disp32]
const LEAInstructionLength = 7

var ErrNotRIPRelative = errors.New("not a RIP-relative lea")

// ResolveRIPRelative decodes the lea rdx, [rip+disp32] at hit and returns the address
// it loads: hit + 7 + disp32.
func ResolveRIPRelative(image process.Image, hit process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	blob, err := process_blob.ReadBlob(image, hit, LEAInstructionLength)
	if err != nil {
		return 0, fmt.Errorf("instruction at %s: %w", hit.ToString(), err)
	}

	window := blob.Data()
	if !bytes.HasPrefix(window, LEARDXPrefix) {
		return 0, fmt.Errorf("instruction at %s starts % X: %w", hit.ToString(), window[:len(LEARDXPrefix)], ErrNotRIPRelative)
	}

	disp, err := blob.OffsetINT32(3)
	if err != nil {
		return 0, err
	}

	inst, err := x86asm.Decode(window, 64)
	if err != nil {
		return 0, fmt.Errorf("decode at %s: %w", hit.ToString(), err)
	}
	mem, ok := inst.Args[1].(x86asm.Mem)
	if inst.Op != x86asm.LEA || inst.Len != LEAInstructionLength || !ok || mem.Base != x86asm.RIP || mem.Disp != int64(disp) {
		return 0, fmt.Errorf("instruction at %s decodes as %s: %w", hit.ToString(), x86asm.IntelSyntax(inst, uint64(hit), nil), ErrNotRIPRelative)
	}

	return hit.Add(LEAInstructionLength + int64(disp)), nil
}
