package reflection

import (
	"fmt"

	"refldump/accessor"
	"refldump/pod"
	"refldump/process"
)

// Reason says why a candidate was rejected
type Reason int

const (
	ReasonNone Reason = iota
	ReasonUnreadable
	ReasonClassNamePointer
	ReasonClassName
	ReasonMemberListPointer
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "plausible"
	case ReasonUnreadable:
		return "record unreadable"
	case ReasonClassNamePointer:
		return "invalid class name pointer"
	case ReasonClassName:
		return "class name not ASCII"
	case ReasonMemberListPointer:
		return "invalid member list pointer"
	}
	return "unknown"
}

// classInitializerFields covers Name through MemberCount
const classInitializerFields = 0x24

// Verdict is the outcome of Validate. Record is filled as far as validation got.
type Verdict struct {
	Plausible bool
	Reason    Reason
	Record    ClassRecord
}

// ReadRecord reads the ClassInitializer at addr and clamps its member count
func ReadRecord(acc *accessor.Accessor, addr process.ProcessMemoryAddress, limits Limits) (ClassRecord, error) {
	// the trailing padding is not read, a record may end right at a segment boundary
	data, err := acc.Image().ReadMemory(addr, classInitializerFields)
	if err != nil {
		return ClassRecord{Address: addr}, fmt.Errorf("read initializer at %s: %w", addr.ToString(), err)
	}
	raw, err := pod.FromBytes[ClassInitializer](append(data, make([]byte, ClassInitializerSize-classInitializerFields)...))
	if err != nil {
		return ClassRecord{Address: addr}, err
	}

	rec := ClassRecord{
		Address:     addr,
		Raw:         raw,
		MemberCount: int(raw.MemberCount),
	}
	if rec.MemberCount > limits.MaxMembers {
		rec.MemberCount = limits.MaxMembers
		rec.Clamped = true
	}
	return rec, nil
}

// Validate decides whether addr holds a plausible ClassInitializer. It reads only,
// never logs, and stops at the first failed check.
func Validate(acc *accessor.Accessor, addr process.ProcessMemoryAddress, limits Limits) Verdict {
	rec, err := ReadRecord(acc, addr, limits)
	if err != nil {
		return Verdict{Reason: ReasonUnreadable, Record: rec}
	}

	namePtr := process.ProcessMemoryAddress(rec.Raw.Name)
	if !acc.IsValidPointer(namePtr) {
		return Verdict{Reason: ReasonClassNamePointer, Record: rec}
	}

	rec.Name = acc.ReadCString(namePtr, limits.StringLimit)
	if !accessor.IsASCIILike(rec.Name) {
		return Verdict{Reason: ReasonClassName, Record: rec}
	}

	if rec.MemberCount > 0 && !acc.IsValidPointer(process.ProcessMemoryAddress(rec.Raw.Members)) {
		return Verdict{Reason: ReasonMemberListPointer, Record: rec}
	}

	return Verdict{Plausible: true, Record: rec}
}
