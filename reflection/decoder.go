package reflection

import (
	"fmt"

	"refldump/accessor"
	"refldump/pod"
	"refldump/process"
	"refldump/sanitize"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Decoder turns class initializer records into DecodedClass values
type Decoder struct {
	acc     *accessor.Accessor
	limits  Limits
	tags    sanitize.TagTable
	verbose bool
	log     *logger.Logger
}

type DecoderOption func(*Decoder)

func WithLimits(limits Limits) DecoderOption {
	return func(d *Decoder) {
		d.limits = limits
	}
}

// WithTagTable replaces the primitive type tag mapping. Names are emitted verbatim.
func WithTagTable(tags sanitize.TagTable) DecoderOption {
	return func(d *Decoder) {
		d.tags = tags
	}
}

// WithVerbose logs every rejected or clamped record
func WithVerbose(verbose bool) DecoderOption {
	return func(d *Decoder) {
		d.verbose = verbose
	}
}

func WithDecoderLogger(log *logger.Logger) DecoderOption {
	return func(d *Decoder) {
		d.log = log
	}
}

func NewDecoder(acc *accessor.Accessor, options ...DecoderOption) *Decoder {
	d := &Decoder{
		acc:    acc,
		limits: DefaultLimits(),
		tags:   sanitize.DefaultTagTable(),
	}
	for _, opt := range options {
		opt(d)
	}
	if d.log == nil {
		d.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "decode"))
	}
	return d
}

func (d *Decoder) Limits() Limits {
	return d.limits
}

func placeholderClassName(ptr uint64) string {
	return fmt.Sprintf("Class_0x%X", ptr)
}

// Decode reads the class at addr. Under PolicyStrict an implausible record returns
// nil with the failing Verdict. Under PolicyLenient only an unreadable record is
// dropped, anything else is rendered with placeholder names.
func (d *Decoder) Decode(addr process.ProcessMemoryAddress, policy Policy) (*DecodedClass, Verdict) {
	var verdict Verdict
	if policy == PolicyStrict {
		verdict = Validate(d.acc, addr, d.limits)
		if !verdict.Plausible {
			if d.verbose {
				d.log.Debugln("Rejected", addr.ToString(), verdict.Reason.String())
			}
			return nil, verdict
		}
	} else {
		rec, err := ReadRecord(d.acc, addr, d.limits)
		if err != nil {
			d.log.Debugln("Skipping unreadable record at", addr.ToString(), err)
			return nil, Verdict{Reason: ReasonUnreadable, Record: rec}
		}
		rec.Name = d.acc.ReadCString(process.ProcessMemoryAddress(rec.Raw.Name), d.limits.StringLimit)
		verdict = Verdict{Plausible: true, Record: rec}
	}

	rec := verdict.Record
	if rec.Clamped && d.verbose {
		d.log.Debugln("Clamped member count of", addr.ToString(), "from", rec.Raw.MemberCount, "to", rec.MemberCount)
	}

	rawName := ""
	if accessor.IsASCIILike(rec.Name) {
		rawName = rec.Name.Value
	}
	fallback := placeholderClassName(rec.Raw.Name)

	class := &DecodedClass{
		Address:        addr,
		Name:           sanitize.Identifier(rawName, fallback),
		Parent:         d.parentName(rec, rawName),
		RawMemberCount: rec.Raw.MemberCount,
		Clamped:        rec.Clamped,
	}

	d.decodeMembers(class, rec)
	return class, verdict
}

// parentName is empty when the parent is missing, unreadable or the class itself
func (d *Decoder) parentName(rec ClassRecord, className string) string {
	parent := d.acc.ReadCString(process.ProcessMemoryAddress(rec.Raw.ParentName), d.limits.StringLimit)
	if !accessor.IsASCIILike(parent) || parent.Value == className {
		return ""
	}
	return sanitize.Identifier(parent.Value, "Base")
}

func (d *Decoder) decodeMembers(class *DecodedClass, rec ClassRecord) {
	if rec.MemberCount == 0 {
		return
	}

	list := process.ProcessMemoryAddress(rec.Raw.Members)
	if !d.acc.IsValidPointer(list) {
		class.Truncated = true
		return
	}

	entries, err := pod.ReadSliceT[MemberInitializer](d.acc.Image(), list, rec.MemberCount)
	if err != nil {
		if d.verbose {
			d.log.Debugln("Member list of", class.Name, "truncated at entry", len(entries), err)
		}
		class.Truncated = true
		class.TruncatedAt = len(entries)
	}

	class.Fields = make([]DecodedField, 0, len(entries))
	for _, entry := range entries {
		class.Fields = append(class.Fields, d.decodeMember(entry))
	}
}

func (d *Decoder) decodeMember(entry MemberInitializer) DecodedField {
	offset, flags := sanitize.DecodeTypeData(entry.TypeData)

	rawName := ""
	name := d.acc.ReadCString(process.ProcessMemoryAddress(entry.Name), d.limits.StringLimit)
	if accessor.IsASCIILike(name) && !sanitize.IsNoiseArtifact(name.Value) {
		rawName = name.Value
	}

	// string types come back sanitized, table names are used as given
	typeName := sanitize.DescribeType(entry.Signature, d.tags, d.lookupString)
	if typeName == "" {
		typeName = sanitize.UnknownType
	}

	return DecodedField{
		Offset: offset,
		Flags:  flags,
		Type:   typeName,
		Name:   sanitize.Identifier(rawName, fmt.Sprintf("member_0x%X", entry.Name)),
	}
}

func (d *Decoder) lookupString(ptr uint64) (string, bool) {
	s := d.acc.ReadCString(process.ProcessMemoryAddress(ptr), d.limits.StringLimit)
	if !accessor.IsASCIILike(s) {
		return "", false
	}
	return s.Value, true
}
