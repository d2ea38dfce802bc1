package reflection

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"refldump/accessor"
	"refldump/process"
	"refldump/search"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// ErrNoCandidates is returned when discovery has nothing to dump
var ErrNoCandidates = errors.New("no candidates found")

// DefaultSignature matches lea rdx, [rip+initializer]; mov rcx, rbx; call [rax+8],
// the registration call every class initializer is passed to.
const DefaultSignature = "48 8D 15 ?? ?? ?? ?? 48 8B CB FF 50 08"

// Range is a half-open address interval [Start, End)
type Range struct {
	Start process.ProcessMemoryAddress
	End   process.ProcessMemoryAddress
}

func (r Range) String() string {
	return fmt.Sprintf("0x%X - 0x%X", uint64(r.Start), uint64(r.End))
}

// Len is the number of record slots the range holds
func (r Range) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return int((uint64(r.End-r.Start) + ClassInitializerSize - 1) / ClassInitializerSize)
}

// Candidate is an address that may hold a ClassInitializer. Range is set when the
// address came from a range walk.
type Candidate struct {
	Address process.ProcessMemoryAddress
	Range   *Range
}

// Candidates is a finite sequence of candidates. Rejected counts candidates the
// discovery already dropped before producing the sequence.
type Candidates struct {
	Seq      iter.Seq[Candidate]
	Total    int
	Rejected int
}

// Discovery produces the addresses the decoder should look at
type Discovery interface {
	Policy() Policy
	Candidates(ctx context.Context) (Candidates, error)
	String() string
}

// PatternDiscovery finds initializers through the code that registers them
type PatternDiscovery struct {
	acc       *accessor.Accessor
	signature process.AOB
	scanner   *search.Scanner
	limits    Limits
	log       *logger.Logger
}

// NewPatternDiscovery scans image for signature. A nil scanner uses the defaults.
func NewPatternDiscovery(image process.Image, signature process.AOB, scanner *search.Scanner, limits Limits) *PatternDiscovery {
	if scanner == nil {
		scanner = search.NewScanner()
	}
	return &PatternDiscovery{
		acc:       accessor.New(image),
		signature: signature,
		scanner:   scanner,
		limits:    limits,
		log:       logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "discover")),
	}
}

func (p *PatternDiscovery) Policy() Policy {
	return PolicyStrict
}

func (p *PatternDiscovery) String() string {
	return "signature scan for " + p.signature.String()
}

// Candidates scans for the signature, resolves every hit to its target and keeps the
// distinct targets that validate, at most MaxClasses of them.
func (p *PatternDiscovery) Candidates(ctx context.Context) (Candidates, error) {
	hits, err := p.scanner.Scan(ctx, p.acc.Image(), p.signature)
	if err != nil {
		return Candidates{}, fmt.Errorf("signature scan: %w", err)
	}

	seen := make(map[process.ProcessMemoryAddress]struct{}, len(hits))
	var found []Candidate
	rejected, unresolved := 0, 0

	for _, hit := range hits {
		if err := ctx.Err(); err != nil {
			return Candidates{}, err
		}

		target, err := search.ResolveRIPRelative(p.acc.Image(), hit)
		if err != nil {
			unresolved++
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}

		if v := Validate(p.acc, target, p.limits); !v.Plausible {
			rejected++
			continue
		}

		found = append(found, Candidate{Address: target})
		if len(found) >= p.limits.MaxClasses {
			p.log.Infoln("Reached the limit of", p.limits.MaxClasses, "classes, ignoring remaining hits")
			break
		}
	}

	p.log.Infoln("Hits", len(hits), "unresolved", unresolved, "distinct targets", len(seen), "plausible", len(found), "rejected", rejected)

	if len(found) == 0 {
		return Candidates{}, fmt.Errorf("%d signature hits, %d targets: %w", len(hits), len(seen), ErrNoCandidates)
	}

	return Candidates{
		Seq:      slices.Values(found),
		Total:    len(found),
		Rejected: rejected,
	}, nil
}

// RangeDiscovery walks known initializer tables at a fixed stride
type RangeDiscovery struct {
	Ranges []Range
}

func NewRangeDiscovery(ranges ...Range) *RangeDiscovery {
	return &RangeDiscovery{Ranges: ranges}
}

func (r *RangeDiscovery) Policy() Policy {
	return PolicyLenient
}

func (r *RangeDiscovery) String() string {
	parts := make([]string, len(r.Ranges))
	for i, rng := range r.Ranges {
		parts[i] = rng.String()
	}
	return "range walk over " + strings.Join(parts, ", ")
}

func (r *RangeDiscovery) Candidates(ctx context.Context) (Candidates, error) {
	if len(r.Ranges) == 0 {
		return Candidates{}, fmt.Errorf("no ranges: %w", ErrNoCandidates)
	}

	total := 0
	for _, rng := range r.Ranges {
		if rng.End <= rng.Start {
			return Candidates{}, fmt.Errorf("empty range %s: %w", rng.String(), ErrNoCandidates)
		}
		total += rng.Len()
	}

	ranges := slices.Clone(r.Ranges)
	seq := func(yield func(Candidate) bool) {
		for i := range ranges {
			rng := &ranges[i]
			for cur := rng.Start; cur < rng.End; cur += ClassInitializerSize {
				if !yield(Candidate{Address: cur, Range: rng}) {
					return
				}
			}
		}
	}

	return Candidates{Seq: seq, Total: total}, nil
}

// AddressDiscovery validates an explicit list of initializer addresses
type AddressDiscovery struct {
	Addresses []process.ProcessMemoryAddress
}

func NewAddressDiscovery(addresses ...process.ProcessMemoryAddress) *AddressDiscovery {
	return &AddressDiscovery{Addresses: addresses}
}

func (a *AddressDiscovery) Policy() Policy {
	return PolicyStrict
}

func (a *AddressDiscovery) String() string {
	return fmt.Sprintf("%d explicit addresses", len(a.Addresses))
}

func (a *AddressDiscovery) Candidates(ctx context.Context) (Candidates, error) {
	seen := make(map[process.ProcessMemoryAddress]struct{}, len(a.Addresses))
	var list []Candidate
	for _, addr := range a.Addresses {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		list = append(list, Candidate{Address: addr})
	}

	if len(list) == 0 {
		return Candidates{}, fmt.Errorf("no addresses: %w", ErrNoCandidates)
	}

	return Candidates{Seq: slices.Values(list), Total: len(list)}, nil
}
