// Package dump drives a reflection dump: it pulls candidates from a discovery
// strategy, decodes them and streams the resulting structs to a writer.
package dump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"

	"refldump/accessor"
	"refldump/process"
	"refldump/reflection"
	"refldump/sanitize"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// ErrInternal wraps a panic recovered during a run
var ErrInternal = errors.New("internal error")

// DefaultProgressEvery is how many classes pass between progress log lines
const DefaultProgressEvery = 200

// Progress receives run progress, one Increment per candidate
type Progress interface {
	Start(total int)
	Increment()
	Finish()
}

type Config struct {
	Image      process.Image
	Discovery  reflection.Discovery
	Output     io.Writer
	OutputPath string // reported in the summary when set

	Limits        reflection.Limits
	TagTable      sanitize.TagTable // nil selects the default table
	Verbose       bool
	ProgressEvery int

	Progress  Progress   // optional
	Hierarchy *Hierarchy // optional
}

// Result mirrors the summary written at the end of the output
type Result struct {
	Classes   int
	Members   int
	Rejected  int
	Cancelled bool
}

// Run performs one dump. Nothing is written when discovery fails. Cancelling ctx
// stops the run between classes; the summary is still written and Result.Cancelled
// is set. A panic is returned as ErrInternal and leaves the output as it was.
func Run(ctx context.Context, cfg Config) (result Result, err error) {
	log := logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "dump"))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrInternal, r, debug.Stack())
		}
	}()

	if cfg.Image == nil || cfg.Discovery == nil || cfg.Output == nil {
		return result, errors.New("dump: image, discovery and output are required")
	}
	if cfg.Limits == (reflection.Limits{}) {
		cfg.Limits = reflection.DefaultLimits()
	}
	if cfg.TagTable == nil {
		cfg.TagTable = sanitize.DefaultTagTable()
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = DefaultProgressEvery
	}

	candidates, err := cfg.Discovery.Candidates(ctx)
	if err != nil {
		return result, err
	}

	decoder := reflection.NewDecoder(accessor.New(cfg.Image),
		reflection.WithLimits(cfg.Limits),
		reflection.WithTagTable(cfg.TagTable),
		reflection.WithVerbose(cfg.Verbose),
		reflection.WithDecoderLogger(log),
	)
	policy := cfg.Discovery.Policy()
	emitter := NewEmitter(cfg.Output)

	log.Infoln("Dumping", candidates.Total, "candidates from", cfg.Discovery.String(), "policy", policy.String())

	if err := emitter.Header(cfg.Discovery.String()); err != nil {
		return result, fmt.Errorf("write header: %w", err)
	}

	if cfg.Progress != nil {
		cfg.Progress.Start(candidates.Total)
		defer cfg.Progress.Finish()
	}

	result.Rejected = candidates.Rejected
	processed := make(map[process.ProcessMemoryAddress]struct{}, candidates.Total)
	var block *reflection.Range

	for candidate := range candidates.Seq {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		if candidate.Range != nil && candidate.Range != block {
			block = candidate.Range
			if err := emitter.Block(*block); err != nil {
				return result, fmt.Errorf("write block marker: %w", err)
			}
		}

		if _, ok := processed[candidate.Address]; ok {
			continue
		}
		processed[candidate.Address] = struct{}{}

		class, _ := decoder.Decode(candidate.Address, policy)
		if cfg.Progress != nil {
			cfg.Progress.Increment()
		}
		if class == nil {
			result.Rejected++
			continue
		}

		if err := emitter.Class(class); err != nil {
			return result, fmt.Errorf("write class %s: %w", class.Name, err)
		}
		if cfg.Hierarchy != nil {
			cfg.Hierarchy.Add(class)
		}

		result.Classes++
		result.Members += len(class.Fields)
		if result.Classes%cfg.ProgressEvery == 0 {
			log.Infoln("Dumped", result.Classes, "classes,", result.Members, "members")
		}
	}

	if result.Cancelled {
		log.Warn("Dump cancelled after ", result.Classes, " classes")
	}

	if err := emitter.Summary(Summary{
		Classes:    result.Classes,
		Members:    result.Members,
		Rejected:   result.Rejected,
		Cancelled:  result.Cancelled,
		OutputPath: cfg.OutputPath,
	}); err != nil {
		return result, fmt.Errorf("write summary: %w", err)
	}

	log.Infoln("Dumped", result.Classes, "classes,", result.Members, "members, rejected", result.Rejected)
	return result, nil
}
