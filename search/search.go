// Package search finds byte signatures in the executable segments of an image and
// resolves the RIP-relative loads they point at.
package search

import (
	"context"
	"fmt"

	"refldump/process"
	"refldump/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/dustin/go-humanize"
)

// DefaultChunkSize is how much of a segment is read per step
const DefaultChunkSize = 1 << 20

// Scanner holds configuration for the scan
type Scanner struct {
	ChunkSize int
	log       *logger.Logger
}

// Option is a function that configures a Scanner
type Option func(*Scanner)

func WithChunkSize(size int) Option {
	return func(s *Scanner) {
		s.ChunkSize = size
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(s *Scanner) {
		s.log = log
	}
}

func NewScanner(options ...Option) *Scanner {
	s := &Scanner{
		ChunkSize: DefaultChunkSize,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "scan"))
	}
	return s
}

// Match reports whether aob matches data at offset i. A zero mask byte is a
// wildcard, any other mask byte requires the exact pattern byte.
func Match(data []byte, i int, aob process.AOB) bool {
	for j := range aob.Pattern {
		if !aob.IsWildcard(j) && data[i+j] != aob.Pattern[j] {
			return false
		}
	}
	return true
}

// Scan returns the address of every match of aob in the initialized, loaded and
// executable segments of image. Each address is reported once.
func (s *Scanner) Scan(ctx context.Context, image process.Image, aob process.AOB) ([]process.ProcessMemoryAddress, error) {
	if !aob.IsValid() {
		return nil, fmt.Errorf("invalid signature %q", aob.String())
	}

	mm, err := image.GetMemoryMap()
	if err != nil {
		return nil, fmt.Errorf("failed to get memory map: %w", err)
	}

	var results []process.ProcessMemoryAddress
	scanned := 0
	for _, region := range mm {
		if !region.IsScannable() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		hits, err := s.scanRegion(ctx, image, region, aob)
		results = append(results, hits...)
		if err != nil {
			return results, err
		}

		scanned++
		s.log.Infoln("Scanned", region.String(), humanize.Bytes(uint64(region.Size)), "hits", len(hits))
	}

	s.log.Infoln("Signature", aob.String(), "matched", len(results), "times in", scanned, "segments")
	return results, nil
}

func (s *Scanner) scanRegion(ctx context.Context, image process.Image, region memory_map.MemoryMapItem, aob process.AOB) ([]process.ProcessMemoryAddress, error) {
	patLen := uint64(aob.Len())
	overlap := patLen - 1
	chunk := uint64(s.ChunkSize)
	if chunk <= overlap {
		chunk = patLen
	}

	var hits []process.ProcessMemoryAddress
	pos := region.Address
	end := region.End()

	for end-pos >= patLen {
		if err := ctx.Err(); err != nil {
			return hits, err
		}

		readLen := min(chunk, end-pos)
		data, err := image.ReadMemory(process.ProcessMemoryAddress(pos), process.ProcessMemorySize(readLen))
		if err != nil {
			s.log.Debugln("Short read at", fmt.Sprintf("0x%x", pos), "got", len(data), "of", readLen, err)
		}

		if uint64(len(data)) >= patLen {
			limit := len(data) - int(patLen) + 1
			for i := 0; i < limit; i++ {
				if Match(data, i, aob) {
					hits = append(hits, process.ProcessMemoryAddress(pos+uint64(i)))
				}
			}
		}

		if pos+readLen >= end {
			break
		}
		if uint64(len(data)) < readLen {
			// nothing more can be read from this chunk
			pos += readLen
			continue
		}
		// the last overlap bytes start the next chunk so straddling matches are seen once
		pos += readLen - overlap
	}

	return hits, nil
}
