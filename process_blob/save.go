package process_blob

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"refldump/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/dustin/go-humanize"
)

// MaxSavedRegion is the largest region Save writes out, larger ones are recorded
// in the memory map without data.
const MaxSavedRegion = 100 * 1024 * 1024

// Save writes image to dirname in the format Load reads: metadata.json,
// process_memory_map.json and one blob file per readable region.
func Save(ctx context.Context, image process.Image, dirname string, meta Metadata) error {
	log := logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "save"))

	if err := os.MkdirAll(dirname, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	metadataJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dirname, metadataFile), metadataJSON, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	mm, err := image.GetMemoryMap()
	if err != nil {
		return fmt.Errorf("failed to get memory map: %w", err)
	}

	memoryMapJSON, err := json.MarshalIndent(mm, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal memory map: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dirname, memoryMapFile), memoryMapJSON, 0644); err != nil {
		return fmt.Errorf("failed to write memory map file: %w", err)
	}

	stats := map[string]int{
		"skipped_non_readable": 0,
		"skipped_too_large":    0,
		"read_error":           0,
		"partial":              0,
		"saved":                0,
	}
	var savedBytes uint64

	for _, region := range mm {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !region.Initialized || !region.IsReadable() {
			stats["skipped_non_readable"]++
			continue
		}
		if region.Size > MaxSavedRegion {
			log.Infoln("Skipping region", region.String(), "of", humanize.Bytes(uint64(region.Size)))
			stats["skipped_too_large"]++
			continue
		}

		data, err := image.ReadMemory(process.ProcessMemoryAddress(region.Address), process.ProcessMemorySize(region.Size))
		if len(data) == 0 {
			log.Infoln("Failed to read region", region.String(), err)
			stats["read_error"]++
			continue
		}
		if err != nil {
			stats["partial"]++
		}

		if err := os.WriteFile(filepath.Join(dirname, blobName(region)), data, 0644); err != nil {
			return fmt.Errorf("failed to write blob for region 0x%x: %w", region.Address, err)
		}
		stats["saved"]++
		savedBytes += uint64(len(data))
	}

	log.Infoln("Saved", stats["saved"], "regions,", humanize.Bytes(savedBytes), "to", dirname, "stats", stats)
	return nil
}
