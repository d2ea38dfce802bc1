package process_blob

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"refldump/process"
	"refldump/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

const (
	metadataFile  = "metadata.json"
	memoryMapFile = "process_memory_map.json"
)

// ProcessDump is an in-memory segmented image. It backs saved dump directories,
// raw memory files, PE files and the synthetic images used in tests.
type ProcessDump struct {
	PID       process.ProcessID
	Name      string
	MemoryMap []memory_map.MemoryMapItem
	Blobs     map[uint64][]byte // Address -> Data

	log *logger.Logger
}

var _ process.Image = (*ProcessDump)(nil)

// NewProcessDump creates an empty ProcessDump
func NewProcessDump() *ProcessDump {
	return &ProcessDump{
		Blobs: make(map[uint64][]byte),
		log:   logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "image")),
	}
}

// Metadata describes where a dump came from
type Metadata struct {
	PID  process.ProcessID `json:"pid"`
	Name string            `json:"name"`
}

// AddRegion maps data at item.Address. Uninitialized regions may pass nil data.
// Regions must not overlap.
func (p *ProcessDump) AddRegion(item memory_map.MemoryMapItem, data []byte) error {
	if item.Size == 0 {
		item.Size = uint(len(data))
	}
	if item.Size == 0 {
		return fmt.Errorf("empty region at 0x%x", item.Address)
	}
	if uint(len(data)) > item.Size {
		return fmt.Errorf("region at 0x%x: %d bytes of data exceed region size %d", item.Address, len(data), item.Size)
	}

	for _, existing := range p.MemoryMap {
		if item.Address < existing.End() && existing.Address < item.End() {
			return fmt.Errorf("region at 0x%x overlaps region at 0x%x", item.Address, existing.Address)
		}
	}

	p.MemoryMap = append(p.MemoryMap, item)
	memory_map.Sort(p.MemoryMap)

	if data != nil {
		p.Blobs[item.Address] = data
	}
	return nil
}

func (p *ProcessDump) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	result := make([]memory_map.MemoryMapItem, len(p.MemoryMap))
	copy(result, p.MemoryMap)
	return result, nil
}

func (p *ProcessDump) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	region := memory_map.FindRegion(uint64(addr), p.MemoryMap)
	if region == nil || !region.Initialized || !region.IsReadable() {
		return false
	}
	// a short blob (partial save) leaves the tail of the region without data
	return uint64(addr)-region.Address < uint64(len(p.Blobs[region.Address]))
}

// ReadMemory reads across adjacent regions and stops at the first byte it cannot
// serve, returning what it has so far together with the reason.
func (p *ProcessDump) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	result := make([]byte, 0, size)
	cur := uint64(addr)
	remaining := uint64(size)

	for remaining > 0 {
		region := memory_map.FindRegion(cur, p.MemoryMap)
		if region == nil {
			return result, fmt.Errorf("read 0x%x at byte %d of %d: %w", addr, len(result), size, process.ErrAddressNotMapped)
		}
		if !region.Initialized || !region.IsReadable() {
			return result, fmt.Errorf("read 0x%x at byte %d of %d: region 0x%x (%s): %w",
				addr, len(result), size, region.Address, region.Perms, process.ErrUnreadable)
		}

		data := p.Blobs[region.Address]
		offset := cur - region.Address
		if offset >= uint64(len(data)) {
			return result, fmt.Errorf("read 0x%x at byte %d of %d: no data for 0x%x: %w",
				addr, len(result), size, cur, process.ErrUnreadable)
		}

		n := min(remaining, uint64(len(data))-offset)
		result = append(result, data[offset:offset+n]...)
		cur += n
		remaining -= n
	}

	return result, nil
}

// savedRegion mirrors MemoryMapItem but tolerates dumps written before the
// Initialized/Loaded flags existed.
type savedRegion struct {
	Address     uint64
	Size        uint
	Perms       string
	Initialized *bool
	Loaded      *bool
	Name        string
}

// Load reads a dump directory written by Save
func (p *ProcessDump) Load(dirname string) error {
	metadataBytes, err := os.ReadFile(filepath.Join(dirname, metadataFile))
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	p.PID = metadata.PID
	p.Name = metadata.Name

	mmBytes, err := os.ReadFile(filepath.Join(dirname, memoryMapFile))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	var saved []savedRegion
	if err := json.Unmarshal(mmBytes, &saved); err != nil {
		return fmt.Errorf("failed to unmarshal memory map: %w", err)
	}

	loaded := 0
	for _, s := range saved {
		item := memory_map.MemoryMapItem{
			Address: s.Address,
			Size:    s.Size,
			Perms:   s.Perms,
			Name:    s.Name,
		}

		filename := filepath.Join(dirname, blobName(item))
		data, err := os.ReadFile(filename)
		switch {
		case os.IsNotExist(err):
			data = nil // not saved (too large or not readable)
		case err != nil:
			return fmt.Errorf("failed to read blob %s: %w", filename, err)
		}

		item.Initialized = data != nil
		if s.Initialized != nil {
			item.Initialized = *s.Initialized && data != nil
		}
		item.Loaded = true
		if s.Loaded != nil {
			item.Loaded = *s.Loaded
		}

		if err := p.AddRegion(item, data); err != nil {
			return fmt.Errorf("dump %s: %w", dirname, err)
		}
		if data != nil {
			loaded++
		}
	}

	p.log.Infoln("Loaded dump", dirname, "with", len(p.MemoryMap), "regions,", loaded, "with data")
	return nil
}

// LoadRaw maps a flat memory file at base with the given permissions
func (p *ProcessDump) LoadRaw(path string, base process.ProcessMemoryAddress, perms string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read raw image: %w", err)
	}
	if p.Name == "" {
		p.Name = filepath.Base(path)
	}

	return p.AddRegion(memory_map.MemoryMapItem{
		Address:     uint64(base),
		Size:        uint(len(data)),
		Perms:       perms,
		Initialized: true,
		Loaded:      true,
		Name:        filepath.Base(path),
	}, data)
}

func blobName(item memory_map.MemoryMapItem) string {
	return fmt.Sprintf("blob_0x%x_%d.bin", item.Address, item.Size)
}
