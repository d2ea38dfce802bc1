package process_blob

import (
	"debug/pe"
	"fmt"
	"path/filepath"

	"refldump/process/memory_map"
)

const (
	scnCntUninitializedData = 0x00000080
	scnMemExecute           = 0x20000000
	scnMemRead              = 0x40000000
	scnMemWrite             = 0x80000000
)

// LoadPE maps the sections of a PE file the way the loader would place them,
// at ImageBase+VirtualAddress.
func (p *ProcessDump) LoadPE(path string) error {
	f, err := pe.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open PE file: %w", err)
	}
	defer f.Close()

	var imageBase uint64
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader64:
		imageBase = oh.ImageBase
	case *pe.OptionalHeader32:
		imageBase = uint64(oh.ImageBase)
	default:
		return fmt.Errorf("%s: missing optional header", path)
	}

	if p.Name == "" {
		p.Name = filepath.Base(path)
	}

	for _, section := range f.Sections {
		size := section.VirtualSize
		if size == 0 {
			size = section.Size
		}
		if size == 0 {
			continue
		}

		item := memory_map.MemoryMapItem{
			Address: imageBase + uint64(section.VirtualAddress),
			Size:    uint(size),
			Perms:   sectionPerms(section.Characteristics),
			Loaded:  true,
			Name:    section.Name,
		}

		var data []byte
		if section.Characteristics&scnCntUninitializedData == 0 || section.Size > 0 {
			raw, err := section.Data()
			if err != nil {
				return fmt.Errorf("failed to read section %s: %w", section.Name, err)
			}
			// the loader zero-fills the tail past the raw data
			data = make([]byte, size)
			copy(data, raw)
			item.Initialized = true
		}

		if err := p.AddRegion(item, data); err != nil {
			return fmt.Errorf("%s: section %s: %w", path, section.Name, err)
		}
	}

	p.log.Infoln("Loaded PE", path, "image base", fmt.Sprintf("0x%X", imageBase), "with", len(p.MemoryMap), "sections")
	return nil
}

func sectionPerms(characteristics uint32) string {
	perms := []byte("---p")
	if characteristics&scnMemRead != 0 {
		perms[0] = 'r'
	}
	if characteristics&scnMemWrite != 0 {
		perms[1] = 'w'
	}
	if characteristics&scnMemExecute != 0 {
		perms[2] = 'x'
	}
	return string(perms)
}
