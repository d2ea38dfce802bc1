package main

import (
	"errors"
	"fmt"

	"refldump/process"
	"refldump/process_blob"

	"github.com/spf13/pflag"
)

type imageFlags struct {
	dump  string
	raw   string
	base  string
	perms string
	pe    string
	pid   int
	name  string
}

var imageSource imageFlags

func addImageFlags(flags *pflag.FlagSet) {
	flags.StringVar(&imageSource.dump, "dump", "", "saved dump directory")
	flags.StringVar(&imageSource.raw, "raw", "", "flat raw memory file")
	flags.StringVar(&imageSource.base, "base", fmt.Sprintf("0x%X", process.BASEADDRESS), "load address of --raw")
	flags.StringVar(&imageSource.perms, "perms", "r-xp", "permissions of --raw")
	flags.StringVar(&imageSource.pe, "pe", "", "PE executable mapped at its image base")
	flags.IntVar(&imageSource.pid, "pid", 0, "live process ID")
	flags.StringVar(&imageSource.name, "name", "", "live process name")
}

// loadedImage is an opened image plus what snapshot records about it
type loadedImage struct {
	process.Image
	meta  process_blob.Metadata
	close func() error
}

func (l *loadedImage) Close() error {
	if l.close == nil {
		return nil
	}
	return l.close()
}

// openImage opens the single image source selected on the command line
func openImage(src imageFlags) (*loadedImage, error) {
	selected := 0
	for _, set := range []bool{src.dump != "", src.raw != "", src.pe != "", src.pid != 0, src.name != ""} {
		if set {
			selected++
		}
	}
	switch {
	case selected == 0:
		return nil, errors.New("no image: use one of --dump, --raw, --pe, --pid or --name")
	case selected > 1:
		return nil, errors.New("--dump, --raw, --pe, --pid and --name are mutually exclusive")
	}

	if src.pid != 0 || src.name != "" {
		return openLiveProcess(src.pid, src.name)
	}

	dump := process_blob.NewProcessDump()
	var err error
	switch {
	case src.dump != "":
		err = dump.Load(src.dump)
	case src.raw != "":
		var base process.ProcessMemoryAddress
		base, err = parseAddress(src.base)
		if err == nil {
			err = dump.LoadRaw(src.raw, base, src.perms)
		}
	case src.pe != "":
		err = dump.LoadPE(src.pe)
	}
	if err != nil {
		return nil, err
	}

	return &loadedImage{
		Image: dump,
		meta:  process_blob.Metadata{PID: dump.PID, Name: dump.Name},
	}, nil
}
