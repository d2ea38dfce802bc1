//go:build linux

package main

import (
	"fmt"

	"refldump/process"
	"refldump/process_blob"
	"refldump/process_linux"
)

func openLiveProcess(pid int, name string) (*loadedImage, error) {
	id := process.ProcessID(pid)
	if id == 0 {
		var err error
		if id, err = process_linux.PickByName(name); err != nil {
			return nil, fmt.Errorf("find process: %w", err)
		}
	}

	p, err := process_linux.NewWithPID(id)
	if err != nil {
		return nil, err
	}
	return &loadedImage{
		Image: p,
		meta:  process_blob.Metadata{PID: p.GetPID(), Name: p.Name()},
		close: p.Close,
	}, nil
}
