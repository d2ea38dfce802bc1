//go:build windows

package main

import (
	"fmt"

	"refldump/process"
	"refldump/process_blob"
	"refldump/process_windows"
)

func openLiveProcess(pid int, name string) (*loadedImage, error) {
	if pid == 0 {
		entry, err := process_windows.OneByName(name)
		if err != nil {
			return nil, fmt.Errorf("find process %q: %w", name, err)
		}
		pid = entry.PID
		name = entry.Name
	}

	p, err := process_windows.NewWithPID(process.ProcessID(pid))
	if err != nil {
		return nil, err
	}
	return &loadedImage{
		Image: p,
		meta:  process_blob.Metadata{PID: p.GetPID(), Name: name},
		close: p.Close,
	}, nil
}
