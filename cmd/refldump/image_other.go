//go:build !linux && !windows

package main

import "errors"

func openLiveProcess(pid int, name string) (*loadedImage, error) {
	return nil, errors.New("live processes are only supported on linux and windows")
}
