package main

import (
	"fmt"
	"strconv"
	"strings"

	"refldump/process"
	"refldump/reflection"
	"refldump/search"

	"github.com/spf13/viper"
)

// limitsFromConfig overlays configured limits on the defaults; zero keeps the default
func limitsFromConfig(v *viper.Viper) reflection.Limits {
	limits := reflection.DefaultLimits()
	if n := v.GetInt("limits.max-members"); n > 0 {
		limits.MaxMembers = n
	}
	if n := v.GetInt("limits.max-classes"); n > 0 {
		limits.MaxClasses = n
	}
	if n := v.GetInt("limits.string-limit"); n > 0 {
		limits.StringLimit = n
	}
	return limits
}

func scannerFromConfig(v *viper.Viper) *search.Scanner {
	var options []search.Option
	if n := v.GetInt("scan.chunk-size"); n > 0 {
		options = append(options, search.WithChunkSize(n))
	}
	return search.NewScanner(options...)
}

// signatureFromConfig returns the configured registration signature or the default one
func signatureFromConfig(v *viper.Viper) (process.AOB, error) {
	s := v.GetString("scan.signature")
	if s == "" {
		s = reflection.DefaultSignature
	}
	aob, err := process.ParseAOB(s)
	if err != nil {
		return process.AOB{}, fmt.Errorf("scan.signature: %w", err)
	}
	return aob, nil
}

// parseAddress accepts hex with or without 0x, or decimal with a "#" prefix
func parseAddress(s string) (process.ProcessMemoryAddress, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty address")
	}

	base := 16
	if strings.HasPrefix(s, "#") {
		base = 10
		s = s[1:]
	} else {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	}
	s = strings.ReplaceAll(s, "`", "")

	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return process.ProcessMemoryAddress(v), nil
}

// parseRange parses "START-END" or "START+SIZE" into a half-open range
func parseRange(s string) (reflection.Range, error) {
	if start, size, ok := strings.Cut(s, "+"); ok {
		a, err := parseAddress(start)
		if err != nil {
			return reflection.Range{}, err
		}
		n, err := parseAddress(size)
		if err != nil {
			return reflection.Range{}, err
		}
		return reflection.Range{Start: a, End: a + n}, nil
	}

	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return reflection.Range{}, fmt.Errorf("range %q: want START-END or START+SIZE", s)
	}
	a, err := parseAddress(start)
	if err != nil {
		return reflection.Range{}, err
	}
	b, err := parseAddress(end)
	if err != nil {
		return reflection.Range{}, err
	}
	return reflection.Range{Start: a, End: b}, nil
}
