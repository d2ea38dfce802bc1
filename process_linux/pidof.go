//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"refldump/process"
	"refldump/process/memory_map"
)

const procRoot = "/proc"

// commLen is TASK_COMM_LEN minus the terminator; longer names are cut in comm
const commLen = 15

// ErrNoSuchProcess is returned by PickByName when nothing matches
var ErrNoSuchProcess = errors.New("no such process")

// Candidate is a running process whose name matched a lookup
type Candidate struct {
	PID  process.ProcessID
	Name string // comm
	Exe  string // /proc/<pid>/exe target, empty when unreadable

	// HasCode is set when the process maps executable pages from a file with
	// the looked up name: the binary itself, or a PE image under a loader.
	HasCode bool
}

// FindByName lists processes named name, by comm (possibly truncated), exe
// basename or a mapped executable file, ordered by PID. The caller is skipped.
func FindByName(name string) ([]Candidate, error) {
	return findByName(procRoot, name, os.Getpid())
}

// PickByName returns the process to read for name. Processes that map code from
// a file called name win over same-named helpers and launchers; ties go to the
// lowest PID.
func PickByName(name string) (process.ProcessID, error) {
	candidates, err := FindByName(name)
	if err != nil {
		return 0, err
	}
	return pick(name, candidates)
}

func pick(name string, candidates []Candidate) (process.ProcessID, error) {
	if len(candidates) == 0 {
		return 0, fmt.Errorf("%q: %w", name, ErrNoSuchProcess)
	}
	for _, c := range candidates {
		if c.HasCode {
			return c.PID, nil
		}
	}
	return candidates[0].PID, nil
}

func findByName(root, name string, self int) ([]Candidate, error) {
	if name == "" {
		return nil, errors.New("empty name")
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}

	var out []Candidate
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 || pid == self || !e.IsDir() {
			continue
		}

		dir := filepath.Join(root, e.Name())
		comm, _ := os.ReadFile(filepath.Join(dir, "comm"))
		exe, _ := os.Readlink(filepath.Join(dir, "exe"))

		c := Candidate{
			PID:     process.ProcessID(pid),
			Name:    strings.TrimSpace(string(comm)),
			Exe:     exe,
			HasCode: mapsCodeFrom(filepath.Join(dir, "maps"), name),
		}
		if commMatches(c.Name, name) || (exe != "" && filepath.Base(exe) == name) || c.HasCode {
			out = append(out, c)
		}
	}

	slices.SortFunc(out, func(a, b Candidate) int { return int(a.PID) - int(b.PID) })
	return out, nil
}

func commMatches(comm, name string) bool {
	if comm == "" {
		return false
	}
	if len(name) > commLen {
		name = name[:commLen]
	}
	return comm == name
}

// mapsCodeFrom reports whether the maps file lists an executable mapping of a
// file called name. Windows binaries under a loader are matched case-insensitively.
func mapsCodeFrom(path, name string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	mm, err := memory_map.ParseMaps(f)
	if err != nil {
		return false
	}
	for _, item := range mm {
		if !item.IsExecutable() || !strings.HasPrefix(item.Name, "/") {
			continue
		}
		base := filepath.Base(item.Name)
		if base == name || (strings.HasSuffix(strings.ToLower(base), ".exe") && strings.EqualFold(base, name)) {
			return true
		}
	}
	return false
}
