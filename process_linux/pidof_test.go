//go:build linux

package process_linux

import (
	"os"
	"path/filepath"
	"testing"

	"refldump/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProc writes a /proc-like entry with comm, maps and an exe link
func fakeProc(t *testing.T, root string, pid, comm, exe, maps string) {
	t.Helper()
	dir := filepath.Join(root, pid)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "comm"), []byte(comm+"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "maps"), []byte(maps), 0644))
	if exe != "" {
		require.NoError(t, os.Symlink(exe, filepath.Join(dir, "exe")))
	}
}

func TestFindByName(t *testing.T) {
	root := t.TempDir()
	// launcher shares the name but only maps its own small binary
	fakeProc(t, root, "90", "Game.exe", "/usr/bin/launcher",
		"00400000-00410000 r-xp 00000000 08:01 11 /usr/bin/launcher\n")
	fakeProc(t, root, "120", "Game.exe", "/usr/bin/wine64-preloader",
		"7bc00000-7bc10000 r-xp 00000000 08:01 12 /usr/bin/wine64-preloader\n"+
			"140001000-142000000 r-xp 00001000 08:01 13 /games/Game/GAME.EXE\n")
	fakeProc(t, root, "130", "other", "/usr/bin/other", "")
	fakeProc(t, root, "140", "Game.exe", "", "")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "self"), 0755))

	candidates, err := findByName(root, "Game.exe", 140)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, process.ProcessID(90), candidates[0].PID)
	assert.False(t, candidates[0].HasCode)
	assert.Equal(t, process.ProcessID(120), candidates[1].PID)
	assert.True(t, candidates[1].HasCode)
	assert.Equal(t, "/usr/bin/wine64-preloader", candidates[1].Exe)

	pid, err := pick("Game.exe", candidates)
	require.NoError(t, err)
	assert.Equal(t, process.ProcessID(120), pid, "the process mapping the game's code wins over a lower PID")
}

func TestFindByNameTruncatedComm(t *testing.T) {
	root := t.TempDir()
	fakeProc(t, root, "50", "VeryLongGameNam", "", "")

	candidates, err := findByName(root, "VeryLongGameName", 0)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	pid, err := pick("VeryLongGameName", candidates)
	require.NoError(t, err)
	assert.Equal(t, process.ProcessID(50), pid, "without code mappings the lowest PID is used")
}

func TestPickNoMatch(t *testing.T) {
	_, err := pick("missing", nil)
	assert.ErrorIs(t, err, ErrNoSuchProcess)

	_, err = findByName(t.TempDir(), "", 0)
	assert.Error(t, err)
}
