package store

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateFileFreshDirIsZero(t *testing.T) {
	dir := t.TempDir()
	term, voted, err := OpenStateFile(dir).Load()
	require.NoError(t, err)
	require.Zero(t, term)
	require.Zero(t, voted)
}

func TestStateFileSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sf := OpenStateFile(dir)
	require.NoError(t, sf.Save(100, 5, true))

	term, voted, err := sf.Load()
	require.NoError(t, err)
	require.Equal(t, uint64(100), term)
	require.Equal(t, uint64(5), voted)
}

func TestStateFileDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	sf := OpenStateFile(dir)
	require.NoError(t, sf.Save(100, 5, true))

	path := filepath.Join(dir, "raft_state.dat")
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	// Overwrite current_term's bytes (offset 10..18) with 999, corrupting
	// the field the CRC covers (spec §8 scenario 5).
	binary.LittleEndian.PutUint64(b[10:18], 999)
	require.NoError(t, os.WriteFile(path, b, 0o644))

	_, _, err = sf.Load()
	require.ErrorIs(t, err, ErrCorruption)
}
