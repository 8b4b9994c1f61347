package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotFileLoadAbsentIsNotFound(t *testing.T) {
	dir := t.TempDir()
	_, _, _, err := OpenSnapshotFile(dir).Load()
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotFileSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sf := OpenSnapshotFile(dir)
	require.NoError(t, sf.Save(10, 3, []byte("state-bytes")))

	lastIndex, lastTerm, state, err := sf.Load()
	require.NoError(t, err)
	require.Equal(t, uint64(10), lastIndex)
	require.Equal(t, uint64(3), lastTerm)
	require.Equal(t, "state-bytes", string(state))
}

func TestSnapshotFileOverwrite(t *testing.T) {
	dir := t.TempDir()
	sf := OpenSnapshotFile(dir)
	require.NoError(t, sf.Save(10, 3, []byte("old")))
	require.NoError(t, sf.Save(20, 4, []byte("new")))

	lastIndex, lastTerm, state, err := sf.Load()
	require.NoError(t, err)
	require.Equal(t, uint64(20), lastIndex)
	require.Equal(t, uint64(4), lastTerm)
	require.Equal(t, "new", string(state))
}
