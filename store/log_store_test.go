package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogFileFreshHasEmptyHeader(t *testing.T) {
	dir := t.TempDir()
	lf, err := OpenLogFile(dir)
	require.NoError(t, err)
	defer lf.Close()

	base, term, count := lf.Info()
	require.Zero(t, base)
	require.Zero(t, term)
	require.Zero(t, count)
}

func TestLogFileAppendAndReopenReplays(t *testing.T) {
	dir := t.TempDir()
	lf, err := OpenLogFile(dir)
	require.NoError(t, err)
	require.NoError(t, lf.Append(1, 1, 0, []byte("a"), true))
	require.NoError(t, lf.Append(1, 2, 0, []byte("b"), true))
	require.NoError(t, lf.Close())

	lf2, err := OpenLogFile(dir)
	require.NoError(t, err)
	defer lf2.Close()
	base, baseTerm, count := lf2.Info()
	require.Zero(t, base)
	require.Zero(t, baseTerm)
	require.Equal(t, 2, count)

	var got []LogRecord
	require.NoError(t, lf2.Iterate(func(r LogRecord) error {
		got = append(got, r)
		return nil
	}))
	require.Len(t, got, 2)
	require.Equal(t, "a", string(got[0].Data))
	require.Equal(t, "b", string(got[1].Data))
}

func TestLogFileTruncateAfter(t *testing.T) {
	dir := t.TempDir()
	lf, err := OpenLogFile(dir)
	require.NoError(t, err)
	defer lf.Close()
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, lf.Append(1, i, 0, nil, false))
	}
	require.NoError(t, lf.TruncateAfter(1, true))
	_, _, count := lf.Info()
	require.Equal(t, 1, count)
}

func TestLogFileCompactPrefixKeepsSuffix(t *testing.T) {
	dir := t.TempDir()
	lf, err := OpenLogFile(dir)
	require.NoError(t, err)
	defer lf.Close()
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, lf.Append(1, i, 0, []byte{byte(i)}, false))
	}
	require.NoError(t, lf.CompactPrefix(3, 1, true))
	base, baseTerm, count := lf.Info()
	require.Equal(t, uint64(3), base)
	require.Equal(t, uint64(1), baseTerm)
	require.Equal(t, 2, count)

	var got []LogRecord
	require.NoError(t, lf.Iterate(func(r LogRecord) error {
		got = append(got, r)
		return nil
	}))
	require.Len(t, got, 2)
	require.Equal(t, uint64(4), got[0].Index)
	require.Equal(t, uint64(5), got[1].Index)
}

func TestLogFileDetectsCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	lf, err := OpenLogFile(dir)
	require.NoError(t, err)
	require.NoError(t, lf.Append(1, 1, 0, []byte("a"), true))
	require.NoError(t, lf.Close())

	path := dir + "/raft_log.dat"
	b, err := readFileAll(path)
	require.NoError(t, err)
	// Flip a byte inside the first record's body, past the header.
	b[len(b)-1] ^= 0xFF
	require.NoError(t, writeFileAtomic(path, b, true))

	_, err = OpenLogFile(dir)
	require.ErrorIs(t, err, ErrCorruption)
}
