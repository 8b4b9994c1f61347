package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeFileAtomic writes data to a temp file in dir and renames it over
// path, fsync'ing the temp file (and, best-effort, the directory) first
// when sync is true. This is the temp-file + rename + optional-fsync
// pattern spec §4.1 requires for every durable-file write.
func writeFileAtomic(path string, data []byte, sync bool) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrIO, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write temp file: %v", ErrIO, err)
	}
	if sync {
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			return fmt.Errorf("%w: fsync temp file: %v", ErrIO, err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %v", ErrIO, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: rename temp file: %v", ErrIO, err)
	}
	if sync {
		if dirF, err := os.Open(dir); err == nil {
			dirF.Sync()
			dirF.Close()
		}
	}
	return nil
}

func readFileAll(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return b, nil
}
