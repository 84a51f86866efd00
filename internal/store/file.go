package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// fileBackend persists the record as a JSON file.  The ttl is ignored;
// expiry is enforced by the Store on load.
type fileBackend struct {
	path string
}

func (f *fileBackend) Read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (f *fileBackend) Write(data []byte, _ time.Duration) error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(f.path, data, 0o600)
}

func (f *fileBackend) Delete() error {
	err := os.Remove(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
