package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Exists reports whether path names an existing file or directory.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// WriteAtomic writes data to path through a temp file in the same directory
// and renames it into place, so readers never see a partial file.
func WriteAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// WriteVerified is WriteAtomic followed by a SHA-256 comparison of the file
// on disk against data. The file is removed on mismatch.
func WriteVerified(path string, data []byte, mode os.FileMode) error {
	if err := WriteAtomic(path, data, mode); err != nil {
		return err
	}
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	onDisk := sha256.New()
	read, err := io.Copy(onDisk, in)
	if err != nil {
		return err
	}
	if read != int64(len(data)) {
		_ = os.Remove(path)
		return fmt.Errorf("write size mismatch: wrote %d bytes, found %d bytes", len(data), read)
	}
	want := sha256.Sum256(data)
	if !bytes.Equal(want[:], onDisk.Sum(nil)) {
		_ = os.Remove(path)
		return errors.New("write hash mismatch: file corrupted on disk")
	}
	return nil
}
