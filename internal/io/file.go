package ioutils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile writes data to path, creating parent directories as needed.
//
// The data is first written to a temporary file in the same directory and
// then renamed over path, so readers never observe a partial file.
//
// Example:
//
//	err := WriteFile(ctx, "/music/Artist - Album/01 Song - Artist.flac", data)
func WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// DirSaver returns a save callback that writes named files below dir.
//
// Names must be plain file names; anything that would escape dir is
// rejected.
//
// Example:
//
//	save := DirSaver(ctx, "/music/Artist - Album")
//	err := save("01 Song - Artist.flac", data)
func DirSaver(ctx context.Context, dir string) func(name string, data []byte) error {
	return func(name string, data []byte) error {
		if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
			return fmt.Errorf("invalid file name %q", name)
		}
		return WriteFile(ctx, filepath.Join(dir, name), data)
	}
}
