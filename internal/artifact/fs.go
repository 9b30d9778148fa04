package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"syscall"
	"time"
)

// EnsureDir creates dir and its parents. An existing directory is not an error.
func EnsureDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	return nil
}

// List returns the paths of the artifacts in dir, sorted by name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &StorageError{Op: "list", Path: dir, Err: err}
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsArtifactName(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// Rotate moves every artifact in outputDir into historicDir, keeping file
// names. Other files are left alone. An empty historicDir disables rotation.
// It returns the historic paths of the moved files; on error, files moved
// before the failure stay moved and the failing file stays in outputDir.
func Rotate(outputDir, historicDir string) ([]string, error) {
	if historicDir == "" {
		return nil, nil
	}
	if err := EnsureDir(historicDir); err != nil {
		return nil, err
	}
	sources, err := List(outputDir)
	if err != nil {
		return nil, err
	}
	moved := make([]string, 0, len(sources))
	for _, src := range sources {
		dst := filepath.Join(historicDir, filepath.Base(src))
		if _, err := os.Lstat(dst); err == nil {
			return moved, &StorageError{Op: "rotate", Path: dst, Err: os.ErrExist}
		} else if !errors.Is(err, os.ErrNotExist) {
			return moved, &StorageError{Op: "rotate", Path: dst, Err: err}
		}
		if err := move(src, dst); err != nil {
			return moved, &StorageError{Op: "rotate", Path: src, Err: err}
		}
		moved = append(moved, dst)
	}
	return moved, nil
}

// move renames src to dst, falling back to copy-then-remove across devices.
// Either src or dst exists afterwards, never both and never neither.
func move(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

// copyFile writes src to dst via a temp file in dst's directory so dst only
// appears once complete.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	return writeAtomic(dst, info.Mode().Perm(), func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// writeAtomic fills path+".tmp" via fill, syncs it and renames it to path.
func writeAtomic(path string, perm os.FileMode, fill func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Write encodes records into a new artifact in dir named for now, and
// returns its path. The name is made unique against dir and every dir in
// avoid, so a later rotation never collides. Records are encoded before any
// file is created.
func Write(dir string, records []Record, now time.Time, avoid ...string) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		return "", fmt.Errorf("encode artifact: %w", err)
	}
	if err := EnsureDir(dir); err != nil {
		return "", err
	}
	name, err := uniqueName(now, append([]string{dir}, avoid...)...)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := writeAtomic(path, 0o644, func(w io.Writer) error {
		_, err := w.Write(buf.Bytes())
		return err
	}); err != nil {
		return "", &StorageError{Op: "write", Path: path, Err: err}
	}
	return path, nil
}

// Read decodes the artifact at path.
func Read(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}
	defer f.Close()
	records, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}
