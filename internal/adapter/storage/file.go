package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var _ KV = (*FileKV)(nil)

const fileKVExt = ".dat"

// A FileKV stores every key in its own file under dir.
//
// Writes go to a temporary file that is renamed over the target, so a
// reader never sees a half-written value.
type FileKV struct {
	fs  afero.Fs
	dir string
}

func NewFileKV(fsys afero.Fs, dir string) (FileKV, error) {
	const op = "NewFileKV"

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return FileKV{}, fmt.Errorf("%s: %w", op, err)
	}
	return FileKV{fs: fsys, dir: dir}, nil
}

func (s FileKV) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "FileKV.Get"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	path, err := s.path(key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %q: %w", op, key, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

func (s FileKV) Set(ctx context.Context, key string, value []byte) error {
	const op = "FileKV.Set"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	path, err := s.path(key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tmp, err := afero.TempFile(s.fs, s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tmpName := tmp.Name()

	_, writeErr := tmp.Write(value)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.fs.Rename(tmpName, path); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s FileKV) Delete(ctx context.Context, key string) error {
	const op = "FileKV.Delete"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	path, err := s.path(key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = s.fs.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s FileKV) path(key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.dir, key+fileKVExt), nil
}
