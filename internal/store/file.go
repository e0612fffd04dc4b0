package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"fxgym/internal/model"
)

// FileStore keeps one file per key under Root, encoded by Codec.
// Layout: <Root>/<SYM>/<YYYY>/<MM>/<SYM>-<YYYY>-<MM>-<bucket>.<ext>
type FileStore struct {
	Root  string
	Codec Codec
}

// NewFileStore creates a FileStore for the given format (csv, parquet, json).
func NewFileStore(root, format string) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("cache root must not be empty")
	}
	c := NewCodec(format)
	if c == nil {
		return nil, fmt.Errorf("unsupported cache format %q (use: csv, parquet, json)", format)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return &FileStore{Root: root, Codec: c}, nil
}

func (s *FileStore) Name() string { return s.Codec.Extension() }

func (s *FileStore) Close() error { return nil }

// Path returns the artifact location for key.
func (s *FileStore) Path(key model.CacheKey) string {
	p := key.Period
	return filepath.Join(s.Root, key.Symbol, fmt.Sprintf("%04d", p.Year), fmt.Sprintf("%02d", int(p.Month)),
		key.String()+"."+s.Codec.Extension())
}

func (s *FileStore) Exists(ctx context.Context, key model.CacheKey) (bool, error) {
	_, err := os.Stat(s.Path(key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (s *FileStore) Read(ctx context.Context, key model.CacheKey) ([]model.Bar, error) {
	bars, err := s.Codec.Load(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return bars, err
}

// Write encodes into a temp file in the target directory and renames it
// over the final path, so a reader sees either the old or the new artifact.
func (s *FileStore) Write(ctx context.Context, key model.CacheKey, bars []model.Bar) error {
	path := s.Path(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+key.String()+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	if err := s.Codec.Save(bars, tmpPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
