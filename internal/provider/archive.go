package provider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"fxgym/internal/model"
)

// ArchiveFileName returns EURUSD-2017-01.zip.
func ArchiveFileName(symbol string, p model.Period) string {
	return fmt.Sprintf("%s-%s.zip", model.NormalizeSymbol(symbol), p)
}

// ArchivePath returns <root>/<YYYY>/<MM>/<SYM>-<YYYY>-<MM>.zip.
func ArchivePath(root, symbol string, p model.Period) string {
	return filepath.Join(root, fmt.Sprintf("%04d", p.Year), fmt.Sprintf("%02d", int(p.Month)), ArchiveFileName(symbol, p))
}

// ArchiveDir is an offline DataProvider reading archives already stored on disk.
type ArchiveDir struct {
	Root string
}

// NewArchiveDir creates an offline provider rooted at dir.
func NewArchiveDir(dir string) *ArchiveDir {
	return &ArchiveDir{Root: dir}
}

// GetName returns provider name
func (a *ArchiveDir) GetName() string { return "archive-dir" }

// Close is a no-op.
func (a *ArchiveDir) Close() error { return nil }

// Fetch reads the stored archive or reports ErrSourceUnavailable.
func (a *ArchiveDir) Fetch(ctx context.Context, symbol string, p model.Period) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := ArchivePath(a.Root, symbol, p)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s not found", ErrSourceUnavailable, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", path, err)
	}
	slog.Debug("archive loaded", "path", path, "bytes", len(data))
	return data, nil
}

// WriteArchive stores data at path via a temp file and rename so readers
// never observe a partial archive.
func WriteArchive(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".archive-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
