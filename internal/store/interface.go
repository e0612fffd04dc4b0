package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fxgym/internal/model"
)

var (
	// ErrNotFound is returned by Read when no artifact exists for the key.
	ErrNotFound = errors.New("cache artifact not found")
	// ErrSchema is returned by Read when an artifact exists but cannot be decoded
	// into the bar columns (missing columns, wrong types, truncated file).
	ErrSchema = errors.New("cache artifact schema mismatch")
)

// Store is the cache storage collaborator: a key-value store from
// (symbol, period, bucket) to a bar table.
// Write must be atomic with respect to concurrent readers of the same key.
type Store interface {
	Exists(ctx context.Context, key model.CacheKey) (bool, error)
	Read(ctx context.Context, key model.CacheKey) ([]model.Bar, error)
	Write(ctx context.Context, key model.CacheKey, bars []model.Bar) error
	Name() string
	Close() error
}

// Codec persists one bar table to a single file.
type Codec interface {
	Save(bars []model.Bar, path string) error
	Load(path string) ([]model.Bar, error)
	Extension() string
}

// NewCodec creates a file codec by format (csv, parquet, json).
// Returns nil if format not supported.
func NewCodec(format string) Codec {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVCodec{}
	case "parquet":
		return ParquetCodec{}
	case "json":
		return JSONCodec{}
	default:
		return nil
	}
}

func schemaErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}
