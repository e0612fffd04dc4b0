package provider

import (
	"context"
	"errors"

	"fxgym/internal/model"
)

// ErrSourceUnavailable means the source has no archive for the requested period.
var ErrSourceUnavailable = errors.New("raw source unavailable")

// DataProvider is the raw source collaborator used by the bar builder.
// Fetch returns the zip archive bytes holding one tick table for the period.
// Implementations own their transport and local archive storage.
type DataProvider interface {
	Fetch(ctx context.Context, symbol string, period model.Period) ([]byte, error)

	// GetName returns provider name
	GetName() string

	// Close releases connections
	Close() error
}
