package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInsufficientBars is returned when a series is too short to produce a return.
	ErrInsufficientBars = errors.New("series needs at least two bars")
	// ErrNotMonotonic is returned when timestamps are not strictly increasing.
	ErrNotMonotonic = errors.New("bar timestamps are not strictly increasing")
	// ErrInvalidBar is returned when a bar breaks the OHLC invariant.
	ErrInvalidBar = errors.New("bar violates low <= open,close <= high")
)

// BarSeries is an ordered, time-indexed, immutable sequence of bars.
type BarSeries struct {
	symbol string
	bucket time.Duration
	bars   []Bar
}

// NewBarSeries validates bars and takes a private copy.
func NewBarSeries(symbol string, bucket time.Duration, bars []Bar) (*BarSeries, error) {
	if len(bars) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientBars, len(bars))
	}
	if err := ValidateBars(bars); err != nil {
		return nil, err
	}
	cp := make([]Bar, len(bars))
	copy(cp, bars)
	return &BarSeries{symbol: NormalizeSymbol(symbol), bucket: bucket, bars: cp}, nil
}

// ValidateBars checks ordering and the per-bar invariant.
func ValidateBars(bars []Bar) error {
	for i, b := range bars {
		if !b.Valid() {
			return fmt.Errorf("%w: index %d at %d", ErrInvalidBar, i, b.Timestamp)
		}
		if i > 0 && b.Timestamp <= bars[i-1].Timestamp {
			return fmt.Errorf("%w: index %d (%d after %d)", ErrNotMonotonic, i, b.Timestamp, bars[i-1].Timestamp)
		}
	}
	return nil
}

func (s *BarSeries) Symbol() string            { return s.symbol }
func (s *BarSeries) Bucket() time.Duration     { return s.bucket }
func (s *BarSeries) Len() int                  { return len(s.bars) }
func (s *BarSeries) At(i int) Bar              { return s.bars[i] }
func (s *BarSeries) First() Bar                { return s.bars[0] }
func (s *BarSeries) Last() Bar                 { return s.bars[len(s.bars)-1] }
func (s *BarSeries) Close(i int) float64       { return s.bars[i].Close }
func (s *BarSeries) Timestamp(i int) time.Time { return s.bars[i].Time() }

// Bars returns a copy of the underlying bars.
func (s *BarSeries) Bars() []Bar {
	cp := make([]Bar, len(s.bars))
	copy(cp, s.bars)
	return cp
}

// Closes returns the close prices in order.
func (s *BarSeries) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

// LogReturn is ln(close[last]/close[first]).
func (s *BarSeries) LogReturn() float64 {
	return math.Log(s.Last().Close / s.First().Close)
}

// Slice returns bars [i, j) as a new series.
func (s *BarSeries) Slice(i, j int) (*BarSeries, error) {
	if i < 0 || j > len(s.bars) || i > j {
		return nil, fmt.Errorf("slice [%d,%d) out of range [0,%d)", i, j, len(s.bars))
	}
	return NewBarSeries(s.symbol, s.bucket, s.bars[i:j])
}

// Split returns the leading (1-testFraction) share as train and the rest as test.
func (s *BarSeries) Split(testFraction float64) (train, test *BarSeries, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction %v must be in (0,1)", testFraction)
	}
	cut := int(float64(len(s.bars)) * (1 - testFraction))
	if train, err = s.Slice(0, cut); err != nil {
		return nil, nil, fmt.Errorf("train split: %w", err)
	}
	if test, err = s.Slice(cut, len(s.bars)); err != nil {
		return nil, nil, fmt.Errorf("test split: %w", err)
	}
	return train, test, nil
}
