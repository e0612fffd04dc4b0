package truefx

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"fxgym/internal/model"
)

// tickTimeLayout matches "20170102 00:00:00.123"; the fractional part is
// accepted by time.Parse without being spelled in the layout.
const tickTimeLayout = "20060102 15:04:05"

// ParseArchive unpacks the first file of a zip archive and parses its tick rows.
func ParseArchive(data []byte) ([]model.Tick, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	if len(zr.File) == 0 {
		return nil, errors.New("zip archive is empty")
	}
	f, err := zr.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", zr.File[0].Name, err)
	}
	defer f.Close()
	ticks, err := ParseTicks(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", zr.File[0].Name, err)
	}
	return ticks, nil
}

// ParseTicks reads headerless rows: symbol, timestamp, bid, ask. Rows whose
// quotes are not finite and positive are skipped.
func ParseTicks(r io.Reader) ([]model.Tick, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.ReuseRecord = true

	var ticks []model.Tick
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ts, err := time.ParseInLocation(tickTimeLayout, strings.TrimSpace(rec[1]), time.UTC)
		if err != nil {
			return nil, fmt.Errorf("line %d: timestamp: %w", line, err)
		}
		bid, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bid: %w", line, err)
		}
		ask, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: ask: %w", line, err)
		}
		tk := model.Tick{Timestamp: ts, Bid: bid, Ask: ask}
		if !tk.Valid() {
			continue
		}
		ticks = append(ticks, tk)
	}
	return ticks, nil
}
