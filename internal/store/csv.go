package store

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"fxgym/internal/model"
)

// CSVCodec stores bars as CSV (header: t,o,h,l,c,v).
type CSVCodec struct{}

func (CSVCodec) Extension() string { return "csv" }

func (CSVCodec) Save(bars []model.Bar, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)

	if err := w.Write(model.BarColumns); err != nil {
		return err
	}
	for _, b := range bars {
		if err := w.Write([]string{
			strconv.FormatInt(b.Timestamp, 10),
			floatStr(b.Open),
			floatStr(b.High),
			floatStr(b.Low),
			floatStr(b.Close),
			strconv.FormatInt(b.Volume, 10),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

// Load maps columns by header name so column order does not matter.
func (CSVCodec) Load(path string) ([]model.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	header, err := r.Read()
	if err == io.EOF {
		return nil, schemaErr("%s: empty file", path)
	}
	if err != nil {
		return nil, schemaErr("%s: header: %v", path, err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	cols := make([]int, len(model.BarColumns))
	for i, name := range model.BarColumns {
		j, ok := idx[name]
		if !ok {
			return nil, schemaErr("%s: missing column %q", path, name)
		}
		cols[i] = j
	}

	var bars []model.Bar
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, schemaErr("%s line %d: %v", path, line, err)
		}
		var b model.Bar
		var perr error
		parseInt := func(col int, dst *int64) {
			if perr == nil {
				*dst, perr = strconv.ParseInt(rec[cols[col]], 10, 64)
			}
		}
		parseFloat := func(col int, dst *float64) {
			if perr == nil {
				*dst, perr = strconv.ParseFloat(rec[cols[col]], 64)
			}
		}
		parseInt(0, &b.Timestamp)
		parseFloat(1, &b.Open)
		parseFloat(2, &b.High)
		parseFloat(3, &b.Low)
		parseFloat(4, &b.Close)
		parseInt(5, &b.Volume)
		if perr != nil {
			return nil, schemaErr("%s line %d: %v", path, line, perr)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
