package store

import (
	"encoding/json"
	"os"

	"fxgym/internal/model"
)

// JSONCodec stores bars as an indented JSON array.
type JSONCodec struct{}

func (JSONCodec) Extension() string { return "json" }

func (JSONCodec) Save(bars []model.Bar, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bars); err != nil {
		return err
	}
	return f.Sync()
}

// jsonBar uses pointers so absent columns are detected.
type jsonBar struct {
	T *int64   `json:"t"`
	O *float64 `json:"o"`
	H *float64 `json:"h"`
	L *float64 `json:"l"`
	C *float64 `json:"c"`
	V *int64   `json:"v"`
}

func (JSONCodec) Load(path string) ([]model.Bar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []jsonBar
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, schemaErr("%s: %v", path, err)
	}
	bars := make([]model.Bar, 0, len(raw))
	for i, r := range raw {
		if r.T == nil || r.O == nil || r.H == nil || r.L == nil || r.C == nil || r.V == nil {
			return nil, schemaErr("%s: row %d is missing a column", path, i)
		}
		bars = append(bars, model.Bar{Timestamp: *r.T, Open: *r.O, High: *r.H, Low: *r.L, Close: *r.C, Volume: *r.V})
	}
	return bars, nil
}
