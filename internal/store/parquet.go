package store

import (
	"os"

	"github.com/parquet-go/parquet-go"

	"fxgym/internal/model"
)

// ParquetCodec stores bars as Parquet.
type ParquetCodec struct{}

func (ParquetCodec) Extension() string { return "parquet" }

func (ParquetCodec) Save(bars []model.Bar, path string) error {
	return parquet.WriteFile(path, bars)
}

// Load checks the file schema for every bar column before decoding rows.
func (ParquetCodec) Load(path string) ([]model.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, schemaErr("%s: %v", path, err)
	}
	for _, col := range model.BarColumns {
		if _, ok := pf.Schema().Lookup(col); !ok {
			return nil, schemaErr("%s: missing column %q", path, col)
		}
	}
	bars, err := parquet.Read[model.Bar](f, st.Size())
	if err != nil {
		return nil, schemaErr("%s: %v", path, err)
	}
	return bars, nil
}
