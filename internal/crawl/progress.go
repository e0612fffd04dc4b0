package crawl

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// ProgressUpdate is sent when a month was built and cached. Key is the
// scoped progress key from ProgressKey.
type ProgressUpdate struct {
	Key    string
	Period string
}

// ProgressKey names one cache flavour of a symbol, e.g. "EURUSD@15m/parquet".
// An empty scope keys by symbol alone.
func ProgressKey(symbol, scope string) string {
	if scope == "" {
		return symbol
	}
	return symbol + "@" + scope
}

// progress maps a progress key to the months ("2006-01") already prepared.
type progress map[string][]string

func (m progress) has(key, period string) bool {
	list := m[key]
	i := sort.SearchStrings(list, period)
	return i < len(list) && list[i] == period
}

func (m progress) add(key, period string) {
	if m.has(key, period) {
		return
	}
	list := append(m[key], period)
	sort.Strings(list)
	m[key] = list
}

func loadProgress(path string) progress {
	if path == "" {
		return progress{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return progress{}
	}
	var m progress
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return progress{}
	}
	for s := range m {
		sort.Strings(m[s])
	}
	return m
}

// RunProgressWriter receives updates and persists them (run as goroutine).
// An empty path drains updates without writing.
func RunProgressWriter(path string, updates <-chan ProgressUpdate) {
	m := loadProgress(path)
	for u := range updates {
		if path == "" {
			continue
		}
		m.add(u.Key, u.Period)
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			slog.Warn("progress marshal error", "error", err)
			continue
		}
		if err := writeFileAtomic(path, data); err != nil {
			slog.Warn("progress write error", "error", err)
		}
	}
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
