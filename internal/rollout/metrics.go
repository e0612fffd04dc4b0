package rollout

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
)

func maxDrawdownPct(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	peak := series[0]
	mdd := 0.0
	for _, v := range series {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - v) / peak
		if dd > mdd {
			mdd = dd
		}
	}
	return mdd * 100
}

// sharpe is the unannualised Sharpe ratio of simple returns along equity,
// scaled by sqrt(n).
func sharpe(equity []float64) float64 {
	if len(equity) < 2 {
		return 0
	}
	rets := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		rets = append(rets, equity[i]/equity[i-1]-1)
	}
	if len(rets) == 0 {
		return 0
	}
	m := 0.0
	for _, r := range rets {
		m += r
	}
	m /= float64(len(rets))
	v := 0.0
	for _, r := range rets {
		d := r - m
		v += d * d
	}
	v /= float64(len(rets))
	sd := math.Sqrt(v)
	if sd == 0 {
		return 0
	}
	return m / sd * math.Sqrt(float64(len(rets)))
}

// WriteReport writes r as indented JSON, creating parent directories.
func WriteReport(path string, r *Result) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o600)
}
