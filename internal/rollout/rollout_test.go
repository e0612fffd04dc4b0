package rollout

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxgym/internal/env"
	"fxgym/internal/model"
)

func newEnv(t *testing.T, cfg env.Config, closes ...float64) *env.Simulator {
	t.Helper()
	base := time.Date(2017, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{Timestamp: base.Add(time.Duration(i) * time.Hour).UnixMilli(), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	series, err := model.NewBarSeries("EURUSD", time.Hour, bars)
	require.NoError(t, err)
	sim, err := env.NewSimulator(series, cfg)
	require.NoError(t, err)
	return sim
}

func TestRun_LongEarnsTheMarket(t *testing.T) {
	closes := []float64{100, 101, 103, 102, 99, 100}
	sim := newEnv(t, env.Config{}, closes...)

	res, err := Run(context.Background(), sim, Constant(env.ActionLong), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Episodes)
	assert.Equal(t, 10, res.Steps)
	assert.Len(t, res.EquityCurve, res.Steps)
	assert.InDelta(t, 2*math.Log(100.0/100.0), res.TotalLogReturn, 1e-12)
	assert.Equal(t, 2, res.PositionChanges, "one flat->long per episode")
	// Per episode: up, up, down, down, up.
	assert.Equal(t, 6, res.Wins)
	assert.Equal(t, 4, res.Losses)
	assert.InDelta(t, 0.6, res.WinRate, 1e-12)

	// Peak 103, trough 99.
	assert.InDelta(t, (103.0-99.0)/103.0*100, res.MaxDDPct, 1e-9)
	assert.False(t, math.IsNaN(res.Sharpe))
	require.Len(t, res.Details, 2)
	assert.NotEqual(t, res.Details[0].ID, res.Details[1].ID)
}

func TestRun_FlatNeverMoves(t *testing.T) {
	sim := newEnv(t, env.Config{Spread: 0.01}, 1, 2, 3, 2, 1)
	res, err := Run(context.Background(), sim, Constant(env.ActionFlat), 1)
	require.NoError(t, err)
	assert.Zero(t, res.TotalLogReturn)
	assert.Zero(t, res.Commission)
	assert.Zero(t, res.PositionChanges)
	assert.Zero(t, res.WinRate)
	assert.Zero(t, res.MaxDDPct)
	assert.Zero(t, res.Sharpe)
}

func TestRun_CommissionCharged(t *testing.T) {
	sim := newEnv(t, env.Config{Spread: 0.001}, 1, 1, 1, 1, 1)
	flip := false
	alternate := PolicyFunc(func(env.Observation) env.Action {
		flip = !flip
		if flip {
			return env.ActionLong
		}
		return env.ActionShort
	})
	res, err := Run(context.Background(), sim, alternate, 1)
	require.NoError(t, err)
	// flat->long, long->short, short->long, long->short
	assert.InDelta(t, 0.001+0.002*3, res.Commission, 1e-12)
	assert.InDelta(t, -res.Commission, res.TotalLogReturn, 1e-12)
	assert.Equal(t, 4, res.PositionChanges)
}

func TestRun_Cancelled(t *testing.T) {
	sim := newEnv(t, env.Config{}, 1, 2, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, sim, Constant(env.ActionLong), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_BadArgs(t *testing.T) {
	sim := newEnv(t, env.Config{}, 1, 2, 3)
	_, err := Run(context.Background(), sim, nil, 1)
	assert.Error(t, err)
	_, err = Run(context.Background(), sim, Constant(env.ActionLong), 0)
	assert.Error(t, err)
}

func TestMomentum(t *testing.T) {
	p := Momentum()
	assert.Equal(t, env.ActionLong, p.Act(env.Observation{Window: []float64{1, 2}}))
	assert.Equal(t, env.ActionShort, p.Act(env.Observation{Window: []float64{3, 2, 1}}))
	assert.Equal(t, env.ActionFlat, p.Act(env.Observation{Window: []float64{1, 1}}))
	assert.Equal(t, env.ActionFlat, p.Act(env.Observation{Close: 1}))

	sim := newEnv(t, env.Config{Window: 2}, 1, 2, 3, 4, 5)
	res, err := Run(context.Background(), sim, p, 1)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(5.0/2.0), res.TotalLogReturn, 1e-12, "rides the trend once the window fills")
}

func TestRandom_DeterministicPerSeed(t *testing.T) {
	a, b := Random(3), Random(3)
	for i := 0; i < 50; i++ {
		x := a.Act(env.Observation{})
		assert.Equal(t, x, b.Act(env.Observation{}))
		assert.True(t, env.Discrete{N: 3}.Contains(x))
	}
}

func TestParsePolicy(t *testing.T) {
	for _, name := range PolicyNames {
		p, err := ParsePolicy(name, 1)
		require.NoError(t, err, name)
		assert.NotNil(t, p)
	}
	_, err := ParsePolicy("martingale", 1)
	assert.Error(t, err)
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.json")
	in := &Result{Episodes: 1, Steps: 3, TotalLogReturn: 0.01, EquityCurve: []float64{1, 1.01}}
	require.NoError(t, WriteReport(path, in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out Result
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.Steps, out.Steps)
	assert.Equal(t, in.EquityCurve, out.EquityCurve)
}
