package rollout

import (
	"context"
	"errors"
	"fmt"
	"math"

	"fxgym/internal/env"
)

// EpisodeSummary is one finished episode.
type EpisodeSummary struct {
	ID              string  `json:"id"`
	Steps           int     `json:"steps"`
	Reward          float64 `json:"reward"`
	Commission      float64 `json:"commission"`
	PositionChanges int     `json:"position_changes"`
}

// Result summarizes a rollout over one or more episodes. Equity starts at
// 1 and compounds exp(reward) per step.
type Result struct {
	Episodes        int              `json:"episodes"`
	Steps           int              `json:"steps"`
	TotalLogReturn  float64          `json:"total_log_return"`
	Commission      float64          `json:"commission"`
	PositionChanges int              `json:"position_changes"`
	Wins            int              `json:"wins"`
	Losses          int              `json:"losses"`
	WinRate         float64          `json:"win_rate"`
	MaxDDPct        float64          `json:"max_dd_pct"`
	Sharpe          float64          `json:"sharpe"`
	EquityCurve     []float64        `json:"equity_curve"`
	Details         []EpisodeSummary `json:"details"`
}

// Run plays episodes to termination with p and aggregates the rewards.
func Run(ctx context.Context, e env.Env, p Policy, episodes int) (*Result, error) {
	if e == nil || p == nil {
		return nil, errors.New("rollout: env and policy are required")
	}
	if episodes <= 0 {
		return nil, fmt.Errorf("rollout: episodes must be positive, got %d", episodes)
	}
	res := &Result{}
	equity := 1.0
	for ep := 0; ep < episodes; ep++ {
		obs := e.Reset()
		sum := EpisodeSummary{}
		prev := env.ActionFlat
		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			a := p.Act(obs)
			step, err := e.Step(a)
			if err != nil {
				return nil, fmt.Errorf("episode %d step %d: %w", ep, sum.Steps, err)
			}
			sum.ID = step.Info.EpisodeID
			sum.Steps++
			sum.Reward += step.Reward
			sum.Commission += step.Info.Commission
			if a != prev {
				sum.PositionChanges++
			}
			prev = a
			switch {
			case step.Reward > 0:
				res.Wins++
			case step.Reward < 0:
				res.Losses++
			}
			equity *= math.Exp(step.Reward)
			res.EquityCurve = append(res.EquityCurve, equity)

			obs = step.Observation
			if step.Terminated {
				break
			}
		}
		res.Episodes++
		res.Steps += sum.Steps
		res.TotalLogReturn += sum.Reward
		res.Commission += sum.Commission
		res.PositionChanges += sum.PositionChanges
		res.Details = append(res.Details, sum)
	}
	if n := res.Wins + res.Losses; n > 0 {
		res.WinRate = float64(res.Wins) / float64(n)
	}
	res.MaxDDPct = maxDrawdownPct(append([]float64{1}, res.EquityCurve...))
	res.Sharpe = sharpe(res.EquityCurve)
	return res, nil
}
