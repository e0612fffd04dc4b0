package rollout

import (
	"fmt"
	"math/rand"
	"strings"

	"fxgym/internal/env"
)

// Policy picks the next action from the current observation.
type Policy interface {
	Act(obs env.Observation) env.Action
}

type PolicyFunc func(obs env.Observation) env.Action

func (f PolicyFunc) Act(obs env.Observation) env.Action { return f(obs) }

// Constant always plays a.
func Constant(a env.Action) Policy {
	return PolicyFunc(func(env.Observation) env.Action { return a })
}

type randomPolicy struct {
	space env.Discrete
	rng   *rand.Rand
}

// Random samples uniformly from the three-way action space.
func Random(seed int64) Policy {
	return &randomPolicy{space: env.Discrete{N: 3}, rng: rand.New(rand.NewSource(seed))}
}

func (p *randomPolicy) Act(env.Observation) env.Action { return p.space.Sample(p.rng) }

// Momentum goes long after a rising close, short after a falling one and
// stays flat otherwise. It needs a window of at least two closes.
func Momentum() Policy {
	return PolicyFunc(func(obs env.Observation) env.Action {
		w := obs.Window
		if len(w) < 2 {
			return env.ActionFlat
		}
		switch last, prev := w[len(w)-1], w[len(w)-2]; {
		case last > prev:
			return env.ActionLong
		case last < prev:
			return env.ActionShort
		}
		return env.ActionFlat
	})
}

// PolicyNames lists the names ParsePolicy accepts.
var PolicyNames = []string{"random", "long", "short", "flat", "momentum"}

func ParsePolicy(name string, seed int64) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "random":
		return Random(seed), nil
	case "long":
		return Constant(env.ActionLong), nil
	case "short":
		return Constant(env.ActionShort), nil
	case "flat":
		return Constant(env.ActionFlat), nil
	case "momentum":
		return Momentum(), nil
	}
	return nil, fmt.Errorf("unknown policy %q, want one of %s", name, strings.Join(PolicyNames, "|"))
}
