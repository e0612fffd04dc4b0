package env

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

var (
	ErrInvalidAction       = errors.New("invalid action")
	ErrEpisodeTerminated   = errors.New("episode already terminated, call Reset")
	ErrInsufficientHistory = errors.New("insufficient history")
)

// Action is a host-facing discrete action code in {0, 1, 2}.
type Action int

const (
	ActionShort Action = iota
	ActionFlat
	ActionLong
)

// Value maps the code to a signed position: short -1, flat 0, long +1.
func (a Action) Value() float64 { return float64(a) - 1 }

func (a Action) String() string {
	switch a {
	case ActionShort:
		return "short"
	case ActionFlat:
		return "flat"
	case ActionLong:
		return "long"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction accepts "short", "flat", "long" or the codes "0".."2".
func ParseAction(s string) (Action, error) {
	for a := ActionShort; a <= ActionLong; a++ {
		if s == a.String() || s == fmt.Sprint(int(a)) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// Discrete is a finite action space {0, ..., N-1}.
type Discrete struct {
	N int
}

func (d Discrete) Contains(a Action) bool { return a >= 0 && int(a) < d.N }

func (d Discrete) Sample(r *rand.Rand) Action { return Action(r.Intn(d.N)) }

// Observation is what the agent sees at a cursor. Window holds the last
// closes up to and including Close when a window is configured.
type Observation struct {
	Timestamp time.Time `json:"timestamp"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	Window    []float64 `json:"window,omitempty"`
}

// Info carries diagnostics for one step.
type Info struct {
	StepReturn       float64   `json:"step_return"`
	Commission       float64   `json:"commission"`
	Position         Action    `json:"position"`
	Cursor           int       `json:"cursor"`
	Timestamp        time.Time `json:"timestamp"`
	CumulativeReward float64   `json:"cumulative_reward"`
	EpisodeID        string    `json:"episode_id"`
}

type StepResult struct {
	Observation Observation
	Reward      float64
	Terminated  bool
	Info        Info
}

// Env is the contract a host RL loop drives.
type Env interface {
	ActionSpace() Discrete
	Reset() Observation
	Step(a Action) (StepResult, error)
}
