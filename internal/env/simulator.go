package env

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"

	"fxgym/internal/model"
)

// Config tunes one simulator. EpisodeLength 0 plays the whole series.
type Config struct {
	Spread        float64 `json:"spread"`
	Window        int     `json:"window"`
	EpisodeLength int     `json:"episode_length"`
	Seed          int64   `json:"seed"`
}

// EpisodeState is the mutable part of a simulator. [Start, End) is the
// span of the current episode inside the series.
type EpisodeState struct {
	EpisodeID  string
	Start      int
	End        int
	Cursor     int
	Position   Action
	Cumulative float64
	Steps      int
	Terminated bool
}

// Simulator walks a BarSeries one bar per step. It is not safe for
// concurrent use; run one simulator per rollout.
type Simulator struct {
	series *model.BarSeries
	cfg    Config
	space  Discrete
	rng    *rand.Rand
	state  EpisodeState
}

var _ Env = (*Simulator)(nil)

func minBars(window int) int {
	return max(2, window+1)
}

func NewSimulator(series *model.BarSeries, cfg Config) (*Simulator, error) {
	if series == nil {
		return nil, errors.New("nil bar series")
	}
	if cfg.Spread < 0 || math.IsNaN(cfg.Spread) {
		return nil, fmt.Errorf("spread must be >= 0, got %v", cfg.Spread)
	}
	if cfg.Window < 0 {
		return nil, fmt.Errorf("window must be >= 0, got %d", cfg.Window)
	}
	need := minBars(cfg.Window)
	if series.Len() < need {
		return nil, fmt.Errorf("%w: series has %d bars, window %d needs %d",
			ErrInsufficientHistory, series.Len(), cfg.Window, need)
	}
	if cfg.EpisodeLength != 0 && (cfg.EpisodeLength < need || cfg.EpisodeLength > series.Len()) {
		return nil, fmt.Errorf("%w: episode length %d must be in [%d, %d]",
			ErrInsufficientHistory, cfg.EpisodeLength, need, series.Len())
	}
	s := &Simulator{
		series: series,
		cfg:    cfg,
		space:  Discrete{N: 3},
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
	// No episode is active until the first Reset.
	s.state.Terminated = true
	return s, nil
}

func (s *Simulator) ActionSpace() Discrete { return s.space }

func (s *Simulator) Series() *model.BarSeries { return s.series }

func (s *Simulator) Config() Config { return s.cfg }

// State returns a copy of the episode state.
func (s *Simulator) State() EpisodeState { return s.state }

// Reset discards the previous episode and starts a new one flat. With a
// fixed episode length the start is drawn from the simulator's own source.
func (s *Simulator) Reset() Observation {
	start, end := 0, s.series.Len()
	if n := s.cfg.EpisodeLength; n > 0 {
		start = s.rng.Intn(s.series.Len() - n + 1)
		end = start + n
	}
	s.state = EpisodeState{
		EpisodeID: uuid.NewString(),
		Start:     start,
		End:       end,
		Cursor:    start + max(s.cfg.Window-1, 0),
		Position:  ActionFlat,
	}
	return s.observation(s.state.Cursor)
}

// Step applies a for the next bar. The reward is the position-scaled log
// return of the bar minus spread times the position change.
func (s *Simulator) Step(a Action) (StepResult, error) {
	if !s.space.Contains(a) {
		return StepResult{}, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidAction, int(a), s.space.N)
	}
	if s.state.Terminated {
		return StepResult{}, ErrEpisodeTerminated
	}

	st := &s.state
	st.Cursor++
	stepReturn := math.Log(s.series.Close(st.Cursor) / s.series.Close(st.Cursor-1))
	commission := s.cfg.Spread * math.Abs(a.Value()-st.Position.Value())
	reward := a.Value()*stepReturn - commission

	st.Position = a
	st.Cumulative += reward
	st.Steps++
	st.Terminated = st.Cursor >= st.End-1

	return StepResult{
		Observation: s.observation(st.Cursor),
		Reward:      reward,
		Terminated:  st.Terminated,
		Info: Info{
			StepReturn:       stepReturn,
			Commission:       commission,
			Position:         a,
			Cursor:           st.Cursor,
			Timestamp:        s.series.Timestamp(st.Cursor),
			CumulativeReward: st.Cumulative,
			EpisodeID:        st.EpisodeID,
		},
	}, nil
}

// ObservationAt builds the observation at series index i of the current
// episode.
func (s *Simulator) ObservationAt(i int) (Observation, error) {
	if i < s.state.Start || i >= s.state.End || i >= s.series.Len() {
		return Observation{}, fmt.Errorf("index %d outside episode [%d, %d)", i, s.state.Start, s.state.End)
	}
	if i < s.state.Start+s.cfg.Window-1 {
		return Observation{}, fmt.Errorf("%w: index %d, window %d starts at %d",
			ErrInsufficientHistory, i, s.cfg.Window, s.state.Start)
	}
	return s.observation(i), nil
}

func (s *Simulator) observation(i int) Observation {
	bar := s.series.At(i)
	obs := Observation{
		Timestamp: bar.Time(),
		Close:     bar.Close,
		Volume:    bar.Volume,
	}
	if w := s.cfg.Window; w > 0 {
		obs.Window = make([]float64, 0, w)
		for j := i - w + 1; j <= i; j++ {
			obs.Window = append(obs.Window, s.series.Close(j))
		}
	}
	return obs
}
