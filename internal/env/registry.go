package env

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"fxgym/internal/model"
)

const (
	FXTradingV0 = "fxtrading-v0"
	TradingV0   = "trading-v0"
)

var ErrUnknownEnv = errors.New("unknown environment")

// Factory builds a fresh environment instance over series.
type Factory func(series *model.BarSeries, cfg Config) (Env, error)

// Registry maps symbolic ids to factories. Every Make returns a new
// instance so no episode state is shared.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// NewDefaultRegistry registers the built-in environments.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.mustRegister(FXTradingV0, func(series *model.BarSeries, cfg Config) (Env, error) {
		return NewSimulator(series, cfg)
	})
	// Windowed variant with fixed-length random episodes.
	r.mustRegister(TradingV0, func(series *model.BarSeries, cfg Config) (Env, error) {
		cfg.Window = 5
		cfg.EpisodeLength = 100
		return NewSimulator(series, cfg)
	})
	return r
}

func normalizeID(id string) string { return strings.ToLower(strings.TrimSpace(id)) }

func (r *Registry) Register(id string, f Factory) error {
	key := normalizeID(id)
	if key == "" {
		return errors.New("environment id must not be empty")
	}
	if f == nil {
		return fmt.Errorf("environment %q: nil factory", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[key]; ok {
		return fmt.Errorf("environment %q already registered", key)
	}
	r.factories[key] = f
	return nil
}

func (r *Registry) mustRegister(id string, f Factory) {
	if err := r.Register(id, f); err != nil {
		panic(err)
	}
}

func (r *Registry) Make(id string, series *model.BarSeries, cfg Config) (Env, error) {
	r.mu.RLock()
	f, ok := r.factories[normalizeID(id)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownEnv, id, strings.Join(r.IDs(), ", "))
	}
	e, err := f(series, cfg)
	if err != nil {
		return nil, fmt.Errorf("make %s: %w", id, err)
	}
	return e, nil
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
