package threshold

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// Source provides the current threshold configuration.
type Source interface {
	Snapshot() Config
}

// SnapshotOf returns src's current configuration, or Default when src is nil.
func SnapshotOf(src Source) Config {
	if src == nil {
		return Default()
	}
	return src.Snapshot()
}

// Store publishes threshold configurations to the frame loop.
type Store struct {
	current atomic.Pointer[Config]

	mu       sync.Mutex // serializes writers and guards onChange
	onChange []func(Config)
}

// NewStore creates a store holding initial. An invalid initial value is
// replaced by Default.
func NewStore(initial Config) *Store {
	s := &Store{}
	if initial.Validate() != nil {
		initial = Default()
	}
	s.current.Store(&initial)
	return s
}

// Snapshot returns the most recently published configuration.
// A zero-value Store yields Default.
func (s *Store) Snapshot() Config {
	if c := s.current.Load(); c != nil {
		return *c
	}
	return Default()
}

// Set validates and publishes cfg.
func (s *Store) Set(cfg Config) error {
	_, err := s.Modify(func(c *Config) error {
		*c = cfg
		return nil
	})
	return err
}

// Modify applies fn to a copy of the current configuration and publishes
// the result if fn succeeds and it validates. Concurrent calls run one at a
// time, so no change is lost. It returns the configuration in effect
// afterwards. fn must not call back into the store.
func (s *Store) Modify(fn func(*Config) error) (Config, error) {
	s.mu.Lock()
	cfg := s.Snapshot()
	if err := fn(&cfg); err != nil {
		s.mu.Unlock()
		return s.Snapshot(), err
	}
	if err := cfg.Validate(); err != nil {
		s.mu.Unlock()
		return s.Snapshot(), err
	}
	s.current.Store(&cfg)
	callbacks := append([]func(Config){}, s.onChange...)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}

// Reset publishes the full-range configuration.
func (s *Store) Reset() {
	_ = s.Set(Default())
}

// OnChange registers fn to be called after every successful publish.
func (s *Store) OnChange(fn func(Config)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// Update applies a partial change keyed h_min, h_max, s_min, s_max,
// v_min, v_max. Either all keys apply or none do.
func (s *Store) Update(updates map[string]any) (Config, error) {
	return s.Modify(func(cfg *Config) error {
		for key, value := range updates {
			n, ok := toInt(value)
			if !ok {
				return fmt.Errorf("threshold: %s: not an integer: %v", key, value)
			}
			switch key {
			case "h_min":
				cfg.H.Min = n
			case "h_max":
				cfg.H.Max = n
			case "s_min":
				cfg.S.Min = n
			case "s_max":
				cfg.S.Max = n
			case "v_min":
				cfg.V.Min = n
			case "v_max":
				cfg.V.Max = n
			default:
				return fmt.Errorf("%w: %s", ErrUnknownKey, key)
			}
		}
		return nil
	})
}

// toInt converts JSON-decoded numbers to int.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
