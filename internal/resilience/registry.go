package resilience

import (
	"sort"
	"sync"

	"github.com/mobilierdefrance/sav-ai-platform/pkg/logging"
)

// Registry hands out named breakers, creating each one on first use so every
// downstream dependency gets its own circuit.
type Registry struct {
	logger   *logging.Logger
	defaults Config

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry creates a registry whose breakers inherit the given defaults.
func NewRegistry(defaults Config, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{
		logger:   logger,
		defaults: defaults,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for name, creating it with the registry defaults
// when it does not exist yet.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := NewBreaker(name, r.defaults, r.logger)
	r.breakers[name] = b
	return b
}

// Stats snapshots every registered breaker, sorted by name.
func (r *Registry) Stats() []Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make([]Stats, 0, len(r.breakers))
	for _, b := range r.breakers {
		stats = append(stats, b.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// ResetAll force-closes every registered breaker.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.breakers {
		b.Reset()
	}
	r.logger.Info("all circuits reset", "count", len(r.breakers))
}
