package enhance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Crazyka51/AudioCleaner/internal/config"
	"github.com/Crazyka51/AudioCleaner/internal/media"
)

// Registry holds the available enhancer backends by name.
type Registry struct {
	mu        sync.RWMutex
	enhancers map[string]Enhancer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{enhancers: make(map[string]Enhancer)}
}

// Register adds (or replaces) a backend.
func (r *Registry) Register(e Enhancer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enhancers[strings.ToLower(e.Name())] = e
}

// Get returns a backend by name.
func (r *Registry) Get(name string) (Enhancer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.enhancers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	return e, nil
}

// Names lists registered backends alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.enhancers))
	for n := range r.enhancers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FindAvailable returns the preferred backend when its Check passes,
// otherwise the first other backend (in order) that passes.
func (r *Registry) FindAvailable(ctx context.Context, preferred string, order ...string) (Enhancer, error) {
	candidates := append([]string{preferred}, order...)
	var lastErr error
	for _, name := range candidates {
		e, err := r.Get(name)
		if err != nil {
			lastErr = err
			continue
		}
		if err := e.Check(ctx); err != nil {
			lastErr = err
			continue
		}
		return e, nil
	}
	return nil, fmt.Errorf("no usable enhancer: %w", lastErr)
}

// NewRegistryFromConfig registers every built-in backend configured from cfg.
func NewRegistryFromConfig(cfg config.EnhancerConfig, ff *media.FFmpeg, runner media.Runner) *Registry {
	r := NewRegistry()
	r.Register(NewDeepFilter(DeepFilterOptions{
		BinaryPath:       cfg.DeepFilterPath,
		ModelDirectory:   cfg.ModelDirectory,
		AttenuationLimit: cfg.AttenuationLimit,
	}, runner))
	r.Register(NewRNNoise(ff, cfg.RNNoiseModel))
	r.Register(NewAFFTDN(ff, cfg.NoiseFloor))
	return r
}
