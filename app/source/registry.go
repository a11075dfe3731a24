package source

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
)

var (
	ErrUnknownKind   = errors.New("unknown source kind")
	ErrUnknownSource = errors.New("no adapter configured for source")
)

// Registry resolves source names to adapters. Adapters that failed to build
// keep their error so a run can report it against that source.
type Registry struct {
	adapters map[string]Adapter
	errors   map[string]error
	mu       sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		errors:   make(map[string]error),
	}
}

// BuildRegistry constructs an adapter for every config in the cache.
func BuildRegistry(configCache *ConfigCache, httpClient *http.Client, extractor *ContentExtractor, userAgent string) *Registry {
	registry := NewRegistry()

	for _, config := range configCache.GetConfigs() {
		adapter, err := Build(config, httpClient, extractor, userAgent)
		if err != nil {
			registry.mu.Lock()
			registry.errors[config.Name] = err
			registry.mu.Unlock()
			continue
		}
		registry.Register(adapter)
	}

	return registry
}

func Build(config *Config, httpClient *http.Client, extractor *ContentExtractor, userAgent string) (Adapter, error) {
	switch config.Kind {
	case KindRSS, KindReddit:
		return NewFeedAdapter(config, httpClient, extractor, userAgent), nil
	case KindAdzuna:
		adapter, err := NewAdzunaAdapter(config, httpClient, userAgent)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	case KindJooble:
		adapter, err := NewJoobleAdapter(config, httpClient, userAgent)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	case KindJSON:
		adapter, err := NewJSONAdapter(config, httpClient, userAgent)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, config.Kind)
	}
}

func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.adapters[adapter.Name()] = adapter
	delete(r.errors, adapter.Name())
}

func (r *Registry) Adapter(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if adapter, ok := r.adapters[name]; ok {
		return adapter, nil
	}
	if err, ok := r.errors[name]; ok {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
