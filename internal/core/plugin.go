package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"latticecore/pkg/filterapi"
)

// FilterFactory returns a fresh filter instance.
type FilterFactory func() filterapi.Filter

// Plugin contributes a set of filters.
type Plugin interface {
	Name() string
	Version() string
	Register(registry *PluginRegistry) error
}

// PluginRegistry accumulates plugin contributions during registration.
type PluginRegistry struct {
	factories []FilterFactory
}

// RegisterFilter adds a filter factory contributed by the plugin.
func (r *PluginRegistry) RegisterFilter(factory FilterFactory) {
	if factory == nil {
		return
	}
	r.factories = append(r.factories, factory)
}

// PluginMetadata describes an installed plugin.
type PluginMetadata struct {
	Name    string
	Version string
	Filters []string
}

// Registry holds installed filters, addressable by name or UUID. It is safe
// for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]FilterFactory
	byUUID  map[uuid.UUID]string
	meta    map[string]filterapi.Metadata
	plugins map[string]PluginMetadata
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]FilterFactory),
		byUUID:  make(map[uuid.UUID]string),
		meta:    make(map[string]filterapi.Metadata),
		plugins: make(map[string]PluginMetadata),
	}
}

// Install registers every filter of plugin. Nothing is installed when any
// filter clashes with an installed name or UUID.
func (r *Registry) Install(plugin Plugin) (PluginMetadata, error) {
	if plugin == nil {
		return PluginMetadata{}, fmt.Errorf("plugin cannot be nil")
	}
	contrib := &PluginRegistry{}
	if err := plugin.Register(contrib); err != nil {
		return PluginMetadata{}, fmt.Errorf("register plugin %s: %w", plugin.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[plugin.Name()]; exists {
		return PluginMetadata{}, fmt.Errorf("plugin %s already installed", plugin.Name())
	}
	metas := make([]filterapi.Metadata, len(contrib.factories))
	seenNames := make(map[string]struct{})
	seenUUIDs := make(map[uuid.UUID]struct{})
	for i, factory := range contrib.factories {
		m := factory().Metadata()
		if m.Name == "" {
			return PluginMetadata{}, fmt.Errorf("plugin %s: filter %d has no name", plugin.Name(), i)
		}
		if _, dup := r.byName[m.Name]; dup {
			return PluginMetadata{}, fmt.Errorf("filter %s already registered", m.Name)
		}
		if _, dup := seenNames[m.Name]; dup {
			return PluginMetadata{}, fmt.Errorf("filter %s registered twice by %s", m.Name, plugin.Name())
		}
		if m.UUID != uuid.Nil {
			if owner, dup := r.byUUID[m.UUID]; dup {
				return PluginMetadata{}, fmt.Errorf("filter %s reuses uuid of %s", m.Name, owner)
			}
			if _, dup := seenUUIDs[m.UUID]; dup {
				return PluginMetadata{}, fmt.Errorf("filter %s reuses uuid %s", m.Name, m.UUID)
			}
			seenUUIDs[m.UUID] = struct{}{}
		}
		seenNames[m.Name] = struct{}{}
		metas[i] = m
	}

	meta := PluginMetadata{Name: plugin.Name(), Version: plugin.Version()}
	for i, m := range metas {
		r.byName[m.Name] = contrib.factories[i]
		r.meta[m.Name] = m
		if m.UUID != uuid.Nil {
			r.byUUID[m.UUID] = m.Name
		}
		meta.Filters = append(meta.Filters, m.Name)
	}
	sort.Strings(meta.Filters)
	r.plugins[meta.Name] = meta
	return clonePluginMetadata(meta), nil
}

// New returns a fresh instance of the filter called name.
func (r *Registry) New(name string) (filterapi.Filter, error) {
	r.mu.RLock()
	factory, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFilterNotFound, name)
	}
	return factory(), nil
}

// NewByUUID returns a fresh instance of the filter with id.
func (r *Registry) NewByUUID(id uuid.UUID) (filterapi.Filter, error) {
	r.mu.RLock()
	name, ok := r.byUUID[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFilterNotFound, id)
	}
	return r.New(name)
}

// Filters lists the metadata of every installed filter sorted by name.
func (r *Registry) Filters() []filterapi.Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]filterapi.Metadata, 0, len(r.meta))
	for _, m := range r.meta {
		m.Tags = append([]string(nil), m.Tags...)
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Plugins lists installed plugins sorted by name.
func (r *Registry) Plugins() []PluginMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PluginMetadata, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, clonePluginMetadata(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func clonePluginMetadata(m PluginMetadata) PluginMetadata {
	m.Filters = append([]string(nil), m.Filters...)
	return m
}
