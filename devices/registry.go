// Package devices builds [filesystem.Device] implementations from mount
// configuration. Each device type registers a factory under its type key.
package devices

import (
	"fmt"
	"sort"
	"sync"

	"github.com/brettbedarf/filenode/config"
	"github.com/brettbedarf/filenode/filesystem"
)

// Factory builds a device from the options of a mount configuration
type Factory func(opts Options) (filesystem.Device, error)

// Registry maps device type keys to their factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry; see [RegisterBuiltins]
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register ties a factory to a type key. The first registration of a key wins.
func (r *Registry) Register(deviceType string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[deviceType]; ok {
		return
	}
	r.factories[deviceType] = f
}

// Types returns the registered type keys in sorted order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// GetFactory returns the factory registered for deviceType
func (r *Registry) GetFactory(deviceType string) (Factory, error) {
	r.mu.RLock()
	f, ok := r.factories[deviceType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no device factory for %q", deviceType)
	}
	return f, nil
}

// Build creates the device described by a mount configuration
func (r *Registry) Build(mc config.MountConfig) (filesystem.Device, error) {
	f, err := r.GetFactory(mc.Type)
	if err != nil {
		return nil, err
	}
	dev, err := f(Options(mc.Options))
	if err != nil {
		return nil, fmt.Errorf("build %s device for %s: %w", mc.Type, mc.Prefix, err)
	}
	return dev, nil
}

// MountAll builds and mounts every configured device on reg
func (r *Registry) MountAll(reg *filesystem.Registry, mounts []config.MountConfig) error {
	for _, mc := range mounts {
		dev, err := r.Build(mc)
		if err != nil {
			return err
		}
		reg.Mount(mc.Prefix, dev)
	}
	return nil
}

// Options are the free form device options of a mount configuration
type Options map[string]any

// String returns the string option key or def
func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return def
}

// Bool returns the bool option key or def
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return def
}

// StringMap returns the string map option key, nil when absent
func (o Options) StringMap(key string) map[string]string {
	switch v := o[key].(type) {
	case map[string]string:
		return v
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, val := range v {
			out[k] = fmt.Sprint(val)
		}
		return out
	}
	return nil
}
