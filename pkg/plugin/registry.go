package plugin

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Priority constants for kind registration.
// Higher priority values override lower priority kinds with the same key.
const (
	// PriorityDefault is the default priority for built-in converters.
	PriorityDefault = 0

	// PriorityOverride is used by private implementations to replace a
	// built-in converter of the same kind.
	PriorityOverride = 100
)

// DefaultOrder is the listing order given to kinds that do not set one.
const DefaultOrder = 50

var (
	// ErrUnknownKind is returned by Create for kinds nobody registered.
	ErrUnknownKind = errors.New("unknown plugin kind")

	// ErrInvalidPlugin is returned by Create when a factory hands back
	// nil or a plugin of another kind.
	ErrInvalidPlugin = errors.New("invalid plugin")
)

// PluginInfo contains metadata about a registered plugin kind.
type PluginInfo struct {
	// Kind is the unique key for the plugin kind (e.g. "modifier").
	Kind string

	// Description is a human-readable description of the kind.
	Description string

	// DefaultName is the name a new plugin of this kind asks for.
	// Controllers make it unique by appending a number. Defaults to Kind.
	DefaultName string

	// Priority determines which registration wins when two register the
	// same kind. Higher priority wins.
	Priority int

	// Order controls listing order. Lower values are listed first.
	Order int

	// Factory creates new instances of the plugin.
	Factory Factory
}

// Registry is the table of plugin kinds a controller can create.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	kinds  map[string]PluginInfo
	order  []string
	logger *zap.Logger
}

// NewRegistry creates a new, empty kind registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds:  make(map[string]PluginInfo),
		order:  make([]string, 0),
		logger: zap.NewNop(),
	}
}

// SetLogger replaces the registry's logger.
func (r *Registry) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register adds a plugin kind to the registry.
// If the kind already exists, the registration with the higher priority
// wins. If priorities are equal, the later registration wins.
func (r *Registry) Register(info PluginInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info.Kind == "" {
		return fmt.Errorf("plugin kind cannot be empty")
	}

	if info.Factory == nil {
		return fmt.Errorf("plugin kind %s: factory cannot be nil", info.Kind)
	}

	if info.Order == 0 {
		info.Order = DefaultOrder
	}
	if info.DefaultName == "" {
		info.DefaultName = info.Kind
	}

	existing, exists := r.kinds[info.Kind]
	if exists {
		if info.Priority < existing.Priority {
			r.logger.Debug("Plugin kind registration skipped",
				zap.String("kind", info.Kind),
				zap.Int("priority", info.Priority),
				zap.Int("existing_priority", existing.Priority))
			return nil
		}
		r.logger.Info("Plugin kind overridden",
			zap.String("kind", info.Kind),
			zap.Int("old_priority", existing.Priority),
			zap.Int("new_priority", info.Priority))
	}

	r.kinds[info.Kind] = info
	if !exists {
		r.order = append(r.order, info.Kind)
	}

	r.logger.Debug("Plugin kind registered",
		zap.String("kind", info.Kind),
		zap.Int("priority", info.Priority),
		zap.String("description", info.Description))

	return nil
}

// Get returns the info for a kind, or nil if the kind is unknown.
func (r *Registry) Get(kind string) *PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.kinds[kind]
	if !ok {
		return nil
	}
	return &info
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.kinds[kind]
	return ok
}

// List returns all registered kinds sorted by Order, then by Kind.
func (r *Registry) List() []PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]PluginInfo, 0, len(r.kinds))
	for _, kind := range r.order {
		result = append(result, r.kinds[kind])
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].Kind < result[j].Kind
	})

	return result
}

// Create instantiates a plugin of the given kind. It returns an error for
// unknown kinds, failing factories, and factories that return nil or a
// plugin reporting a different kind.
func (r *Registry) Create(kind string, ctx *Context) (Plugin, *PluginInfo, error) {
	info := r.Get(kind)
	if info == nil {
		return nil, nil, fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}
	if ctx == nil {
		ctx = NewContext(nil)
	}

	p, err := info.Factory(ctx)
	if err != nil {
		return nil, info, fmt.Errorf("failed to create plugin %s: %w", kind, err)
	}
	if isNil(p) {
		return nil, info, fmt.Errorf("%w: plugin kind %s: factory returned nil", ErrInvalidPlugin, kind)
	}
	if p.Kind() != kind {
		return nil, info, fmt.Errorf("%w: plugin kind %s: factory built a %q plugin", ErrInvalidPlugin, kind, p.Kind())
	}
	return p, info, nil
}

// isNil also catches a nil pointer wrapped in a non-nil interface.
func isNil(p Plugin) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Kinds returns the keys of all registered kinds in registration order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, len(r.order))
	copy(result, r.order)
	return result
}

// Clone returns an independent copy of the registry.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clone := &Registry{
		kinds:  make(map[string]PluginInfo, len(r.kinds)),
		order:  make([]string, len(r.order)),
		logger: r.logger,
	}
	for k, v := range r.kinds {
		clone.kinds[k] = v
	}
	copy(clone.order, r.order)
	return clone
}

// Unregister removes a kind. Plugins of that kind become invalid for any
// controller validating against this registry.
func (r *Registry) Unregister(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.kinds[kind]; !ok {
		return
	}
	delete(r.kinds, kind)
	for i, k := range r.order {
		if k == kind {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Clear removes all registered kinds. Useful for testing.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.kinds = make(map[string]PluginInfo)
	r.order = make([]string, 0)
}

// Global registry instance
var globalRegistry = NewRegistry()

// Default returns the global registry that init() registrations fill.
func Default() *Registry {
	return globalRegistry
}

// Register adds a plugin kind to the global registry.
// This is typically called from init() functions in plugin packages.
func Register(info PluginInfo) error {
	return globalRegistry.Register(info)
}

// Get returns kind info from the global registry.
func Get(kind string) *PluginInfo {
	return globalRegistry.Get(kind)
}

// List returns all kinds from the global registry.
func List() []PluginInfo {
	return globalRegistry.List()
}

// Kinds returns all kind keys from the global registry.
func Kinds() []string {
	return globalRegistry.Kinds()
}

// ClearGlobal clears the global registry. Useful for testing.
func ClearGlobal() {
	globalRegistry.Clear()
}
