package dna

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
)

// ChangeHandler is called when a DNA value changes
type ChangeHandler func(name string, oldValue, newValue float64)

// Subscription represents an active change subscription
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id    uint64
	name  string
	store *Store
}

func (s *subscription) Unsubscribe() {
	s.store.unsubscribe(s.name, s.id)
}

// Store holds the current DNA values for one asset. It is safe for
// concurrent use; unset values read as the asset default.
type Store struct {
	asset  *Asset
	logger *zap.Logger

	cache   map[string]float64
	cacheMu sync.RWMutex

	variables map[string]Variable

	subscribers map[string]map[uint64]ChangeHandler
	nextSubID   uint64
	subsMu      sync.RWMutex
}

// AnyName subscribes a handler to every DNA value.
const AnyName = "*"

// NewStore creates a store for asset
func NewStore(asset *Asset, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	variables := make(map[string]Variable, len(asset.Variables))
	for _, v := range asset.Variables {
		variables[v.Name] = v
	}

	return &Store{
		asset:       asset,
		logger:      logger.Named("dna"),
		cache:       make(map[string]float64),
		variables:   variables,
		subscribers: make(map[string]map[uint64]ChangeHandler),
	}
}

// Asset returns the layout this store holds values for.
func (s *Store) Asset() *Asset {
	return s.asset
}

// Get retrieves a DNA value
func (s *Store) Get(name string) (float64, error) {
	variable, ok := s.variables[name]
	if !ok {
		return 0, fmt.Errorf("DNA value %s not found", name)
	}

	s.cacheMu.RLock()
	value, ok := s.cache[name]
	s.cacheMu.RUnlock()

	if !ok {
		return variable.Default, nil
	}
	return value, nil
}

// Set sets a DNA value
func (s *Store) Set(name string, value float64) error {
	return s.SetMany(map[string]float64{name: value})
}

// SetMany sets several values at once. Nothing is written if any name is
// unknown or any value is not finite.
func (s *Store) SetMany(values map[string]float64) error {
	for name, value := range values {
		if _, ok := s.variables[name]; !ok {
			return fmt.Errorf("DNA value %s not found", name)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("DNA value %s must be finite", name)
		}
	}

	type change struct {
		name     string
		from, to float64
	}
	changes := make([]change, 0, len(values))

	s.cacheMu.Lock()
	for name, value := range values {
		old, ok := s.cache[name]
		if !ok {
			old = s.variables[name].Default
		}
		s.cache[name] = value
		if old != value {
			changes = append(changes, change{name: name, from: old, to: value})
		}
	}
	s.cacheMu.Unlock()

	for _, c := range changes {
		s.logger.Debug("DNA value changed",
			zap.String("name", c.name),
			zap.Float64("old", c.from),
			zap.Float64("new", c.to))
		s.notifySubscribers(c.name, c.from, c.to)
	}
	return nil
}

// Reset returns every value to its default.
func (s *Store) Reset() {
	defaults := make(map[string]float64, len(s.variables))
	for name, v := range s.variables {
		defaults[name] = v.Default
	}
	if err := s.SetMany(defaults); err != nil {
		s.logger.Error("Failed to reset DNA values", zap.Error(err))
	}
}

// Snapshot returns a copy of every value, defaults included. Dispatches run
// against a snapshot so pre-pass edits never reach the store.
func (s *Store) Snapshot() Set {
	set := s.asset.Defaults()

	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	for name, value := range s.cache {
		set[name] = value
	}
	return set
}

// Subscribe registers handler for changes to name, or to every value when
// name is AnyName.
func (s *Store) Subscribe(name string, handler ChangeHandler) (Subscription, error) {
	if name != AnyName {
		if _, ok := s.variables[name]; !ok {
			return nil, fmt.Errorf("DNA value %s not found", name)
		}
	}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	s.nextSubID++
	if s.subscribers[name] == nil {
		s.subscribers[name] = make(map[uint64]ChangeHandler)
	}
	s.subscribers[name][s.nextSubID] = handler

	return &subscription{id: s.nextSubID, name: name, store: s}, nil
}

func (s *Store) unsubscribe(name string, id uint64) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	delete(s.subscribers[name], id)
	if len(s.subscribers[name]) == 0 {
		delete(s.subscribers, name)
	}
}

// notifySubscribers notifies all subscribers of a change
func (s *Store) notifySubscribers(name string, oldValue, newValue float64) {
	s.subsMu.RLock()
	handlers := make([]ChangeHandler, 0, len(s.subscribers[name])+len(s.subscribers[AnyName]))
	for _, h := range s.subscribers[name] {
		handlers = append(handlers, h)
	}
	for _, h := range s.subscribers[AnyName] {
		handlers = append(handlers, h)
	}
	s.subsMu.RUnlock()

	for _, handler := range handlers {
		go handler(name, oldValue, newValue)
	}
}
