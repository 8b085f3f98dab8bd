// Package testutil provides testing utilities for converter plugins.
// This file provides a TestEnv for integration testing plugin kinds.
package testutil

import (
	"context"
	"fmt"

	"dnaconverter/internal/converter"
	"dnaconverter/internal/dna"
	"dnaconverter/internal/shadowstate"
	"dnaconverter/internal/store"
	"dnaconverter/pkg/plugin"

	"go.uber.org/zap"
)

// TestEnv provides a complete environment for plugin integration tests: a
// controller saving into an in-memory store, DNA values for the default
// asset, apply tracing and a record of every controller change.
type TestEnv struct {
	Controller *converter.Controller
	DNA        *dna.Store
	Store      *store.MemoryStore
	Shadow     *shadowstate.Tracker
	Changes    *ChangeRecorder
	Logger     *zap.Logger

	kinds    *plugin.Registry
	autosave *store.AutoSave
}

// NewTestEnv creates a test environment whose controller builds plugins
// from kinds. A nil kinds uses a copy of the global registry.
//
// Example usage:
//
//	env, err := testutil.NewTestEnv(nil)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer env.Cleanup()
//
//	p, _ := env.Controller.Add("modifier")
//	outputs, err := env.Apply(map[string]float64{"height": 0.8})
func NewTestEnv(kinds *plugin.Registry) (*TestEnv, error) {
	logger, _ := zap.NewDevelopment()
	if kinds == nil {
		kinds = plugin.Default().Clone()
	}

	env := &TestEnv{
		DNA:     dna.NewStore(dna.DefaultAsset(), logger),
		Store:   store.NewMemoryStore(),
		Shadow:  shadowstate.NewTracker(),
		Changes: &ChangeRecorder{},
		Logger:  logger,
		kinds:   kinds,
	}
	env.autosave = store.NewAutoSave(env.Store, logger, false)

	c, err := env.newController()
	if err != nil {
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}
	env.Controller = c
	return env, nil
}

func (e *TestEnv) newController() (*converter.Controller, error) {
	return converter.New("test", e.kinds,
		converter.WithLogger(e.Logger),
		converter.WithShadowState(e.Shadow),
		converter.WithNotifier(converter.Notifiers{e.autosave, e.Changes}))
}

// Apply runs both passes against the stored DNA with values overriding it,
// and returns the outputs.
func (e *TestEnv) Apply(values map[string]float64) (plugin.Outputs, error) {
	working := e.DNA.Snapshot()
	for name, v := range values {
		if _, ok := working[name]; !ok {
			return nil, fmt.Errorf("DNA value %s not found", name)
		}
		working[name] = v
	}
	actx := plugin.NewApplyContext(working, e.DNA.Asset().NameHash(), e.Logger)
	if err := e.Controller.Apply(context.Background(), actx); err != nil {
		return nil, err
	}
	return actx.Outputs, nil
}

// Reload rebuilds the controller from what AutoSave stored, as a restart
// would. It fails if the last save failed or a plugin cannot be restored.
func (e *TestEnv) Reload() error {
	if err := e.autosave.Err(); err != nil {
		return fmt.Errorf("last save failed: %w", err)
	}
	c, err := e.newController()
	if err != nil {
		return err
	}
	c.SetNotifier(nil)
	if _, err := store.Restore(context.Background(), e.Store, c, e.Logger); err != nil {
		return fmt.Errorf("failed to restore plugins: %w", err)
	}
	c.SetNotifier(converter.Notifiers{e.autosave, e.Changes})
	e.Controller = c
	return nil
}

// Cleanup releases the environment.
// Always call this in a defer after creating the TestEnv.
func (e *TestEnv) Cleanup() {
	if e.Store != nil {
		e.Store.Close()
	}
	_ = e.Logger.Sync()
}
