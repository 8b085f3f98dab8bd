package main

import (
	"context"
	"errors"
	"fmt"

	"dnaconverter/internal/config"
	"dnaconverter/internal/converter"
	"dnaconverter/internal/dna"
	"dnaconverter/internal/shadowstate"
	"dnaconverter/internal/store"
	"dnaconverter/internal/tracing"
	"dnaconverter/pkg/plugin"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// runtime is a restored controller with everything around it.
type runtime struct {
	cfg        *config.Config
	logger     *zap.Logger
	tracing    *tracing.Provider
	store      store.Store
	dna        *dna.Store
	shadow     *shadowstate.Tracker
	controller *converter.Controller
	autosave   *store.AutoSave

	// restoreErr lists saved plugins that could not be rebuilt.
	restoreErr error
}

func openRuntime(ctx context.Context, opts *options) (*runtime, error) {
	cfg, err := config.Load(opts.v, opts.cfgFile, opts.envFile)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	rt := &runtime{cfg: cfg, logger: logger, shadow: shadowstate.NewTracker()}

	if err := rt.open(ctx); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) open(ctx context.Context) error {
	var err error
	rt.tracing, err = tracing.NewProvider(rt.cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}

	asset := dna.DefaultAsset()
	if rt.cfg.AssetPath != "" {
		if asset, err = dna.LoadAsset(rt.cfg.AssetPath); err != nil {
			return err
		}
	}
	rt.dna = dna.NewStore(asset, rt.logger)

	if rt.store, err = openStore(rt.cfg); err != nil {
		return err
	}

	rt.controller, err = converter.New(rt.cfg.Controller, plugin.Default(),
		converter.WithLogger(rt.logger),
		converter.WithTracer(rt.tracing.Tracer()),
		converter.WithShadowState(rt.shadow))
	if err != nil {
		return err
	}

	if _, err := store.Restore(ctx, rt.store, rt.controller, rt.logger); err != nil {
		if !errors.Is(err, store.ErrSkippedRecord) {
			return err
		}
		rt.restoreErr = err
	}

	rt.autosave = store.NewAutoSave(rt.store, rt.logger, rt.cfg.ReadOnly)
	rt.controller.SetNotifier(rt.autosave)
	return nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendFile:
		return store.NewFileStore(cfg.Store.Path), nil
	case config.BackendSQLite:
		return store.OpenSQLite(cfg.Store.Path, cfg.Controller)
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// saveErr reports a failed autosave from the last mutation.
func (rt *runtime) saveErr() error {
	if err := rt.autosave.Err(); err != nil {
		return fmt.Errorf("failed to save plugins: %w", err)
	}
	return nil
}

func (rt *runtime) Close() error {
	var err error
	if rt.store != nil {
		err = multierr.Append(err, rt.store.Close())
	}
	if rt.tracing != nil {
		err = multierr.Append(err, rt.tracing.Shutdown(context.Background()))
	}
	_ = rt.logger.Sync()
	return err
}
