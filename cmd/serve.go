package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"dnaconverter/internal/api"
	"dnaconverter/internal/config"
	"dnaconverter/internal/converter"
	"dnaconverter/internal/store"
	"dnaconverter/internal/watcher"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the controller over HTTP until interrupted",
		Long: `Restore the saved plugins and serve them over HTTP. Changes made through
the API are saved as they happen; edits to the store file made by hand are
picked up while the server runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
	cmd.Flags().String("listen", "", "address to listen on (default :8080)")
	_ = opts.v.BindPFlag("listen", cmd.Flags().Lookup("listen"))
	return cmd
}

func runServe(ctx context.Context, opts *options) error {
	rt, err := openRuntime(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	logger := rt.logger
	logger.Info("Starting DNA converter",
		zap.String("controller", rt.cfg.Controller),
		zap.String("backend", rt.cfg.Store.Backend),
		zap.Int("plugins", rt.controller.Count()),
		zap.Bool("read_only", rt.cfg.ReadOnly))
	if rt.restoreErr != nil {
		logger.Warn("Some saved plugins were skipped", zap.Error(rt.restoreErr))
	}

	var mu sync.Mutex
	hub := api.NewHub(logger, nil)
	rt.controller.SetNotifier(converter.Notifiers{rt.autosave, hub})

	server := api.NewServer(api.Options{
		Controller: rt.controller,
		DNA:        rt.dna,
		Shadow:     rt.shadow,
		Hub:        hub,
		Logger:     logger,
		Lock:       &mu,
		ReadOnly:   rt.cfg.ReadOnly,
		Addr:       rt.cfg.Listen,
	})
	if err := server.Start(); err != nil {
		return err
	}

	if rt.cfg.Watch.Enabled && rt.cfg.Store.Backend == config.BackendFile {
		changes, stopWatch, err := watchStore(rt.cfg, logger)
		if err != nil {
			logger.Warn("Store file will not be watched", zap.Error(err))
		} else {
			defer stopWatch()
			go syncOnChange(ctx, changes, &mu, rt, logger)
		}
	}

	logger.Info("DNA converter running. Press Ctrl+C to exit.")
	<-ctx.Done()
	logger.Info("Shutting down")

	return server.Stop()
}

func watchStore(cfg *config.Config, logger *zap.Logger) (<-chan struct{}, func() error, error) {
	w, err := watcher.New(watcher.Config{
		Path:        cfg.Store.Path,
		DebounceDur: cfg.Watch.Debounce,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, err
	}
	changes, err := w.Start()
	if err != nil {
		_ = w.Stop()
		return nil, nil, err
	}
	return changes, w.Stop, nil
}

// syncOnChange pulls outside edits of the store into the controller.
func syncOnChange(ctx context.Context, changes <-chan struct{}, mu *sync.Mutex, rt *runtime, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			mu.Lock()
			result, err := store.Sync(ctx, rt.store, rt.controller, logger)
			mu.Unlock()
			if err != nil {
				logger.Warn("Failed to sync plugins from store", zap.Error(err))
				continue
			}
			logger.Debug("Store synced",
				zap.Int("added", result.Added),
				zap.Int("updated", result.Updated))
		}
	}
}
