package store

import (
	"context"
	"sync"
	"time"

	"dnaconverter/internal/converter"

	"go.uber.org/zap"
)

// DefaultSaveTimeout bounds each save AutoSave performs.
const DefaultSaveTimeout = 5 * time.Second

// AutoSave saves a snapshot of the controller after every change. It is the
// controller's persistence hook.
type AutoSave struct {
	store    Store
	logger   *zap.Logger
	readOnly bool
	timeout  time.Duration

	mu      sync.Mutex
	lastErr error
	saves   int
}

// NewAutoSave creates an AutoSave writing to s. In read-only mode changes
// are logged and never saved.
func NewAutoSave(s Store, logger *zap.Logger, readOnly bool) *AutoSave {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoSave{
		store:    s,
		logger:   logger.Named("autosave"),
		readOnly: readOnly,
		timeout:  DefaultSaveTimeout,
	}
}

// NotifyChanged implements converter.Notifier.
func (a *AutoSave) NotifyChanged(c *converter.Controller, change converter.Change) {
	if a.readOnly {
		a.logger.Info("READ-ONLY: Would save plugins",
			zap.String("change", string(change.Type)),
			zap.String("plugin", change.Plugin))
		return
	}

	err := a.save(c)

	a.mu.Lock()
	a.lastErr = err
	if err == nil {
		a.saves++
	}
	a.mu.Unlock()

	if err != nil {
		a.logger.Error("Failed to save plugins",
			zap.String("controller", c.Name()),
			zap.String("change", string(change.Type)),
			zap.Error(err))
		return
	}
	a.logger.Debug("Plugins saved",
		zap.String("controller", c.Name()),
		zap.String("change", string(change.Type)),
		zap.Int("count", change.Count))
}

func (a *AutoSave) save(c *converter.Controller) error {
	doc, err := Snapshot(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	return a.store.Save(ctx, doc)
}

// Err returns the error of the most recent save attempt.
func (a *AutoSave) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// Saves returns the number of successful saves.
func (a *AutoSave) Saves() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saves
}
