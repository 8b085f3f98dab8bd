package store

import (
	"bytes"
	"context"
	"fmt"

	"dnaconverter/internal/converter"
	"dnaconverter/pkg/plugin"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Snapshot converts the controller's plugins into a document.
func Snapshot(c *converter.Controller) (*Document, error) {
	doc := &Document{Controller: c.Name(), Plugins: make([]Record, 0, c.Count())}
	for _, p := range c.Plugins() {
		rec, err := recordOf(p)
		if err != nil {
			return nil, err
		}
		doc.Plugins = append(doc.Plugins, rec)
	}
	return doc, nil
}

func recordOf(p plugin.Plugin) (Record, error) {
	rec := Record{
		ID:   p.ID(),
		Kind: p.Kind(),
		Name: p.Name(),
		Pass: p.ApplyPass(),
	}
	if cfg, ok := p.(plugin.Configurable); ok {
		var node yaml.Node
		if err := node.Encode(cfg.Settings()); err != nil {
			return Record{}, fmt.Errorf("failed to encode settings of %s: %w", p.Name(), err)
		}
		rec.Settings = &node
	}
	return rec, nil
}

// build creates a plugin from a record using the controller's kind table.
func build(c *converter.Controller, rec Record, logger *zap.Logger) (plugin.Plugin, error) {
	p, info, err := c.Kinds().Create(rec.Kind, plugin.NewContext(logger.Named(rec.Kind)))
	if err != nil {
		return nil, err
	}

	if r, ok := p.(plugin.Restorable); ok {
		if rec.ID != "" {
			r.SetID(rec.ID)
		}
		if rec.Pass != "" {
			pass, err := plugin.ParseApplyPass(string(rec.Pass))
			if err != nil {
				return nil, fmt.Errorf("%w %s: %w", ErrSkippedRecord, rec.Name, err)
			}
			r.SetApplyPass(pass)
		}
	}
	if rec.Name != "" {
		p.SetName(rec.Name)
	} else {
		p.SetName(info.DefaultName)
	}
	if err := applySettings(p, rec); err != nil {
		return nil, err
	}
	return p, nil
}

// applySettings replaces p's settings with the record's.
func applySettings(p plugin.Plugin, rec Record) error {
	if rec.Settings == nil {
		return nil
	}
	cfg, ok := p.(plugin.Configurable)
	if !ok {
		return fmt.Errorf("plugin kind %s has no settings", p.Kind())
	}
	plugin.ResetSettings(cfg)
	if err := rec.Settings.Decode(cfg.Settings()); err != nil {
		return fmt.Errorf("failed to decode settings of %s: %w", rec.Name, err)
	}
	return nil
}

// Restore loads the saved document and inserts every plugin into c, in
// order. Records that cannot be rebuilt are logged, skipped and returned
// together as one error; the rest are still restored. Restore does not
// suppress c's notifier, so callers attach AutoSave afterwards.
func Restore(ctx context.Context, s Store, c *converter.Controller, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	doc, err := s.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load plugins: %w", err)
	}

	var errs error
	restored := 0
	for _, rec := range doc.Plugins {
		p, err := build(c, rec, logger)
		if err == nil {
			err = c.Insert(p)
		}
		if err != nil {
			logger.Warn("Skipping saved plugin",
				zap.String("plugin", rec.Name),
				zap.String("kind", rec.Kind),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%w %s: %w", ErrSkippedRecord, rec.Name, err))
			continue
		}
		restored++
	}
	c.Validate()

	logger.Info("Plugins restored",
		zap.String("controller", c.Name()),
		zap.Int("restored", restored),
		zap.Int("saved", len(doc.Plugins)))
	return restored, errs
}

// SyncResult counts what Sync changed.
type SyncResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
}

// Sync reconciles c with the saved document after an outside edit: records
// whose ID the controller lacks are built and inserted, and known plugins
// take the saved name and settings. A record without an ID stands for the
// plugin of the same kind and name, so repeated syncs adopt it once. Plugins missing from the document are
// kept; removal only happens through the controller.
func Sync(ctx context.Context, s Store, c *converter.Controller, logger *zap.Logger) (SyncResult, error) {
	var result SyncResult
	if logger == nil {
		logger = zap.NewNop()
	}

	doc, err := s.Load(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load plugins: %w", err)
	}

	var errs error
	for _, rec := range doc.Plugins {
		existing, ok := match(c, rec)
		if !ok {
			p, err := build(c, rec, logger)
			if err == nil {
				err = c.Insert(p)
			}
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%w %s: %w", ErrSkippedRecord, rec.Name, err))
				continue
			}
			result.Added++
			continue
		}

		updated, err := update(c, existing, rec)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w %s: %w", ErrSkippedRecord, rec.Name, err))
			continue
		}
		if updated {
			result.Updated++
		}
	}
	c.Validate()

	if result.Added > 0 || result.Updated > 0 {
		logger.Info("Plugins synced from store",
			zap.Int("added", result.Added),
			zap.Int("updated", result.Updated))
	}
	return result, errs
}

// match finds the plugin rec was saved from.
func match(c *converter.Controller, rec Record) (plugin.Plugin, bool) {
	if rec.ID != "" {
		return c.PluginByID(rec.ID)
	}
	name := rec.Name
	if name == "" {
		info := c.Kinds().Get(rec.Kind)
		if info == nil {
			return nil, false
		}
		name = info.DefaultName
	}
	p, ok := c.PluginNamed(name)
	if !ok || p.Kind() != rec.Kind {
		return nil, false
	}
	return p, true
}

// Pending reports whether the saved document differs from what c would
// save now, such as after Restore renamed duplicate records.
func Pending(ctx context.Context, s Store, c *converter.Controller) (bool, error) {
	saved, err := s.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load plugins: %w", err)
	}
	current, err := Snapshot(c)
	if err != nil {
		return false, err
	}
	if len(saved.Plugins) != len(current.Plugins) {
		return true, nil
	}
	for i, rec := range saved.Plugins {
		cur := current.Plugins[i]
		if rec.ID != cur.ID || rec.Kind != cur.Kind || rec.Name != cur.Name || rec.Pass != cur.Pass {
			return true, nil
		}
		if rec.Settings == nil {
			if cur.Settings != nil {
				return true, nil
			}
			continue
		}
		canonical, err := canonicalSettings(c, rec)
		if err != nil || !sameNode(canonical, cur.Settings) {
			return true, nil
		}
	}
	return false, nil
}

// canonicalSettings re-encodes rec's settings the way Snapshot would.
func canonicalSettings(c *converter.Controller, rec Record) (*yaml.Node, error) {
	fresh, _, err := c.Kinds().Create(rec.Kind, nil)
	if err != nil {
		return nil, err
	}
	if err := applySettings(fresh, rec); err != nil {
		return nil, err
	}
	out, err := recordOf(fresh)
	if err != nil {
		return nil, err
	}
	return out.Settings, nil
}

func update(c *converter.Controller, p plugin.Plugin, rec Record) (bool, error) {
	updated := false
	if rec.Name != "" && rec.Name != p.Name() {
		previous := p.Name()
		name, err := c.Rename(p, rec.Name)
		if err != nil {
			return false, err
		}
		updated = name != previous
	}
	if rec.Settings == nil {
		return updated, nil
	}

	// Compare canonical encodings so formatting edits are not updates.
	after, err := canonicalSettings(c, Record{Kind: p.Kind(), Name: rec.Name, Settings: rec.Settings})
	if err != nil {
		return false, err
	}
	before, err := recordOf(p)
	if err != nil {
		return false, err
	}
	if sameNode(before.Settings, after) {
		return updated, nil
	}
	if err := applySettings(p, rec); err != nil {
		return false, err
	}
	return true, nil
}

func sameNode(a, b *yaml.Node) bool {
	x, errX := yaml.Marshal(a)
	y, errY := yaml.Marshal(b)
	return errX == nil && errY == nil && bytes.Equal(x, y)
}
