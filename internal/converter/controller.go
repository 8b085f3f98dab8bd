// Package converter holds the DNA converter controller: an ordered list of
// named converter plugins dispatched in two passes, pre-pass then standard.
//
// A Controller is not safe for concurrent use. Callers that share one across
// goroutines serialise access themselves, and plugins must not mutate the
// controller that is applying them.
package converter

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"dnaconverter/internal/clock"
	"dnaconverter/internal/shadowstate"
	"dnaconverter/pkg/plugin"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Controller owns an ordered sequence of converter plugins.
type Controller struct {
	name  string
	kinds *plugin.Registry

	plugins []plugin.Plugin

	// Partition cache, valid while prepared is set.
	prepared bool
	prePass  []plugin.Plugin
	standard []plugin.Plugin

	// Name index cache, rebuilt when empty or forced.
	usedNames []string

	notifier Notifier
	logger   *zap.Logger
	clock    clock.Clock
	tracer   trace.Tracer
	shadow   *shadowstate.Tracker
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithNotifier sets the collaborator told about plugin list changes.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithClock sets the clock used to time dispatches.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithTracer sets the tracer used for dispatch spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Controller) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithShadowState records every plugin apply into tracker.
func WithShadowState(tracker *shadowstate.Tracker) Option {
	return func(c *Controller) { c.shadow = tracker }
}

// New creates an empty controller that builds plugins from kinds.
func New(name string, kinds *plugin.Registry, opts ...Option) (*Controller, error) {
	if kinds == nil {
		return nil, ErrNullFactoryOrRegistry
	}

	c := &Controller{
		name:   name,
		kinds:  kinds,
		logger: zap.NewNop(),
		clock:  clock.NewRealClock(),
		tracer: noop.NewTracerProvider().Tracer("dnaconverter/converter"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("converter").With(zap.String("controller", name))

	return c, nil
}

// Name returns the controller's name.
func (c *Controller) Name() string {
	return c.name
}

// Kinds returns the kind table plugins are created from.
func (c *Controller) Kinds() *plugin.Registry {
	return c.kinds
}

// SetNotifier replaces the change notifier. Passing nil disables
// notifications, which restore code uses while it rebuilds a controller.
func (c *Controller) SetNotifier(n Notifier) {
	c.notifier = n
}

// Count returns the number of plugins.
func (c *Controller) Count() int {
	return len(c.plugins)
}

// Plugins returns the plugins in order. The slice is a copy.
func (c *Controller) Plugins() []plugin.Plugin {
	out := make([]plugin.Plugin, len(c.plugins))
	copy(out, c.plugins)
	return out
}

// Add creates a plugin of the given kind, names it uniquely and appends it.
func (c *Controller) Add(kind string) (plugin.Plugin, error) {
	if c == nil || c.kinds == nil {
		return nil, ErrNullFactoryOrRegistry
	}
	if kind == "" {
		return nil, fmt.Errorf("%w: empty kind", ErrInvalidPluginType)
	}

	p, info, err := c.kinds.Create(kind, plugin.NewContext(c.logger.Named(kind)))
	if err != nil {
		c.logger.Warn("Could not create plugin", zap.String("kind", kind), zap.Error(err))
		if errors.Is(err, plugin.ErrUnknownKind) || errors.Is(err, plugin.ErrInvalidPlugin) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPluginType, err)
		}
		return nil, fmt.Errorf("failed to add %s plugin: %w", kind, err)
	}

	p.SetName(c.UniqueName(info.DefaultName, nil))
	p.SetOwner(c)
	c.plugins = append(c.plugins, p)
	c.invalidate()

	c.logger.Info("Plugin added",
		zap.String("plugin", p.Name()),
		zap.String("kind", kind),
		zap.String("pass", string(p.ApplyPass())))
	c.notify(Change{Type: ChangeAdded, Plugin: p.Name(), Kind: kind})

	return p, nil
}

// Insert adopts an already constructed plugin, appending it after the
// existing ones. Its name is made unique against the current plugins.
func (c *Controller) Insert(p plugin.Plugin) error {
	if p == nil || !c.valid(p) {
		return ErrInvalidPluginType
	}
	for _, existing := range c.plugins {
		if existing == p || existing.ID() == p.ID() {
			return fmt.Errorf("%w: %s", ErrDuplicatePlugin, p.Name())
		}
	}

	p.SetName(c.UniqueName(p.Name(), p))
	p.SetOwner(c)
	c.plugins = append(c.plugins, p)
	c.invalidate()

	c.logger.Debug("Plugin inserted",
		zap.String("plugin", p.Name()),
		zap.String("id", p.ID()),
		zap.String("kind", p.Kind()))
	c.notify(Change{Type: ChangeInserted, Plugin: p.Name(), Kind: p.Kind()})

	return nil
}

// Remove deletes p from the controller and revalidates what is left.
// It returns false if p was not a member.
func (c *Controller) Remove(p plugin.Plugin) bool {
	idx := c.indexOf(p)
	if idx < 0 {
		return false
	}

	c.plugins = append(c.plugins[:idx], c.plugins[idx+1:]...)
	c.invalidate()
	if p.Owner() == c {
		p.SetOwner(nil)
	}
	if c.shadow != nil {
		c.shadow.Forget(p.Name())
	}

	c.logger.Info("Plugin removed", zap.String("plugin", p.Name()), zap.String("kind", p.Kind()))
	c.notify(Change{Type: ChangeRemoved, Plugin: p.Name(), Kind: p.Kind()})

	c.Validate()
	return true
}

// Rename gives p a new name, made unique against the other plugins, and
// returns the name it ended up with.
func (c *Controller) Rename(p plugin.Plugin, desired string) (string, error) {
	if c.indexOf(p) < 0 {
		return "", ErrNotMember
	}
	if desired == "" {
		return "", fmt.Errorf("plugin name cannot be empty")
	}

	previous := p.Name()
	name := c.UniqueName(desired, p)
	if name == previous {
		return name, nil
	}

	p.SetName(name)
	if c.shadow != nil {
		c.shadow.Forget(previous)
	}

	c.logger.Info("Plugin renamed", zap.String("from", previous), zap.String("to", name))
	c.notify(Change{Type: ChangeRenamed, Plugin: name, Kind: p.Kind(), Previous: previous})

	return name, nil
}

// Reconfigure records that p's settings changed outside the controller.
// The DNA name index is rebuilt and the notifier told, so the change is
// persisted like any structural one.
func (c *Controller) Reconfigure(p plugin.Plugin) error {
	if c.indexOf(p) < 0 {
		return ErrNotMember
	}
	c.compileUsedNames()

	c.logger.Debug("Plugin reconfigured", zap.String("plugin", p.Name()))
	c.notify(Change{Type: ChangeReconfigured, Plugin: p.Name(), Kind: p.Kind()})
	return nil
}

// Validate drops nil and invalid plugins, gives duplicate names a unique
// suffix, re-parents every remaining plugin to this controller and rebuilds
// the name index. Running it twice leaves the same state as running it once.
func (c *Controller) Validate() {
	kept := make([]plugin.Plugin, 0, len(c.plugins))
	taken := make(map[string]bool, len(c.plugins))
	dropped, changed := 0, 0

	for _, p := range c.plugins {
		if !c.valid(p) {
			dropped++
			if p != nil {
				c.logger.Warn("Dropping invalid plugin", zap.String("plugin", p.Name()), zap.String("kind", p.Kind()))
			}
			continue
		}
		if taken[p.Name()] {
			name := nextFree(p.Name(), func(n string) bool { return taken[n] })
			c.logger.Warn("Renaming duplicate plugin", zap.String("from", p.Name()), zap.String("to", name))
			p.SetName(name)
			changed++
		}
		if p.Owner() != c {
			p.SetOwner(c)
			changed++
		}
		taken[p.Name()] = true
		kept = append(kept, p)
	}

	c.plugins = kept
	if dropped > 0 {
		c.prepared = false
		c.prePass, c.standard = nil, nil
	}
	c.compileUsedNames()

	if dropped > 0 || changed > 0 {
		c.notify(Change{Type: ChangeValidated})
	}
}

// Prepare partitions the plugins by apply pass, keeping their relative
// order. It does nothing until a membership change invalidates the result.
func (c *Controller) Prepare() {
	if c.prepared {
		return
	}

	prePass := make([]plugin.Plugin, 0, len(c.plugins))
	standard := make([]plugin.Plugin, 0, len(c.plugins))
	for _, p := range c.plugins {
		switch p.ApplyPass() {
		case plugin.PassPrePass:
			prePass = append(prePass, p)
		case plugin.PassStandard:
			standard = append(standard, p)
		default:
			c.logger.Warn("Plugin has unknown apply pass",
				zap.String("plugin", p.Name()),
				zap.String("pass", string(p.ApplyPass())))
		}
	}

	c.prePass, c.standard = prePass, standard
	c.prepared = true
}

// DispatchPrePass applies every pre-pass plugin in order. The first plugin
// error stops the pass and is returned prefixed with the plugin's name.
func (c *Controller) DispatchPrePass(ctx context.Context, actx *plugin.ApplyContext) error {
	c.Prepare()
	return c.dispatch(ctx, plugin.PassPrePass, c.prePass, actx)
}

// DispatchStandard applies every standard plugin in order.
func (c *Controller) DispatchStandard(ctx context.Context, actx *plugin.ApplyContext) error {
	c.Prepare()
	return c.dispatch(ctx, plugin.PassStandard, c.standard, actx)
}

// Apply runs the pre-pass then the standard pass.
func (c *Controller) Apply(ctx context.Context, actx *plugin.ApplyContext) error {
	if err := c.DispatchPrePass(ctx, actx); err != nil {
		return err
	}
	return c.DispatchStandard(ctx, actx)
}

func (c *Controller) dispatch(ctx context.Context, pass plugin.ApplyPass, plugins []plugin.Plugin, actx *plugin.ApplyContext) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := c.tracer.Start(ctx, "converter.dispatch",
		trace.WithAttributes(
			attribute.String("controller", c.name),
			attribute.String("pass", string(pass)),
			attribute.Int("plugins", len(plugins)),
		))
	defer span.End()

	start := c.clock.Now()
	for _, p := range plugins {
		if err := c.applyOne(ctx, pass, p, actx); err != nil {
			err = fmt.Errorf("%s: %w", p.Name(), err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	if c.shadow != nil {
		c.shadow.MarkDispatch(c.clock.Now())
	}
	c.logger.Debug(fmt.Sprintf("%s pass completed in %dms", pass, c.clock.Since(start).Milliseconds()),
		zap.Int("plugins", len(plugins)))
	return nil
}

func (c *Controller) applyOne(ctx context.Context, pass plugin.ApplyPass, p plugin.Plugin, actx *plugin.ApplyContext) error {
	_, span := c.tracer.Start(ctx, "converter.apply",
		trace.WithAttributes(
			attribute.String("plugin", p.Name()),
			attribute.String("kind", p.Kind()),
		))
	defer span.End()

	if c.shadow == nil || actx == nil {
		return p.Apply(actx)
	}

	inputs := shadowstate.CaptureInputs(p, actx.DNA)
	before := make(plugin.Outputs, len(actx.Outputs))
	for k, v := range actx.Outputs {
		before[k] = v
	}

	started := c.clock.Now()
	err := p.Apply(actx)

	rec := shadowstate.ApplyRecord{
		Plugin:    p.Name(),
		Kind:      p.Kind(),
		Pass:      pass,
		Timestamp: started,
		Duration:  c.clock.Since(started),
		Inputs:    inputs,
		Outputs:   shadowstate.DiffOutputs(before, actx.Outputs),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	c.shadow.Record(rec)

	return err
}

// UsedNames returns the distinct DNA names the plugins read, in plugin
// order. The index is rebuilt when it is empty or forceRefresh is set.
func (c *Controller) UsedNames(forceRefresh bool) []string {
	if len(c.usedNames) == 0 || forceRefresh {
		c.compileUsedNames()
	}
	out := make([]string, len(c.usedNames))
	copy(out, c.usedNames)
	return out
}

func (c *Controller) compileUsedNames() {
	seen := make(map[string]bool)
	names := make([]string, 0)
	for _, p := range c.plugins {
		if p == nil {
			continue
		}
		declared := make([]string, 0)
		for name := range p.IndexesForDNANames() {
			if name != "" && !seen[name] {
				declared = append(declared, name)
			}
		}
		sort.Strings(declared)
		for _, name := range declared {
			seen[name] = true
			names = append(names, name)
		}
	}
	c.usedNames = names
}

// PluginAt returns the plugin at index i, or false when i is out of range.
func (c *Controller) PluginAt(i int) (plugin.Plugin, bool) {
	if i < 0 || i >= len(c.plugins) {
		return nil, false
	}
	return c.plugins[i], true
}

// PluginNamed returns the first plugin called name.
func (c *Controller) PluginNamed(name string) (plugin.Plugin, bool) {
	for _, p := range c.plugins {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// PluginByID returns the plugin with the given stable ID.
func (c *Controller) PluginByID(id string) (plugin.Plugin, bool) {
	for _, p := range c.plugins {
		if p.ID() == id {
			return p, true
		}
	}
	return nil, false
}

// PluginsWhere returns the plugins matching pred, in order.
func (c *Controller) PluginsWhere(pred func(plugin.Plugin) bool) []plugin.Plugin {
	out := make([]plugin.Plugin, 0)
	for _, p := range c.plugins {
		if pred(p) {
			out = append(out, p)
		}
	}
	return out
}

// PluginsOf returns the plugins of c that implement T, in order.
func PluginsOf[T any](c *Controller) []T {
	out := make([]T, 0)
	for _, p := range c.plugins {
		if t, ok := p.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// valid reports whether p may be held: non-nil, of a registered kind, and
// not reporting itself broken.
func (c *Controller) valid(p plugin.Plugin) bool {
	if p == nil || !c.kinds.Has(p.Kind()) {
		return false
	}
	if v, ok := p.(plugin.Validator); ok && !v.Valid() {
		return false
	}
	return true
}

func (c *Controller) indexOf(p plugin.Plugin) int {
	if p == nil {
		return -1
	}
	for i, existing := range c.plugins {
		if existing == p {
			return i
		}
	}
	return -1
}

func (c *Controller) invalidate() {
	c.prepared = false
	c.prePass, c.standard = nil, nil
	c.usedNames = nil
}

func (c *Controller) notify(change Change) {
	if c.notifier == nil {
		return
	}
	change.Count = len(c.plugins)
	c.notifier.NotifyChanged(c, change)
}
