// Package modifier provides the standard converter that turns weighted sums
// of DNA values into named output parameters.
package modifier

import (
	"fmt"

	"dnaconverter/pkg/plugin"

	"go.uber.org/zap"
)

// Kind is the registry key for modifier plugins.
const Kind = "modifier"

// Plugin writes one output per configured modifier.
type Plugin struct {
	*plugin.Base
	settings Settings
	logger   *zap.Logger
}

// New creates a modifier plugin with no modifiers.
func New(logger *zap.Logger) *Plugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Plugin{
		Base:   plugin.NewBase(Kind, plugin.PassStandard),
		logger: logger,
	}
}

func (p *Plugin) Settings() any { return &p.settings }
func (p *Plugin) Valid() bool   { return p.settings.valid() }

// AddModifier appends a modifier.
func (p *Plugin) AddModifier(m Modifier) {
	p.settings.Modifiers = append(p.settings.Modifiers, m)
}

// IndexesForDNANames maps every DNA name a term reads to the indexes of
// the modifiers using it.
func (p *Plugin) IndexesForDNANames() map[string][]int {
	out := make(map[string][]int)
	for i, m := range p.settings.Modifiers {
		seen := make(map[string]bool)
		for _, t := range m.Terms {
			if seen[t.DNA] {
				continue
			}
			seen[t.DNA] = true
			out[t.DNA] = append(out[t.DNA], i)
		}
	}
	return out
}

// Apply evaluates the modifiers in order. A later modifier writing the same
// output replaces the earlier value.
func (p *Plugin) Apply(actx *plugin.ApplyContext) error {
	if actx == nil || actx.DNA == nil {
		return fmt.Errorf("modifier: apply context has no DNA")
	}
	if actx.Outputs == nil {
		actx.Outputs = make(plugin.Outputs)
	}

	for _, m := range p.settings.Modifiers {
		v := m.evaluate(actx.DNA.Value)
		actx.Outputs[m.Output] = v
		p.logger.Debug("Modifier applied", zap.String("output", m.Output), zap.Float64("value", v))
	}
	return nil
}
