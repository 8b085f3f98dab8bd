// Package curve provides a standard converter that reshapes single DNA
// values into outputs with piecewise-linear curves.
package curve

import (
	"fmt"

	"dnaconverter/pkg/plugin"

	"go.uber.org/zap"
)

// Kind is the registry key for curve plugins.
const Kind = "curve"

// Plugin evaluates its curves against the DNA of a dispatch.
type Plugin struct {
	*plugin.Base
	settings Settings
	logger   *zap.Logger
}

// New creates a curve plugin with no curves.
func New(logger *zap.Logger) *Plugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Plugin{
		Base:   plugin.NewBase(Kind, plugin.PassStandard),
		logger: logger,
	}
}

func (p *Plugin) Settings() any    { return &p.settings }
func (p *Plugin) Valid() bool      { return p.settings.valid() }
func (p *Plugin) AddCurve(c Curve) { p.settings.Curves = append(p.settings.Curves, c) }

func (p *Plugin) IndexesForDNANames() map[string][]int {
	out := make(map[string][]int)
	for i, c := range p.settings.Curves {
		out[c.DNA] = append(out[c.DNA], i)
	}
	return out
}

// Apply writes one output per curve. Curves whose DNA value is missing are
// skipped.
func (p *Plugin) Apply(actx *plugin.ApplyContext) error {
	if actx == nil || actx.DNA == nil {
		return fmt.Errorf("curve: apply context has no DNA")
	}
	if actx.Outputs == nil {
		actx.Outputs = make(plugin.Outputs)
	}

	for _, c := range p.settings.Curves {
		x, ok := actx.DNA.Value(c.DNA)
		if !ok {
			p.logger.Debug("DNA value missing, curve skipped", zap.String("dna", c.DNA))
			continue
		}
		actx.Outputs[c.Output] = c.Evaluate(x)
	}
	return nil
}
