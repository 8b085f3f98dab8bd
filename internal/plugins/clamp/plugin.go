// Package clamp provides a pre-pass converter that limits DNA values to a
// configured range before any standard converter reads them.
package clamp

import (
	"fmt"

	"dnaconverter/pkg/plugin"

	"go.uber.org/zap"
)

// Kind is the registry key for clamp plugins.
const Kind = "clamp"

// Plugin clamps DNA values in the working copy of a dispatch.
type Plugin struct {
	*plugin.Base
	settings Settings
	logger   *zap.Logger
}

// New creates a clamp plugin with no ranges.
func New(logger *zap.Logger) *Plugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Plugin{
		Base:   plugin.NewBase(Kind, plugin.PassPrePass),
		logger: logger,
	}
}

// Settings returns the plugin's settings for encoding and decoding.
func (p *Plugin) Settings() any {
	return &p.settings
}

// AddRange appends a range.
func (p *Plugin) AddRange(r Range) {
	p.settings.Ranges = append(p.settings.Ranges, r)
}

// Valid reports whether every range names a DNA value and has Min <= Max.
func (p *Plugin) Valid() bool {
	return p.settings.valid()
}

// IndexesForDNANames maps each clamped DNA name to its range indexes.
func (p *Plugin) IndexesForDNANames() map[string][]int {
	out := make(map[string][]int)
	for i, r := range p.settings.Ranges {
		out[r.DNA] = append(out[r.DNA], i)
	}
	return out
}

// Apply clamps each configured DNA value. Values the DNA does not carry are
// left alone.
func (p *Plugin) Apply(actx *plugin.ApplyContext) error {
	if actx == nil || actx.DNA == nil {
		return fmt.Errorf("clamp: apply context has no DNA")
	}

	for _, r := range p.settings.Ranges {
		v, ok := actx.DNA.Value(r.DNA)
		if !ok {
			continue
		}
		clamped := v
		if clamped < r.Min {
			clamped = r.Min
		}
		if clamped > r.Max {
			clamped = r.Max
		}
		if clamped != v {
			actx.DNA.SetValue(r.DNA, clamped)
			p.logger.Debug("Clamped DNA value",
				zap.String("dna", r.DNA),
				zap.Float64("from", v),
				zap.Float64("to", clamped))
		}
	}
	return nil
}
