// Package plugin provides the converter plugin interfaces and the kind
// registry for the DNA converter system. Plugin kinds register themselves
// with the global registry using init() functions, so the set of available
// converters is selected at compile time through imports, and private
// implementations can override public ones by priority.
package plugin

import (
	"fmt"
	"strings"
)

// ApplyPass selects when a plugin runs during a dispatch.
type ApplyPass string

const (
	// PassStandard plugins run after every pre-pass plugin, in registration order.
	PassStandard ApplyPass = "standard"

	// PassPrePass plugins run first. They establish prerequisites that
	// standard plugins read (e.g. clamped DNA values).
	PassPrePass ApplyPass = "prepass"
)

// ParseApplyPass converts a string to an ApplyPass. Matching is case
// insensitive and accepts "pre-pass" as an alias.
func ParseApplyPass(s string) (ApplyPass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard", "":
		return PassStandard, nil
	case "prepass", "pre-pass":
		return PassPrePass, nil
	default:
		return "", fmt.Errorf("unknown apply pass %q", s)
	}
}

// IsValid reports whether p is one of the known passes.
func (p ApplyPass) IsValid() bool {
	return p == PassStandard || p == PassPrePass
}

// Owner is the controller a plugin belongs to.
type Owner interface {
	Name() string
}

// Plugin is the core interface that all converter plugins must implement.
// A plugin maps DNA values to a concrete effect written into the apply context.
type Plugin interface {
	// ID returns the stable identifier used to recognise the plugin
	// across save/load cycles.
	ID() string

	// Name returns the plugin's display name. Names are unique within
	// the controller that owns the plugin.
	Name() string
	SetName(name string)

	// Kind returns the registry key the plugin was created from.
	Kind() string

	// ApplyPass reports which dispatch pass the plugin runs in.
	ApplyPass() ApplyPass

	// IndexesForDNANames maps each DNA name the plugin reads to the
	// indexes of the settings entries that use it.
	IndexesForDNANames() map[string][]int

	// Apply converts the DNA in ctx into the plugin's effect.
	Apply(ctx *ApplyContext) error

	Owner() Owner
	SetOwner(owner Owner)
}

// Configurable is an optional interface for plugins with persisted settings.
// Settings returns a pointer to a yaml-taggable struct; stores encode it on
// save and decode into it on load.
type Configurable interface {
	Settings() any
}

// Validator is an optional interface for plugins that can detect a broken
// configuration. Controllers drop plugins reporting false during validation.
type Validator interface {
	Valid() bool
}

// Restorable is implemented by plugins whose identity and pass can be
// restored from persisted data. Base implements it.
type Restorable interface {
	SetID(id string)
	SetApplyPass(pass ApplyPass)
}

// Factory is a function that creates a new plugin instance given a context.
// Factories are registered with the kind registry and called whenever a
// controller adds a plugin of that kind.
type Factory func(ctx *Context) (Plugin, error)
