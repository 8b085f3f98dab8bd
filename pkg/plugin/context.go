package plugin

import (
	"sort"

	"go.uber.org/zap"
)

// Context provides dependencies to plugin factories.
type Context struct {
	// Logger is a structured logger for the plugin to use.
	// Plugins should use logger.Named("kind") for namespacing.
	Logger *zap.Logger
}

// NewContext creates a new factory context.
func NewContext(logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Context{Logger: logger}
}

// DNA is the set of named values a dispatch converts.
type DNA interface {
	Value(name string) (float64, bool)
	SetValue(name string, value float64)
	Names() []string
}

// Outputs collects the named parameters written by converters.
type Outputs map[string]float64

// Get returns the value for name, or zero if nothing wrote it.
func (o Outputs) Get(name string) float64 {
	return o[name]
}

// Names returns the output names in sorted order.
func (o Outputs) Names() []string {
	names := make([]string, 0, len(o))
	for name := range o {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyContext is handed unmodified to every plugin's Apply during a dispatch.
// The controller never looks inside it.
type ApplyContext struct {
	// DNA is the working copy of DNA values. Pre-pass plugins may rewrite
	// values here before standard plugins read them.
	DNA DNA

	// Outputs receives the converted parameters.
	Outputs Outputs

	// DNATypeHash identifies the DNA layout the values belong to.
	DNATypeHash uint32

	Logger *zap.Logger
}

// NewApplyContext creates an apply context with an empty output set.
func NewApplyContext(dna DNA, dnaTypeHash uint32, logger *zap.Logger) *ApplyContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplyContext{
		DNA:         dna,
		Outputs:     make(Outputs),
		DNATypeHash: dnaTypeHash,
		Logger:      logger,
	}
}
