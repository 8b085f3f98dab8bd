package clamp

import "dnaconverter/pkg/plugin"

func init() {
	plugin.Register(plugin.PluginInfo{
		Kind:        Kind,
		Description: "Clamps DNA values to a range before standard converters run",
		DefaultName: "Clamp",
		Priority:    plugin.PriorityDefault,
		Order:       10, // Pre-pass converters are listed first
		Factory:     createPlugin,
	})
}

func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	return New(ctx.Logger.Named(Kind)), nil
}
