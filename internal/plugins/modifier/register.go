package modifier

import "dnaconverter/pkg/plugin"

func init() {
	plugin.Register(plugin.PluginInfo{
		Kind:        Kind,
		Description: "Writes outputs from weighted sums of DNA values",
		DefaultName: "Modifiers",
		Priority:    plugin.PriorityDefault,
		Order:       20, // After clamp (10)
		Factory:     createPlugin,
	})
}

func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	return New(ctx.Logger.Named(Kind)), nil
}
