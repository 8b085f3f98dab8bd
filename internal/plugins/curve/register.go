package curve

import "dnaconverter/pkg/plugin"

func init() {
	plugin.Register(plugin.PluginInfo{
		Kind:        Kind,
		Description: "Maps DNA values to outputs through piecewise-linear curves",
		DefaultName: "Curves",
		Priority:    plugin.PriorityDefault,
		Order:       30, // After modifier (20)
		Factory:     createPlugin,
	})
}

func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	return New(ctx.Logger.Named(Kind)), nil
}
