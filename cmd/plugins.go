package main

import (
	"fmt"
	"os"

	"dnaconverter/pkg/plugin"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newPluginsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List and edit the controller's plugins",
	}
	cmd.AddCommand(
		newPluginsListCmd(opts),
		newPluginsAddCmd(opts),
		newPluginsRemoveCmd(opts),
		newPluginsRenameCmd(opts),
		newPluginsShowCmd(opts),
		newPluginsConfigureCmd(opts),
	)
	return cmd
}

func newPluginsListCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plugins in dispatch order",
		Long: `List plugins in the order they are stored and dispatched.

A table is printed when stdout is a terminal, JSON otherwise.

Examples:
  dnaconv plugins list
  dnaconv plugins list --json | jq '.[].name'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			rows := make([]pluginRow, 0, rt.controller.Count())
			for i, p := range rt.controller.Plugins() {
				rows = append(rows, rowOf(i, p))
			}

			out := cmd.OutOrStdout()
			if asJSON || !isTerminal(out) {
				return writeJSON(out, rows)
			}
			return writePluginTable(out, rows)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON even on a terminal")
	return cmd
}

func newPluginsAddCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "add KIND",
		Short: "Append a plugin of the given kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			p, err := rt.controller.Add(args[0])
			if err != nil {
				return err
			}
			if err := rt.saveErr(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.Name())
			return nil
		},
	}
}

func newPluginsRemoveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			p, ok := rt.controller.PluginNamed(args[0])
			if !ok || !rt.controller.Remove(p) {
				return fmt.Errorf("plugin %s not found", args[0])
			}
			return rt.saveErr()
		},
	}
}

func newPluginsRenameCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rename NAME NEW",
		Short: "Rename a plugin; the new name gets a numeric suffix if taken",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			p, ok := rt.controller.PluginNamed(args[0])
			if !ok {
				return fmt.Errorf("plugin %s not found", args[0])
			}
			name, err := rt.controller.Rename(p, args[1])
			if err != nil {
				return err
			}
			if err := rt.saveErr(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}

func newPluginsShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Print a plugin's settings as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			p, ok := rt.controller.PluginNamed(args[0])
			if !ok {
				return fmt.Errorf("plugin %s not found", args[0])
			}
			cfg, ok := p.(plugin.Configurable)
			if !ok {
				return nil
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg.Settings()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func newPluginsConfigureCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "configure NAME FILE",
		Short: "Replace a plugin's settings with a YAML file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			p, ok := rt.controller.PluginNamed(args[0])
			if !ok {
				return fmt.Errorf("plugin %s not found", args[0])
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read settings file: %w", err)
			}

			// Try the settings on a fresh plugin so p is untouched on failure.
			fresh, _, err := rt.controller.Kinds().Create(p.Kind(), nil)
			if err != nil {
				return err
			}
			if err := plugin.DecodeSettings(fresh, data); err != nil {
				return err
			}
			if v, ok := fresh.(plugin.Validator); ok && !v.Valid() {
				return fmt.Errorf("invalid settings for %s in %s", p.Name(), args[1])
			}

			if err := plugin.DecodeSettings(p, data); err != nil {
				return err
			}
			if err := rt.controller.Reconfigure(p); err != nil {
				return err
			}
			return rt.saveErr()
		},
	}
}
