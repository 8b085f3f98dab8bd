package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dnaconverter/internal/converter"
	"dnaconverter/internal/store"
	"dnaconverter/pkg/plugin"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

type kindRow struct {
	Kind        string `json:"kind"`
	DefaultName string `json:"defaultName"`
	Order       int    `json:"order"`
	Description string `json:"description,omitempty"`
}

func newKindsCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "kinds",
		Short: "List the plugin kinds that can be added",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := plugin.List()
			rows := make([]kindRow, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, kindRow{
					Kind:        info.Kind,
					DefaultName: info.DefaultName,
					Order:       info.Order,
					Description: info.Description,
				})
			}

			out := cmd.OutOrStdout()
			if asJSON || !isTerminal(out) {
				return writeJSON(out, rows)
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "KIND\tNAME\tDESCRIPTION")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Kind, r.DefaultName, r.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON even on a terminal")
	return cmd
}

func newNamesCmd(opts *options) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "names",
		Short: "Print the DNA names the plugins read, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			for _, name := range rt.controller.UsedNames(refresh) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "rebuild the name index first")
	return cmd
}

// parseAssignments turns name=value pairs into DNA values.
func parseAssignments(pairs []string) (map[string]float64, error) {
	values := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name=value, got %q", pair)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("value of %s: %w", name, err)
		}
		values[name] = v
	}
	return values, nil
}

func newApplyCmd(opts *options) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Run both passes against DNA values and print the outputs",
		Long: `Run the pre-pass and standard plugins against the asset's default DNA,
with --set overriding individual values, and print the outputs as JSON.

Examples:
  dnaconv apply
  dnaconv apply --set height=0.9 --set weight=0.2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(sets)
			if err != nil {
				return err
			}

			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.dna.SetMany(values); err != nil {
				return err
			}
			working := rt.dna.Snapshot()
			actx := plugin.NewApplyContext(working, rt.dna.Asset().NameHash(), rt.logger)
			if err := rt.controller.Apply(cmd.Context(), actx); err != nil {
				return fmt.Errorf("apply failed: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"outputs": actx.Outputs,
				"dna":     working,
			})
		},
	}
	cmd.Flags().StringArrayVarP(&sets, "set", "s", nil, "override a DNA value, name=value (repeatable)")
	return cmd
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the saved plugins and drop the ones that are broken",
		Long: `Rebuild the saved plugins, report any that cannot be restored, drop
invalid plugins and fix duplicate names. Fixes are saved unless --read-only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			problems := multierr.Errors(rt.restoreErr)
			for _, problem := range problems {
				fmt.Fprintf(out, "skipped: %v\n", problem)
			}

			before := rt.controller.Count()
			rt.controller.Validate()
			dropped := before - rt.controller.Count()
			if dropped > 0 {
				fmt.Fprintf(out, "dropped %d invalid plugin(s)\n", dropped)
			}

			// Restore already skipped broken records and renamed duplicates
			// without saving; write the result back if it differs.
			pending, err := store.Pending(cmd.Context(), rt.store, rt.controller)
			if err != nil {
				return err
			}
			if pending {
				rt.autosave.NotifyChanged(rt.controller, converter.Change{
					Type:  converter.ChangeValidated,
					Count: rt.controller.Count(),
				})
				if !rt.cfg.ReadOnly {
					fmt.Fprintln(out, "store rewritten")
				}
			}
			if err := rt.saveErr(); err != nil {
				return err
			}

			fmt.Fprintf(out, "%d plugin(s) ok\n", rt.controller.Count())
			if len(problems) > 0 || dropped > 0 {
				return errors.New("validation found problems")
			}
			return nil
		},
	}
}
