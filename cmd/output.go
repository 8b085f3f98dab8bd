package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"dnaconverter/pkg/plugin"

	"golang.org/x/term"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func termWidth(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok {
		return 0, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 0, false
	}
	return width, true
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func trunc(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

// pluginRow is how plugins are listed by the CLI.
type pluginRow struct {
	Index    int              `json:"index"`
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Kind     string           `json:"kind"`
	Pass     plugin.ApplyPass `json:"pass"`
	DNANames []string         `json:"dnaNames"`
}

func rowOf(i int, p plugin.Plugin) pluginRow {
	names := make([]string, 0)
	for name := range p.IndexesForDNANames() {
		names = append(names, name)
	}
	sort.Strings(names)
	return pluginRow{Index: i, ID: p.ID(), Name: p.Name(), Kind: p.Kind(), Pass: p.ApplyPass(), DNANames: names}
}

func writePluginTable(w io.Writer, rows []pluginRow) error {
	namesWidth := 0
	if width, ok := termWidth(w); ok {
		namesWidth = max(20, width-60)
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "#\tNAME\tKIND\tPASS\tDNA")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			r.Index, r.Name, r.Kind, r.Pass, trunc(strings.Join(r.DNANames, ","), namesWidth))
	}
	return tw.Flush()
}
