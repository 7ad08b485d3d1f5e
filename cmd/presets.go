package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/zymmr/filter"
	"github.com/s0up4200/zymmr/zymmr"
)

var (
	presetFilters []string
	presetAll     bool
)

// presetsCmd lists the filter presets from the config file
var presetsCmd = &cobra.Command{
	Use:     "presets",
	Aliases: []string{"preset"},
	Short:   "List filter presets",
	Long: `List the filter presets defined under "filters" in the config file.

Presets are used with "zymmr list --preset <name>" or counted against a
DocType with "zymmr presets match".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := make(zymmr.DocumentList, 0, len(filterManager.ListFilters()))
		for _, name := range filterManager.ListFilters() {
			f, _ := filterManager.GetFilter(name)
			rows = append(rows, zymmr.Document{"preset": name, "expression": f.Expression()})
		}

		printer, err := newPrinter([]string{"preset", "expression"})
		if err != nil {
			return err
		}
		return printer.PrintList(rows)
	},
}

var presetsMatchCmd = &cobra.Command{
	Use:   "match <doctype> [preset...]",
	Short: "Count the documents each preset matches",
	Long: `Fetch documents of a DocType once and evaluate presets against them
concurrently. Without preset names every preset is evaluated.`,
	Example: `  zymmr presets match "Work Item" --filter project=ZMR --all
  zymmr presets match "Work Item" stale unassigned`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		doctype, names := args[0], args[1:]

		filters, err := parseFilters(presetFilters)
		if err != nil {
			return err
		}

		opts := zymmr.ListOptions{Filters: filters}
		var docs zymmr.DocumentList
		if presetAll {
			docs, err = client.ListAll(ctx, doctype, opts)
		} else {
			docs, err = client.List(ctx, doctype, opts)
		}
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", doctype, err)
		}

		rows, err := matchPresets(ctx, filterManager, docs, names)
		if err != nil {
			return err
		}

		logger.Debug().Str("doctype", doctype).Int("documents", len(docs)).Int("presets", len(rows)).Msg("Evaluated presets")

		printer, err := newPrinter([]string{"preset", "matches", "expression"})
		if err != nil {
			return err
		}
		return printer.PrintList(rows)
	},
}

func init() {
	presetsMatchCmd.Flags().StringArrayVarP(&presetFilters, "filter", "f", nil, "server-side filter, field=value or field:operator:value (repeatable)")
	presetsMatchCmd.Flags().BoolVarP(&presetAll, "all", "a", false, "fetch every matching document page by page")

	presetsCmd.AddCommand(presetsMatchCmd)
	rootCmd.AddCommand(presetsCmd)
}

// matchPresets evaluates the named presets, or all of them when names is
// empty, and returns one row per preset ordered by name.
func matchPresets(ctx context.Context, m *filter.Manager, docs zymmr.DocumentList, names []string) (zymmr.DocumentList, error) {
	var (
		results map[string][]filter.Record
		err     error
	)
	if len(names) == 0 {
		names = m.ListFilters()
		results, err = m.EvaluateAll(ctx, docs.Records())
	} else {
		lower := make([]string, len(names))
		for i, n := range names {
			lower[i] = strings.ToLower(n)
		}
		slices.Sort(lower)
		names = slices.Compact(lower)
		results, err = m.EvaluateSelected(ctx, names, docs.Records())
	}
	if err != nil {
		return nil, err
	}

	// results has no entry for a preset when there were no documents
	rows := make(zymmr.DocumentList, 0, len(names))
	for _, name := range names {
		f, _ := m.GetFilter(name)
		rows = append(rows, zymmr.Document{
			"preset":     name,
			"matches":    len(results[name]),
			"expression": f.Expression(),
		})
	}
	return rows, nil
}
