package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/docmap/internal/cli/ui"
	"github.com/conduit-lang/docmap/internal/engine"
)

const operationsMetric = "docmap_engine_operations_total"

func newStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, s *session) error {
				out := cmd.OutOrStdout()
				stats, err := s.conn.Stats(ctx)
				if errors.Is(err, engine.ErrUnsupported) {
					_, _, warning := a.palette()
					warning.Fprintln(out, "⚠ This database does not report statistics")
					return nil
				}
				if err != nil {
					return err
				}

				keys := make([]string, 0, len(stats))
				for k := range stats {
					keys = append(keys, k)
				}
				sort.Strings(keys)

				kv := ui.NewKeyValueTable(out, a.noColor)
				for _, k := range keys {
					kv.AddRow(k, fmt.Sprint(stats[k]))
				}
				kv.Render()
				return nil
			})
		},
	}
}

// renderOperations prints the engine operation counters gathered during a
// command
func renderOperations(out io.Writer, reg prometheus.Gatherer, noColor bool) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}

	table := ui.NewTable(out, noColor, "COLLECTION", "OPERATION", "RESULT", "COUNT")
	for _, mf := range families {
		if mf.GetName() != operationsMetric {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			table.AddRow(labels["collection"], labels["operation"], labels["result"],
				fmt.Sprintf("%.0f", m.GetCounter().GetValue()))
		}
	}
	if table.Len() == 0 {
		return nil
	}
	fmt.Fprintln(out)
	table.Render()
	return nil
}
