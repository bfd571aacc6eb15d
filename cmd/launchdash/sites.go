package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/launchdash/launches"
)

func newSitesCmd(root *rootOptions) *cobra.Command {
	var dataset, format string
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Print launches, successes and failures per launch site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.setup(cmd, func(c *Config) {
				if dataset != "" {
					c.Dataset = dataset
				}
			})
			if err != nil {
				return err
			}
			ds, err := launches.Load(cfg.Dataset,
				launches.WithTable(cfg.DatasetTable),
				launches.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("load dataset %s: %w", cfg.Dataset, err)
			}
			return writeSitesTable(cmd.OutOrStdout(), ds, format)
		},
	}
	f := cmd.Flags()
	f.StringVar(&dataset, "dataset", "", "CSV or SQLite dataset path (overrides config)")
	f.StringVar(&format, "format", "table", "output format: table, markdown or csv")
	return cmd
}

func writeSitesTable(w io.Writer, ds *launches.Dataset, format string) error {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Site", "Launches", "Successes", "Failures", "Success rate"})

	var total launches.SiteSummary
	for _, s := range ds.Summaries() {
		t.AppendRow(table.Row{s.Site, s.Launches, s.Successes, s.Failures, percent(s.SuccessRate)})
		total.Launches += s.Launches
		total.Successes += s.Successes
		total.Failures += s.Failures
	}
	if total.Launches > 0 {
		total.SuccessRate = float64(total.Successes) / float64(total.Launches)
	}
	t.AppendFooter(table.Row{"Total", total.Launches, total.Successes, total.Failures, percent(total.SuccessRate)})

	cols := make([]table.ColumnConfig, 0, 4)
	for n := 2; n <= 5; n++ {
		cols = append(cols, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignFooter: text.AlignRight})
	}
	t.SetColumnConfigs(cols)

	var out string
	switch format {
	case "table", "":
		t.SetStyle(table.StyleLight)
		out = t.Render()
	case "markdown":
		out = t.RenderMarkdown()
	case "csv":
		out = t.RenderCSV()
	default:
		return fmt.Errorf("unknown format %q (want table, markdown or csv)", format)
	}
	_, err := fmt.Fprintln(w, out)
	return err
}

func percent(r float64) string {
	return fmt.Sprintf("%.1f%%", r*100)
}
