package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/FranksOps/reliefscope/internal/report"
	"github.com/FranksOps/reliefscope/internal/storage"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		format string
		filter storage.Filter
	)
	cmd := &cobra.Command{
		Use:   "history [--format text|json|html] [--kind fetch]",
		Short: "Summarize recorded fetch and scrape runs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.historyEnabled() {
				return errors.New("run history is disabled (history.type is none)")
			}
			history, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer history.Close()

			runs, err := history.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return writeSummary(cmd.OutOrStdout(), format, report.GenerateSummary(runs))
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json or html")
	cmd.Flags().StringVar(&filter.Kind, "kind", "", "only runs of this kind: fetch, scrape_csv, scrape_txt")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "only the most recent N runs (0 = all)")
	return cmd
}

func writeSummary(w io.Writer, format string, s report.Summary) error {
	switch format {
	case "text":
		return report.WriteText(w, s)
	case "json":
		return report.WriteJSON(w, s)
	case "html":
		return report.WriteHTML(w, s)
	}
	return fmt.Errorf("unknown format %q", format)
}
