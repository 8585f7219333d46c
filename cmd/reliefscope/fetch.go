package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/FranksOps/reliefscope/internal/pipeline"
	"github.com/FranksOps/reliefscope/internal/reliefweb"
	"github.com/FranksOps/reliefscope/internal/session"
	"github.com/FranksOps/reliefscope/internal/table"
)

type fetchOptions struct {
	query      string
	limit      int
	columns    []string
	supplement string
	format     string
	out        string
}

func newFetchCmd(a *app) *cobra.Command {
	opts := fetchOptions{}
	cmd := &cobra.Command{
		Use:   "fetch [--query projects] [--limit 5] [--columns Title,Country] [--supplement data.csv]",
		Short: "Fetch reports once, merge optional data, and print the selected columns.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.out != "" {
				f, err := os.Create(opts.out)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}
			return a.fetch(cmd.Context(), opts, out, cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.query, "query", "", "search query (default from api.default_query)")
	flags.IntVar(&opts.limit, "limit", session.DefaultLimit, fmt.Sprintf("number of reports, %d-%d", session.MinLimit, session.MaxLimit))
	flags.StringSliceVar(&opts.columns, "columns", slices.Clone(reliefweb.DefaultSelection), "columns to show")
	flags.StringVar(&opts.supplement, "supplement", "", "CSV file with a Title column to merge into the reports")
	flags.StringVar(&opts.format, "format", "table", "output format: table or csv")
	flags.StringVarP(&opts.out, "out", "o", "", "write output to a file instead of stdout")
	return cmd
}

func (o fetchOptions) validate() error {
	if o.limit < session.MinLimit || o.limit > session.MaxLimit {
		return fmt.Errorf("--limit must be between %d and %d, got %d", session.MinLimit, session.MaxLimit, o.limit)
	}
	if o.format != "table" && o.format != "csv" {
		return fmt.Errorf("unknown format %q", o.format)
	}
	return nil
}

func (a *app) fetch(ctx context.Context, opts fetchOptions, out, notices io.Writer) error {
	if opts.query == "" {
		opts.query = a.cfg.API.DefaultQuery
	}

	var sup *table.Table
	if opts.supplement != "" {
		var err error
		if sup, err = readSupplement(opts.supplement); err != nil {
			return err
		}
	}

	history, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	defer history.Close()

	p, err := pipeline.New(pipeline.Config{
		Source:  a.newSource(),
		Backend: history,
		Target:  a.cfg.API.Endpoint,
		Logger:  a.logger,
	})
	if err != nil {
		return err
	}

	res, err := p.Run(ctx, pipeline.Request{
		Query:      opts.query,
		Limit:      opts.limit,
		Supplement: sup,
		Columns:    opts.columns,
	})
	if err != nil {
		return err
	}
	for _, n := range res.Notices {
		fmt.Fprintf(notices, "%s: %s\n", n.Level, n.Text)
	}
	if res.View == nil {
		return nil
	}

	if opts.format == "csv" {
		return res.View.WriteCSV(out)
	}
	writeTable(out, res.View)
	return nil
}

func readSupplement(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open supplement: %w", err)
	}
	defer f.Close()

	t, err := table.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read supplement %s: %w", path, err)
	}
	return t, nil
}

// writeTable renders t for a terminal. Long summaries are wrapped.
func writeTable(w io.Writer, t *table.Table) {
	tw := prettytable.NewWriter()
	tw.SetStyle(prettytable.StyleRounded)
	tw.SetOutputMirror(w)

	header := prettytable.Row{}
	for _, c := range t.Columns() {
		header = append(header, c)
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs([]prettytable.ColumnConfig{
		{Name: reliefweb.ColSummary, WidthMax: 60},
		{Name: reliefweb.ColTitle, WidthMax: 50},
	})

	for _, r := range t.Rows() {
		row := make(prettytable.Row, len(r))
		for i, v := range r {
			row[i] = v
		}
		tw.AppendRow(row)
	}
	tw.Render()
}
