package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/FranksOps/reliefscope/internal/fingerprint"
	"github.com/FranksOps/reliefscope/internal/scraper"
)

func newScrapeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Save heading or paragraph text from web pages.",
	}

	flags := cmd.PersistentFlags()
	flags.String("data-dir", "", "directory for the filesystem sink")
	flags.String("fingerprint", "", "TLS fingerprint: "+profileNames())
	flags.String("user-agent", "", "User-Agent header")
	flags.Bool("respect-robots", false, "honor robots.txt")
	a.bind("scraper.data_dir", flags.Lookup("data-dir"))
	a.bind("scraper.fingerprint", flags.Lookup("fingerprint"))
	a.bind("scraper.user_agent", flags.Lookup("user-agent"))
	a.bind("scraper.respect_robots", flags.Lookup("respect-robots"))

	cmd.AddCommand(
		newScrapeModeCmd(a, scraper.ModeCSV, "heading_selector", "Save every heading as a row of a one-column CSV."),
		newScrapeModeCmd(a, scraper.ModeTXT, "paragraph_selector", "Save every paragraph as a line of a text file."),
		newScrapeBatchCmd(a),
	)
	return cmd
}

func newScrapeModeCmd(a *app, mode scraper.Mode, selectorKey, short string) *cobra.Command {
	var target, name string
	cmd := &cobra.Command{
		Use:   string(mode) + " [--url " + scraper.DefaultURL + "] [--out name]",
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer history.Close()

			s, err := a.newScraper(cmd.Context(), history)
			if err != nil {
				return err
			}
			out, err := s.Scrape(cmd.Context(), scraper.Job{URL: target, Mode: mode, Name: name})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d items to %s\n", out.Items, out.Location)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "url", scraper.DefaultURL, "page to scrape")
	cmd.Flags().StringVarP(&name, "out", "o", "", "output file name (default "+mode.DefaultName()+")")
	cmd.Flags().String("selector", "", "CSS selector of the elements to extract")
	a.bind("scraper."+selectorKey, cmd.Flags().Lookup("selector"))
	return cmd
}

func newScrapeBatchCmd(a *app) *cobra.Command {
	var urls []string
	cmd := &cobra.Command{
		Use:   "batch [--url U]...",
		Short: "Run the CSV and TXT scrapes for every URL.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer history.Close()

			s, err := a.newScraper(cmd.Context(), history)
			if err != nil {
				return err
			}
			outcomes, err := s.RunBatch(cmd.Context(), scraper.DemoJobs(urls...))
			writeOutcomes(cmd.OutOrStdout(), outcomes)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&urls, "url", []string{scraper.DefaultURL}, "pages to scrape")
	return cmd
}

func writeOutcomes(w io.Writer, outcomes []*scraper.Outcome) {
	tw := prettytable.NewWriter()
	tw.SetStyle(prettytable.StyleRounded)
	tw.SetOutputMirror(w)
	tw.AppendHeader(prettytable.Row{"URL", "Mode", "Status", "Items", "Saved to", "Error"})

	for _, o := range outcomes {
		status := "-"
		if o.StatusCode > 0 {
			status = strconv.Itoa(o.StatusCode)
		}
		errText := ""
		if o.Err != nil {
			errText = o.Err.Error()
		}
		tw.AppendRow(prettytable.Row{o.URL, o.Mode, status, o.Items, o.Location, errText})
	}
	tw.Render()
}

func profileNames() string {
	names := make([]string, len(fingerprint.Profiles))
	for i, p := range fingerprint.Profiles {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
