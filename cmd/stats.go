package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/foodatlas-cli/internal/atlas"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print summary and county statistics from the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, counties, err := readAtlas(ctx, st)
		if err != nil {
			return err
		}
		summary := atlas.Summarize(cfg.State, records, atlas.StatsFromRecords(records))

		if statsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Summary  atlas.Summary       `json:"summary"`
				Counties []atlas.CountyStats `json:"counties"`
			}{summary, counties})
		}

		formatSummary(os.Stdout, summary)
		fmt.Println()
		formatCounties(os.Stdout, counties)
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print machine-readable JSON instead of tables")
	rootCmd.AddCommand(statsCmd)
}

// formatSummary writes the dataset summary to w.
func formatSummary(out io.Writer, s atlas.Summary) {
	p := message.NewPrinter(language.English)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "State:\t%s (%s)\n", s.StateName, s.State)
	_, _ = p.Fprintf(w, "Tracts:\t%d\n", s.Join.Tracts)
	_, _ = p.Fprintf(w, "Matched:\t%d (%.1f%%)\n", s.Join.Matched, s.CoveragePct)
	_, _ = p.Fprintf(w, "Unmatched:\t%d\n", s.Join.Unmatched)
	if s.Join.Duplicates > 0 {
		_, _ = p.Fprintf(w, "Duplicates:\t%d\n", s.Join.Duplicates)
	}
	if s.Join.Orphans > 0 {
		_, _ = p.Fprintf(w, "Orphans:\t%d\n", s.Join.Orphans)
	}
	_, _ = p.Fprintf(w, "Counties:\t%d\n", s.Counties)
	_, _ = p.Fprintf(w, "Population:\t%d\n", s.TotalPopulation)
	_, _ = p.Fprintf(w, "Low-access tracts:\t%d\n", s.LowAccessTracts)
	_, _ = p.Fprintf(w, "Low-access population:\t%d\n", s.LowAccessPopulation)
	_ = w.Flush()
}

// formatCounties writes the per-county table to w.
func formatCounties(out io.Writer, counties []atlas.CountyStats) {
	p := message.NewPrinter(language.English)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COUNTY\tTRACTS\tLOW ACCESS\tPOPULATION\tSHARE 1/2 MI\tSHARE 10 MI")
	_, _ = fmt.Fprintln(w, "------\t------\t----------\t----------\t------------\t-----------")
	for _, c := range counties {
		_, _ = p.Fprintf(w, "%s\t%d\t%d\t%d\t%.1f%%\t%.1f%%\n",
			c.County, c.Tracts, c.LowAccessTracts, c.Population,
			c.RatioHalf*100, c.Ratio10*100,
		)
	}
	_ = w.Flush()
}
