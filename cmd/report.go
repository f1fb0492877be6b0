package main

import (
	"fmt"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/foodatlas-cli/internal/atlas"
	"github.com/sells-group/foodatlas-cli/internal/report"
)

var reportOut string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the HTML chart report from the store",
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

		out := reportOut
		if out == "" {
			out = filepath.Join(cfg.Output.Dir, "atlas-report.html")
		}
		if err := report.WriteHTML(out, summary, counties); err != nil {
			return eris.Wrap(err, "write report")
		}

		fmt.Println(out)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportOut, "out", "", "report path (default atlas-report.html in the output directory)")
	rootCmd.AddCommand(reportCmd)
}
