package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/foodatlas-cli/internal/report"
)

var (
	exportFormat string
	exportDir    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export joined records from the store to CSV or XLSX",
	Long: "Writes the joined tract records and the county rollup to the output\n" +
		"directory: atlas-tracts.csv and atlas-counties.csv for CSV, or a single\n" +
		"atlas.xlsx workbook with one sheet per table.",
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

		dir := exportDir
		if dir == "" {
			dir = cfg.Output.Dir
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "create output directory")
		}

		switch exportFormat {
		case "csv":
			tractsPath := filepath.Join(dir, "atlas-tracts.csv")
			if err := report.ExportTractsCSV(tractsPath, records); err != nil {
				return eris.Wrap(err, "export tracts")
			}
			countiesPath := filepath.Join(dir, "atlas-counties.csv")
			if err := report.ExportCountiesCSV(countiesPath, counties); err != nil {
				return eris.Wrap(err, "export counties")
			}
			fmt.Println(tractsPath)
			fmt.Println(countiesPath)
		case "xlsx":
			path := filepath.Join(dir, "atlas.xlsx")
			if err := report.ExportXLSX(path, records, counties); err != nil {
				return eris.Wrap(err, "export workbook")
			}
			fmt.Println(path)
		default:
			return eris.Errorf("unsupported export format: %s (use csv or xlsx)", exportFormat)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "export format: csv or xlsx")
	exportCmd.Flags().StringVar(&exportDir, "out", "", "output directory (overrides config)")
	rootCmd.AddCommand(exportCmd)
}
