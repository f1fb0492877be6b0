package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/foodatlas-cli/internal/atlas"
	"github.com/sells-group/foodatlas-cli/internal/foodaccess"
)

var (
	runCensusPath string
	runDataPath   string
	runOutDir     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the file-mode pipeline end to end",
	Long: "Loads tract boundaries and food-access data from local files, joins\n" +
		"them, renders every figure, and prints the dataset summary. Nothing\n" +
		"touches the store; use ingest for that.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("pipeline"); err != nil {
			return err
		}

		censusPath := runCensusPath
		if censusPath == "" {
			censusPath = cfg.Data.CensusPath
		}
		dataPath := runDataPath
		if dataPath == "" {
			dataPath = cfg.Data.FoodPath
		}
		if censusPath == "" || dataPath == "" {
			return eris.New("census and food-access paths are required (--census, --data)")
		}
		outDir := runOutDir
		if outDir == "" {
			outDir = cfg.Output.Dir
		}

		tracts, err := loadTracts(censusPath)
		if err != nil {
			return eris.Wrap(err, "load census")
		}
		records, err := foodaccess.Load(dataPath, cfg.Data.FoodSheet)
		if err != nil {
			return eris.Wrap(err, "load food access")
		}
		records = atlas.FilterState(records, cfg.State)

		joined, stats := atlas.Join(tracts, records)
		zap.L().Info("joined sources",
			zap.Int("tracts", stats.Tracts),
			zap.Int("matched", stats.Matched),
			zap.Int("unmatched", stats.Unmatched),
			zap.Int("duplicates", stats.Duplicates),
			zap.Int("orphans", stats.Orphans),
		)

		counties := atlas.RollupCounties(joined)
		summary := atlas.Summarize(cfg.State, joined, stats)

		style, err := loadStyle("")
		if err != nil {
			return err
		}
		paths, err := newRenderer(style, outDir).RenderAll(ctx, joined, counties)
		if err != nil {
			return eris.Wrap(err, "render figures")
		}
		zap.L().Info("figures rendered", zap.Strings("paths", paths))

		formatSummary(os.Stdout, summary)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runCensusPath, "census", "", "tract boundaries (GeoJSON, shapefile, or TIGER zip)")
	runCmd.Flags().StringVar(&runDataPath, "data", "", "food-access data (CSV or XLSX)")
	runCmd.Flags().StringVar(&runOutDir, "out", "", "figure output directory (overrides config)")
	rootCmd.AddCommand(runCmd)
}
