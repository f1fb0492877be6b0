package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/foodatlas-cli/internal/atlas"
	"github.com/sells-group/foodatlas-cli/internal/foodaccess"
)

var (
	ingestCensusPath string
	ingestDataPath   string
	ingestTruncate   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Parse sources and load them into the store",
	Long: "Parses the tract boundaries and food-access data, deduplicates access\n" +
		"rows, and upserts everything into the store under one ingest run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		censusPath := ingestCensusPath
		if censusPath == "" {
			censusPath = cfg.Data.CensusPath
		}
		dataPath := ingestDataPath
		if dataPath == "" {
			dataPath = cfg.Data.FoodPath
		}
		if censusPath == "" || dataPath == "" {
			return eris.New("census and food-access paths are required (--census, --data)")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if ingestTruncate {
			if err := st.Truncate(ctx); err != nil {
				return eris.Wrap(err, "truncate store")
			}
			zap.L().Info("store truncated")
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

		deduped, dupes := foodaccess.Dedupe(records)
		if dupes > 0 {
			zap.L().Warn("dropped duplicate access records", zap.Int("duplicates", dupes))
		}

		run, err := st.BeginIngestRun(ctx, cfg.State, []string{censusPath, dataPath})
		if err != nil {
			return eris.Wrap(err, "begin ingest run")
		}

		nTracts, err := st.UpsertTracts(ctx, tracts)
		if err != nil {
			return eris.Wrap(err, "upsert tracts")
		}
		nAccess, err := st.UpsertAccess(ctx, deduped)
		if err != nil {
			return eris.Wrap(err, "upsert access")
		}

		if err := st.FinishIngestRun(ctx, run.ID, int(nTracts), int(nAccess)); err != nil {
			return eris.Wrap(err, "finish ingest run")
		}

		zap.L().Info("ingest complete",
			zap.String("run_id", run.ID),
			zap.Int64("tracts", nTracts),
			zap.Int64("access_rows", nAccess),
			zap.Int("duplicates", dupes),
		)
		fmt.Printf("Ingested %d tracts and %d access rows (run %s)\n", nTracts, nAccess, run.ID)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCensusPath, "census", "", "tract boundaries (GeoJSON, shapefile, or TIGER zip)")
	ingestCmd.Flags().StringVar(&ingestDataPath, "data", "", "food-access data (CSV or XLSX)")
	ingestCmd.Flags().BoolVar(&ingestTruncate, "truncate", false, "clear tract and access tables before loading")
	rootCmd.AddCommand(ingestCmd)
}
