package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/foodatlas-cli/internal/census"
	"github.com/sells-group/foodatlas-cli/internal/fetcher"
)

// defaultFoodURL is the USDA ERS Food Access Research Atlas workbook.
const defaultFoodURL = "https://www.ers.usda.gov/webdocs/DataFiles/80591/FoodAccessResearchAtlasData2019.xlsx"

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the TIGER shapefile and the USDA atlas workbook",
	Long: "Downloads the tract shapefile archive for the configured state and year\n" +
		"from the census bureau, and the food-access workbook from USDA ERS, into\n" +
		"the data directory. The TIGER download falls back to the census FTP\n" +
		"mirror when the HTTP host fails.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		fips, err := census.StateFIPS(cfg.State)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
			return eris.Wrap(err, "create data directory")
		}

		httpf := newHTTPFetcher()

		tigerURL := cfg.Data.CensusURL
		if tigerURL == "" {
			tigerURL = census.TractsURL(cfg.Data.CensusYear, fips)
		}
		tigerDest := filepath.Join(cfg.Data.Dir, filepath.Base(tigerURL))

		foodURL := cfg.Data.FoodURL
		if foodURL == "" {
			foodURL = defaultFoodURL
		}
		foodDest := filepath.Join(cfg.Data.Dir, filepath.Base(foodURL))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(2)

		g.Go(func() error {
			if err := fetchTiger(gctx, httpf, tigerURL, fips, tigerDest); err != nil {
				return eris.Wrap(err, "fetch tiger")
			}
			return nil
		})
		g.Go(func() error {
			if _, err := httpf.DownloadToFile(gctx, foodURL, foodDest); err != nil {
				return eris.Wrap(err, "fetch food access")
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("sources downloaded",
			zap.String("census", tigerDest),
			zap.String("food", foodDest),
		)
		fmt.Printf("Downloaded:\n  %s\n  %s\n", tigerDest, foodDest)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

// fetchTiger downloads the tract archive over HTTP, falling back to the FTP
// mirror when enabled.
func fetchTiger(ctx context.Context, httpf *fetcher.HTTPFetcher, url, fips, dest string) error {
	_, err := httpf.DownloadToFile(ctx, url, dest)
	if err == nil {
		return nil
	}
	if !cfg.Fetch.FTPFallback {
		return err
	}

	zap.L().Warn("http download failed, trying the ftp mirror", zap.Error(err))
	ftpf := fetcher.NewFTPFetcher(fetcher.FTPOptions{
		Timeout: time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
	})
	ftpURL := "ftp://" + census.TigerFTPHost + census.TractsFTPPath(cfg.Data.CensusYear, fips)
	if _, ferr := ftpf.DownloadToFile(ctx, ftpURL, dest); ferr != nil {
		return eris.Wrap(ferr, "ftp fallback")
	}
	return nil
}
