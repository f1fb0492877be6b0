package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/foodatlas-cli/internal/atlas"
	"github.com/sells-group/foodatlas-cli/internal/census"
	"github.com/sells-group/foodatlas-cli/internal/fetcher"
	"github.com/sells-group/foodatlas-cli/internal/render"
	"github.com/sells-group/foodatlas-cli/internal/store"
)

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "foodatlas.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens the store and brings the schema up to date.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newHTTPFetcher builds the HTTP fetcher from fetch config. A configured
// rate replaces the per-host defaults for every known host.
func newHTTPFetcher() *fetcher.HTTPFetcher {
	limiters := fetcher.DefaultRateLimiters()
	if cfg.Fetch.RatePerSec > 0 {
		for host := range limiters {
			limiters[host] = rate.NewLimiter(rate.Limit(cfg.Fetch.RatePerSec), cfg.Fetch.Burst)
		}
	}
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.Fetch.Retries,
		RateLimiters: limiters,
	})
}

// loadTracts reads tract boundaries from GeoJSON, a bare shapefile, or a
// TIGER zip archive, dispatching on the file extension.
func loadTracts(path string) ([]census.Tract, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return census.LoadGeoJSON(path, cfg.Data.CensusIDProperty)
	case ".shp":
		return census.LoadShapefile(path)
	case ".zip":
		dir, err := os.MkdirTemp("", "foodatlas-tiger-*")
		if err != nil {
			return nil, eris.Wrap(err, "create temp directory")
		}
		defer os.RemoveAll(dir) //nolint:errcheck

		if _, err := fetcher.ExtractZIP(path, dir); err != nil {
			return nil, err
		}
		shpPath, err := fetcher.FindByExt(dir, ".shp")
		if err != nil {
			return nil, err
		}
		return census.LoadShapefile(shpPath)
	default:
		return nil, eris.Errorf("unsupported census format: %s", path)
	}
}

// readAtlas reads the joined records and county rollup for the configured
// state.
func readAtlas(ctx context.Context, st store.Store) ([]atlas.TractRecord, []atlas.CountyStats, error) {
	records, err := st.TractRecords(ctx, cfg.State)
	if err != nil {
		return nil, nil, eris.Wrap(err, "read tract records")
	}
	counties, err := st.CountyStats(ctx, cfg.State)
	if err != nil {
		return nil, nil, eris.Wrap(err, "read county stats")
	}
	return records, counties, nil
}

// loadStyle reads the YAML style at path, or the configured style path, or
// the defaults. The config palette applies only when no style file is set.
func loadStyle(path string) (render.Style, error) {
	if path == "" {
		path = cfg.Render.StylePath
	}
	style, err := render.LoadStyle(path)
	if err != nil {
		return style, err
	}
	if path == "" && cfg.Render.Palette != "" {
		style.Palette = cfg.Render.Palette
	}
	return style, nil
}

// newRenderer builds a figure renderer writing to outDir.
func newRenderer(style render.Style, outDir string) *render.Renderer {
	return &render.Renderer{
		Style:     style,
		OutDir:    outDir,
		Format:    cfg.Output.Format,
		DPI:       cfg.Output.DPI,
		ScaleMode: cfg.Render.Scale,
		State:     cfg.State,
		Workers:   cfg.Render.Workers,
	}
}

// splitAndTrim splits a comma-separated flag value into trimmed parts.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
