// Package store persists tract boundaries and food-access records behind a
// driver-neutral interface, with SQLite and Postgres implementations.
package store

import (
	"context"
	"time"

	"github.com/sells-group/foodatlas-cli/internal/atlas"
	"github.com/sells-group/foodatlas-cli/internal/census"
	"github.com/sells-group/foodatlas-cli/internal/foodaccess"
)

// IngestRun is one provenance row per ingest invocation.
type IngestRun struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	Sources     []string   `json:"sources,omitempty"`
	TractCount  int        `json:"tract_count"`
	AccessCount int        `json:"access_count"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Status reports store contents for the status command and the API.
type Status struct {
	Driver     string     `json:"driver"`
	Tracts     int64      `json:"tracts"`
	AccessRows int64      `json:"access_rows"`
	States     []string   `json:"states,omitempty"`
	LastRun    *IngestRun `json:"last_run,omitempty"`
}

// Store is the persistence interface shared by the SQLite and Postgres
// drivers. Access records passed to UpsertAccess must be unique by tract id;
// run them through foodaccess.Dedupe first.
type Store interface {
	Migrate(ctx context.Context) error

	UpsertTracts(ctx context.Context, tracts []census.Tract) (int64, error)
	UpsertAccess(ctx context.Context, records []foodaccess.Record) (int64, error)
	Truncate(ctx context.Context) error

	BeginIngestRun(ctx context.Context, state string, sources []string) (*IngestRun, error)
	FinishIngestRun(ctx context.Context, runID string, tracts, access int) error
	LastIngestRun(ctx context.Context) (*IngestRun, error)

	// TractRecords left-joins every stored tract with its access record for
	// the given state, ordered by geoid. CountyStats rolls matched records
	// up per county, ordered by state then county.
	TractRecords(ctx context.Context, state string) ([]atlas.TractRecord, error)
	CountyStats(ctx context.Context, state string) ([]atlas.CountyStats, error)
	Status(ctx context.Context) (*Status, error)

	Close() error
}
