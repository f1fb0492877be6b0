package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/foodatlas-cli/internal/atlas"
	"github.com/sells-group/foodatlas-cli/internal/census"
	"github.com/sells-group/foodatlas-cli/internal/foodaccess"
)

var _ Store = (*SQLiteStore)(nil)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func squareAt(t *testing.T, x, y float64) *geom.MultiPolygon {
	t.Helper()
	ring := geom.NewLinearRingFlat(geom.XY, []float64{x, y, x + 0.1, y, x + 0.1, y + 0.1, x, y + 0.1, x, y})
	poly := geom.NewPolygon(geom.XY)
	require.NoError(t, poly.Push(ring))
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(poly))
	return mp
}

// Two Washington counties plus one Oregon tract, so state filtering is
// visible. Metric values use binary fractions so SQL sums compare exactly.
func testTracts(t *testing.T) []census.Tract {
	t.Helper()
	return []census.Tract{
		{GEOID: "41005000100", Name: "Census Tract 1, Clackamas County", Geom: squareAt(t, -122.6, 45.4)},
		{GEOID: "53033000100", Name: "Census Tract 1, King County", Geom: squareAt(t, -122.3, 47.6)},
		{GEOID: "53033000200", Name: "Census Tract 2, King County"},
		{GEOID: "53035000300", Name: "Census Tract 3, Kitsap County", Geom: squareAt(t, -122.6, 47.5)},
	}
}

func testAccess() []foodaccess.Record {
	return []foodaccess.Record{
		{Tract: "41005000100", State: "OR", County: "Clackamas", Urban: true, Population: 5200, LAPopHalf: 700.5},
		{Tract: "53033000100", State: "WA", County: "King", Urban: true, Population: 6145, LAPopHalf: 2241.5, LAPop10: 100.25, LALowIHalf: 900.5, LALowI10: 50.25},
		{Tract: "53033000200", State: "WA", County: "King", Urban: true, Population: 3800, LAPopHalf: 120.5, LAPop10: 60.25, LALowIHalf: 80.5, LALowI10: 40.25},
		{Tract: "53035000300", State: "WA", County: "Kitsap", Rural: true, Population: 1422, LAPop10: 890.25, LALowI10: 310.5},
	}
}

func seedAtlas(t *testing.T, st *SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	n, err := st.UpsertTracts(ctx, testTracts(t))
	require.NoError(t, err)
	require.EqualValues(t, 4, n)
	n, err = st.UpsertAccess(ctx, testAccess())
	require.NoError(t, err)
	require.EqualValues(t, 4, n)
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

// --- Upserts ---

func TestSQLite_UpsertTracts_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.UpsertTracts(ctx, testTracts(t))
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	records, err := st.TractRecords(ctx, "WA")
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, "41005000100", records[0].GEOID)
	assert.Equal(t, "53033000100", records[1].GEOID)
	assert.Equal(t, "53033000200", records[2].GEOID)
	assert.Equal(t, "53035000300", records[3].GEOID)

	require.NotNil(t, records[1].Geom)
	b := records[1].Geom.Bounds()
	assert.InDelta(t, -122.3, b.Min(0), 1e-9)
	assert.InDelta(t, 47.7, b.Max(1), 1e-9)
	assert.Nil(t, records[2].Geom)
}

func TestSQLite_UpsertTracts_LastWins(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertTracts(ctx, testTracts(t))
	require.NoError(t, err)
	_, err = st.UpsertTracts(ctx, []census.Tract{{GEOID: "53033000200", Name: "Renamed Tract"}})
	require.NoError(t, err)

	records, err := st.TractRecords(ctx, "WA")
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "Renamed Tract", records[2].Name)

	status, err := st.Status(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, status.Tracts)
}

func TestSQLite_UpsertAccess_LastWins(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedAtlas(t, st)

	updated := testAccess()[1]
	updated.Population = 7000
	n, err := st.UpsertAccess(ctx, []foodaccess.Record{updated})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	records, err := st.TractRecords(ctx, "WA")
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, 7000, records[1].Population)

	status, err := st.Status(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, status.AccessRows)
}

// --- Joined reads ---

func TestSQLite_TractRecords_Join(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedAtlas(t, st)

	records, err := st.TractRecords(context.Background(), "WA")
	require.NoError(t, err)
	require.Len(t, records, 4)

	// The Oregon access row must not join into a Washington read.
	assert.False(t, records[0].HasData)
	assert.Zero(t, records[0].Population)

	assert.True(t, records[1].HasData)
	assert.Equal(t, "WA", records[1].State)
	assert.Equal(t, "King", records[1].County)
	assert.True(t, records[1].Urban)
	assert.Equal(t, 6145, records[1].Population)
	assert.Equal(t, 2241.5, records[1].LAPopHalf)
	assert.True(t, records[1].LowAccess)

	assert.True(t, records[2].HasData)
	assert.False(t, records[2].LowAccess)

	assert.True(t, records[3].HasData)
	assert.True(t, records[3].Rural)
	assert.True(t, records[3].LowAccess)
}

func TestSQLite_TractRecords_StateFilter(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedAtlas(t, st)

	records, err := st.TractRecords(context.Background(), "OR")
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.True(t, records[0].HasData)
	assert.False(t, records[1].HasData)
	assert.False(t, records[2].HasData)
	assert.False(t, records[3].HasData)
}

func TestSQLite_CountyStats_MatchesRollup(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedAtlas(t, st)
	ctx := context.Background()

	records, err := st.TractRecords(ctx, "WA")
	require.NoError(t, err)

	counties, err := st.CountyStats(ctx, "WA")
	require.NoError(t, err)
	assert.Equal(t, atlas.RollupCounties(records), counties)
}

func TestSQLite_CountyStats_Values(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedAtlas(t, st)

	counties, err := st.CountyStats(context.Background(), "WA")
	require.NoError(t, err)
	require.Len(t, counties, 2)

	king := counties[0]
	assert.Equal(t, "WA", king.State)
	assert.Equal(t, "King", king.County)
	assert.Equal(t, 2, king.Tracts)
	assert.Equal(t, 1, king.LowAccessTracts)
	assert.EqualValues(t, 9945, king.Population)
	assert.Equal(t, 2362.0, king.LAPopHalf)
	assert.Equal(t, 2362.0/9945.0, king.RatioHalf)

	kitsap := counties[1]
	assert.Equal(t, "Kitsap", kitsap.County)
	assert.Equal(t, 1, kitsap.Tracts)
	assert.Equal(t, 1, kitsap.LowAccessTracts)
	assert.Equal(t, 890.25/1422.0, kitsap.Ratio10)
}

// --- Ingest runs ---

func TestSQLite_IngestRun_Lifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.BeginIngestRun(ctx, "WA", []string{"tiger", "usda"})
	require.NoError(t, err)
	_, err = uuid.Parse(run.ID)
	require.NoError(t, err)

	got, err := st.LastIngestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "WA", got.State)
	assert.Equal(t, []string{"tiger", "usda"}, got.Sources)
	assert.Nil(t, got.FinishedAt)
	assert.WithinDuration(t, run.StartedAt, got.StartedAt, time.Second)

	require.NoError(t, st.FinishIngestRun(ctx, run.ID, 4, 4))

	got, err = st.LastIngestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 4, got.TractCount)
	assert.Equal(t, 4, got.AccessCount)
	require.NotNil(t, got.FinishedAt)
	assert.False(t, got.FinishedAt.Before(got.StartedAt))
}

func TestSQLite_LastIngestRun_ReturnsLatest(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.BeginIngestRun(ctx, "WA", nil)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := st.BeginIngestRun(ctx, "OR", nil)
	require.NoError(t, err)

	got, err := st.LastIngestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, "OR", got.State)
}

func TestSQLite_FinishIngestRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.FinishIngestRun(context.Background(), "no-such-run", 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest run not found")
}

func TestSQLite_LastIngestRun_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	run, err := st.LastIngestRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run)
}

// --- Status and truncate ---

func TestSQLite_Status(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedAtlas(t, st)

	status, err := st.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", status.Driver)
	assert.EqualValues(t, 4, status.Tracts)
	assert.EqualValues(t, 4, status.AccessRows)
	assert.Equal(t, []string{"OR", "WA"}, status.States)
	assert.Nil(t, status.LastRun)
}

func TestSQLite_Truncate_KeepsRunHistory(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedAtlas(t, st)

	run, err := st.BeginIngestRun(ctx, "WA", []string{"usda"})
	require.NoError(t, err)
	require.NoError(t, st.FinishIngestRun(ctx, run.ID, 4, 4))

	require.NoError(t, st.Truncate(ctx))

	status, err := st.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.Tracts)
	assert.Zero(t, status.AccessRows)
	assert.Empty(t, status.States)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, run.ID, status.LastRun.ID)
}
