package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/foodatlas-cli/internal/atlas"
	"github.com/sells-group/foodatlas-cli/internal/census"
	"github.com/sells-group/foodatlas-cli/internal/db"
	"github.com/sells-group/foodatlas-cli/internal/foodaccess"
)

// PostgresStore implements Store using pgxpool. Geometries are held as EWKB.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection. These
// are the hot read paths behind render, export, and the API.
var preparedStatements = map[string]string{
	"tract_records": pgTractRecordsSQL,
	"county_stats":  pgCountyStatsSQL,
	"last_run":      pgLastRunSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tracts (
	geoid TEXT PRIMARY KEY,
	name  TEXT NOT NULL DEFAULT '',
	geom  BYTEA
);

CREATE TABLE IF NOT EXISTS food_access (
	tract      TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	county     TEXT NOT NULL,
	urban      BOOLEAN NOT NULL DEFAULT FALSE,
	rural      BOOLEAN NOT NULL DEFAULT FALSE,
	population BIGINT NOT NULL DEFAULT 0,
	lapophalf  DOUBLE PRECISION NOT NULL DEFAULT 0,
	lapop10    DOUBLE PRECISION NOT NULL DEFAULT 0,
	lalowihalf DOUBLE PRECISION NOT NULL DEFAULT 0,
	lalowi10   DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id           TEXT PRIMARY KEY,
	state        TEXT NOT NULL,
	sources      JSONB NOT NULL DEFAULT '[]',
	tract_count  INTEGER NOT NULL DEFAULT 0,
	access_count INTEGER NOT NULL DEFAULT 0,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_food_access_state ON food_access(state);
CREATE INDEX IF NOT EXISTS idx_food_access_state_county ON food_access(state, county);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_started_at ON ingest_runs(started_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var pgTractUpsert = db.UpsertSpec{
	Table:        "tracts",
	Columns:      []string{"geoid", "name", "geom"},
	ConflictKeys: []string{"geoid"},
}

var pgAccessUpsert = db.UpsertSpec{
	Table: "food_access",
	Columns: []string{
		"tract", "state", "county", "urban", "rural",
		"population", "lapophalf", "lapop10", "lalowihalf", "lalowi10",
	},
	ConflictKeys: []string{"tract"},
}

func (s *PostgresStore) UpsertTracts(ctx context.Context, tracts []census.Tract) (int64, error) {
	rows := make([][]any, 0, len(tracts))
	for _, tract := range tracts {
		geomBytes, err := encodeGeomEWKB(tract.Geom)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: tract %s", tract.GEOID)
		}
		rows = append(rows, []any{tract.GEOID, tract.Name, geomBytes})
	}
	return db.BulkUpsert(ctx, s.pool, pgTractUpsert, rows)
}

func (s *PostgresStore) UpsertAccess(ctx context.Context, records []foodaccess.Record) (int64, error) {
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []any{
			rec.Tract, rec.State, rec.County, rec.Urban, rec.Rural,
			rec.Population, rec.LAPopHalf, rec.LAPop10, rec.LALowIHalf, rec.LALowI10,
		})
	}
	return db.BulkUpsert(ctx, s.pool, pgAccessUpsert, rows)
}

func (s *PostgresStore) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE food_access, tracts`)
	return eris.Wrap(err, "postgres: truncate")
}

func (s *PostgresStore) BeginIngestRun(ctx context.Context, state string, sources []string) (*IngestRun, error) {
	run := &IngestRun{
		ID:        uuid.New().String(),
		State:     state,
		Sources:   sources,
		StartedAt: time.Now().UTC(),
	}

	sourcesJSON, err := json.Marshal(run.Sources)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal sources")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO ingest_runs (id, state, sources, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.State, sourcesJSON, run.StartedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert ingest run")
	}
	return run, nil
}

func (s *PostgresStore) FinishIngestRun(ctx context.Context, runID string, tracts, access int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ingest_runs SET tract_count = $1, access_count = $2, finished_at = $3 WHERE id = $4`,
		tracts, access, time.Now().UTC(), runID)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish ingest run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("ingest run not found: %s", runID)
	}
	return nil
}

const pgLastRunSQL = `SELECT id, state, sources, tract_count, access_count, started_at, finished_at FROM ingest_runs ORDER BY started_at DESC, id DESC LIMIT 1`

func (s *PostgresStore) LastIngestRun(ctx context.Context) (*IngestRun, error) {
	var run IngestRun
	var sourcesJSON []byte
	var finished *time.Time

	err := s.pool.QueryRow(ctx, pgLastRunSQL).Scan(
		&run.ID, &run.State, &sourcesJSON,
		&run.TractCount, &run.AccessCount, &run.StartedAt, &finished)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: last ingest run")
	}

	if err := json.Unmarshal(sourcesJSON, &run.Sources); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run sources")
	}
	run.FinishedAt = finished
	return &run, nil
}

const pgTractRecordsSQL = `
SELECT t.geoid, t.name, t.geom,
       fa.tract IS NOT NULL,
       COALESCE(fa.state, ''), COALESCE(fa.county, ''),
       COALESCE(fa.urban, FALSE), COALESCE(fa.rural, FALSE),
       COALESCE(fa.population, 0),
       COALESCE(fa.lapophalf, 0), COALESCE(fa.lapop10, 0),
       COALESCE(fa.lalowihalf, 0), COALESCE(fa.lalowi10, 0)
FROM tracts t
LEFT JOIN food_access fa ON fa.tract = t.geoid AND fa.state = $1
ORDER BY t.geoid`

func (s *PostgresStore) TractRecords(ctx context.Context, state string) ([]atlas.TractRecord, error) {
	rows, err := s.pool.Query(ctx, pgTractRecordsSQL, state)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: tract records")
	}
	defer rows.Close()

	var records []atlas.TractRecord
	for rows.Next() {
		var rec atlas.TractRecord
		var geomBytes []byte
		err := rows.Scan(&rec.GEOID, &rec.Name, &geomBytes,
			&rec.HasData, &rec.State, &rec.County, &rec.Urban, &rec.Rural,
			&rec.Population, &rec.LAPopHalf, &rec.LAPop10, &rec.LALowIHalf, &rec.LALowI10)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan tract record")
		}
		rec.Geom = decodeGeomEWKB(rec.GEOID, geomBytes)
		rec.LowAccess = atlas.LowAccess(rec)
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: tract records iterate")
}

// pgLowAccess mirrors atlas.LowAccess for the county rollup: the urban
// branch wins when both flags are set, and population shares compare as
// lapop >= 0.33 * population to avoid dividing in SQL.
const pgLowAccess = `
	(fa.urban AND (fa.lapophalf >= 500 OR (fa.population > 0 AND fa.lapophalf >= 0.33 * fa.population)))
	OR
	(NOT fa.urban AND fa.rural AND (fa.lapop10 >= 500 OR (fa.population > 0 AND fa.lapop10 >= 0.33 * fa.population)))`

const pgCountyStatsSQL = `
SELECT fa.state, fa.county,
       COUNT(*)::bigint,
       SUM(CASE WHEN ` + pgLowAccess + ` THEN 1 ELSE 0 END)::bigint,
       SUM(fa.population)::bigint,
       SUM(fa.lapophalf), SUM(fa.lapop10), SUM(fa.lalowihalf), SUM(fa.lalowi10)
FROM food_access fa
JOIN tracts t ON t.geoid = fa.tract
WHERE fa.state = $1
GROUP BY fa.state, fa.county
ORDER BY fa.state, fa.county`

func (s *PostgresStore) CountyStats(ctx context.Context, state string) ([]atlas.CountyStats, error) {
	rows, err := s.pool.Query(ctx, pgCountyStatsSQL, state)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: county stats")
	}
	defer rows.Close()

	var counties []atlas.CountyStats
	for rows.Next() {
		var cs atlas.CountyStats
		err := rows.Scan(&cs.State, &cs.County, &cs.Tracts, &cs.LowAccessTracts,
			&cs.Population, &cs.LAPopHalf, &cs.LAPop10, &cs.LALowIHalf, &cs.LALowI10)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan county stats")
		}
		fillRatios(&cs)
		counties = append(counties, cs)
	}
	return counties, eris.Wrap(rows.Err(), "postgres: county stats iterate")
}

func (s *PostgresStore) Status(ctx context.Context) (*Status, error) {
	status := &Status{Driver: "postgres"}

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tracts`).Scan(&status.Tracts); err != nil {
		return nil, eris.Wrap(err, "postgres: count tracts")
	}
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM food_access`).Scan(&status.AccessRows); err != nil {
		return nil, eris.Wrap(err, "postgres: count access rows")
	}

	rows, err := s.pool.Query(ctx, `SELECT DISTINCT state FROM food_access ORDER BY state`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list states")
	}
	defer rows.Close()
	for rows.Next() {
		var state string
		if err := rows.Scan(&state); err != nil {
			return nil, eris.Wrap(err, "postgres: scan state")
		}
		status.States = append(status.States, state)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list states iterate")
	}

	last, err := s.LastIngestRun(ctx)
	if err != nil {
		return nil, err
	}
	status.LastRun = last
	return status, nil
}

func encodeGeomEWKB(mp *geom.MultiPolygon) (any, error) {
	if mp == nil {
		return nil, nil
	}
	data, err := ewkb.Marshal(mp, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "marshal geometry")
	}
	return data, nil
}

func decodeGeomEWKB(geoid string, data []byte) *geom.MultiPolygon {
	if len(data) == 0 {
		return nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		zap.L().Debug("store: unreadable tract geometry",
			zap.String("geoid", geoid),
			zap.Error(err))
		return nil
	}
	return census.AsMultiPolygon(g)
}
