package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/foodatlas-cli/internal/atlas"
	"github.com/sells-group/foodatlas-cli/internal/census"
	"github.com/sells-group/foodatlas-cli/internal/foodaccess"
)

// SQLiteStore implements Store using modernc.org/sqlite. Geometries are held
// as GeoJSON text.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tracts (
	geoid TEXT PRIMARY KEY,
	name  TEXT NOT NULL DEFAULT '',
	geom  TEXT
);

CREATE TABLE IF NOT EXISTS food_access (
	tract      TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	county     TEXT NOT NULL,
	urban      INTEGER NOT NULL DEFAULT 0,
	rural      INTEGER NOT NULL DEFAULT 0,
	population INTEGER NOT NULL DEFAULT 0,
	lapophalf  REAL NOT NULL DEFAULT 0,
	lapop10    REAL NOT NULL DEFAULT 0,
	lalowihalf REAL NOT NULL DEFAULT 0,
	lalowi10   REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id           TEXT PRIMARY KEY,
	state        TEXT NOT NULL,
	sources      TEXT NOT NULL DEFAULT '[]',
	tract_count  INTEGER NOT NULL DEFAULT 0,
	access_count INTEGER NOT NULL DEFAULT 0,
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_food_access_state ON food_access(state);
CREATE INDEX IF NOT EXISTS idx_food_access_state_county ON food_access(state, county);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_started_at ON ingest_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertTracts(ctx context.Context, tracts []census.Tract) (int64, error) {
	if len(tracts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tracts (geoid, name, geom) VALUES (?, ?, ?)
		 ON CONFLICT(geoid) DO UPDATE SET name = excluded.name, geom = excluded.geom`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare tract upsert")
	}
	defer stmt.Close()

	for _, tract := range tracts {
		geomJSON, err := encodeGeomJSON(tract.Geom)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: tract %s", tract.GEOID)
		}
		if _, err := stmt.ExecContext(ctx, tract.GEOID, tract.Name, geomJSON); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert tract %s", tract.GEOID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit tracts")
	}
	return int64(len(tracts)), nil
}

func (s *SQLiteStore) UpsertAccess(ctx context.Context, records []foodaccess.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO food_access
		   (tract, state, county, urban, rural, population, lapophalf, lapop10, lalowihalf, lalowi10)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(tract) DO UPDATE SET
		   state = excluded.state, county = excluded.county,
		   urban = excluded.urban, rural = excluded.rural,
		   population = excluded.population,
		   lapophalf = excluded.lapophalf, lapop10 = excluded.lapop10,
		   lalowihalf = excluded.lalowihalf, lalowi10 = excluded.lalowi10`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare access upsert")
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			rec.Tract, rec.State, rec.County, rec.Urban, rec.Rural,
			rec.Population, rec.LAPopHalf, rec.LAPop10, rec.LALowIHalf, rec.LALowI10)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert access %s", rec.Tract)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit access")
	}
	return int64(len(records)), nil
}

func (s *SQLiteStore) Truncate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	for _, table := range []string{"food_access", "tracts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return eris.Wrapf(err, "sqlite: truncate %s", table)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit truncate")
}

func (s *SQLiteStore) BeginIngestRun(ctx context.Context, state string, sources []string) (*IngestRun, error) {
	run := &IngestRun{
		ID:        uuid.New().String(),
		State:     state,
		Sources:   sources,
		StartedAt: time.Now().UTC(),
	}

	sourcesJSON, err := json.Marshal(run.Sources)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal sources")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, state, sources, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.State, string(sourcesJSON), run.StartedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert ingest run")
	}
	return run, nil
}

func (s *SQLiteStore) FinishIngestRun(ctx context.Context, runID string, tracts, access int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingest_runs SET tract_count = ?, access_count = ?, finished_at = ? WHERE id = ?`,
		tracts, access, time.Now().UTC(), runID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish ingest run %s", runID)
	}
	return checkRowsAffected(res, "ingest run", runID)
}

func (s *SQLiteStore) LastIngestRun(ctx context.Context) (*IngestRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, state, sources, tract_count, access_count, started_at, finished_at
		 FROM ingest_runs ORDER BY started_at DESC, id DESC LIMIT 1`)

	run, err := scanIngestRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last ingest run")
	}
	return run, nil
}

func (s *SQLiteStore) TractRecords(ctx context.Context, state string) ([]atlas.TractRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.geoid, t.name, t.geom,
		        fa.tract IS NOT NULL,
		        COALESCE(fa.state, ''), COALESCE(fa.county, ''),
		        COALESCE(fa.urban, 0), COALESCE(fa.rural, 0),
		        COALESCE(fa.population, 0),
		        COALESCE(fa.lapophalf, 0), COALESCE(fa.lapop10, 0),
		        COALESCE(fa.lalowihalf, 0), COALESCE(fa.lalowi10, 0)
		 FROM tracts t
		 LEFT JOIN food_access fa ON fa.tract = t.geoid AND fa.state = ?
		 ORDER BY t.geoid`, state)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: tract records")
	}
	defer rows.Close()

	var records []atlas.TractRecord
	for rows.Next() {
		var rec atlas.TractRecord
		var geomJSON []byte
		err := rows.Scan(&rec.GEOID, &rec.Name, &geomJSON,
			&rec.HasData, &rec.State, &rec.County, &rec.Urban, &rec.Rural,
			&rec.Population, &rec.LAPopHalf, &rec.LAPop10, &rec.LALowIHalf, &rec.LALowI10)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tract record")
		}
		rec.Geom = decodeGeomJSON(rec.GEOID, geomJSON)
		rec.LowAccess = atlas.LowAccess(rec)
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: tract records iterate")
}

// sqliteLowAccess mirrors atlas.LowAccess for the county rollup: the urban
// branch wins when both flags are set, and population shares compare as
// lapop >= 0.33 * population to avoid dividing in SQL.
const sqliteLowAccess = `
	(fa.urban != 0 AND (fa.lapophalf >= 500 OR (fa.population > 0 AND fa.lapophalf >= 0.33 * fa.population)))
	OR
	(fa.urban = 0 AND fa.rural != 0 AND (fa.lapop10 >= 500 OR (fa.population > 0 AND fa.lapop10 >= 0.33 * fa.population)))`

func (s *SQLiteStore) CountyStats(ctx context.Context, state string) ([]atlas.CountyStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fa.state, fa.county,
		        COUNT(*),
		        SUM(CASE WHEN `+sqliteLowAccess+` THEN 1 ELSE 0 END),
		        SUM(fa.population),
		        SUM(fa.lapophalf), SUM(fa.lapop10), SUM(fa.lalowihalf), SUM(fa.lalowi10)
		 FROM food_access fa
		 JOIN tracts t ON t.geoid = fa.tract
		 WHERE fa.state = ?
		 GROUP BY fa.state, fa.county
		 ORDER BY fa.state, fa.county`, state)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: county stats")
	}
	defer rows.Close()

	var counties []atlas.CountyStats
	for rows.Next() {
		var cs atlas.CountyStats
		err := rows.Scan(&cs.State, &cs.County, &cs.Tracts, &cs.LowAccessTracts,
			&cs.Population, &cs.LAPopHalf, &cs.LAPop10, &cs.LALowIHalf, &cs.LALowI10)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan county stats")
		}
		fillRatios(&cs)
		counties = append(counties, cs)
	}
	return counties, eris.Wrap(rows.Err(), "sqlite: county stats iterate")
}

func (s *SQLiteStore) Status(ctx context.Context) (*Status, error) {
	status := &Status{Driver: "sqlite"}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracts`).Scan(&status.Tracts); err != nil {
		return nil, eris.Wrap(err, "sqlite: count tracts")
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM food_access`).Scan(&status.AccessRows); err != nil {
		return nil, eris.Wrap(err, "sqlite: count access rows")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT state FROM food_access ORDER BY state`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list states")
	}
	defer rows.Close()
	for rows.Next() {
		var state string
		if err := rows.Scan(&state); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan state")
		}
		status.States = append(status.States, state)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list states iterate")
	}

	last, err := s.LastIngestRun(ctx)
	if err != nil {
		return nil, err
	}
	status.LastRun = last
	return status, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanIngestRun(row scannable) (*IngestRun, error) {
	var run IngestRun
	var sourcesJSON string
	var finished sql.NullTime

	err := row.Scan(&run.ID, &run.State, &sourcesJSON,
		&run.TractCount, &run.AccessCount, &run.StartedAt, &finished)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(sourcesJSON), &run.Sources); err != nil {
		return nil, eris.Wrap(err, "unmarshal run sources")
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func fillRatios(cs *atlas.CountyStats) {
	cs.RatioHalf = atlas.PopRatio(cs.LAPopHalf, cs.Population)
	cs.Ratio10 = atlas.PopRatio(cs.LAPop10, cs.Population)
	cs.RatioLowIHalf = atlas.PopRatio(cs.LALowIHalf, cs.Population)
	cs.RatioLowI10 = atlas.PopRatio(cs.LALowI10, cs.Population)
}

func encodeGeomJSON(mp *geom.MultiPolygon) (any, error) {
	if mp == nil {
		return nil, nil
	}
	data, err := geojson.Marshal(mp)
	if err != nil {
		return nil, eris.Wrap(err, "marshal geometry")
	}
	return string(data), nil
}

func decodeGeomJSON(geoid string, data []byte) *geom.MultiPolygon {
	if len(data) == 0 {
		return nil
	}
	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		zap.L().Debug("store: unreadable tract geometry",
			zap.String("geoid", geoid),
			zap.Error(err))
		return nil
	}
	return census.AsMultiPolygon(g)
}
