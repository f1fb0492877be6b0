package atlas

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/foodatlas-cli/internal/census"
	"github.com/sells-group/foodatlas-cli/internal/foodaccess"
)

// FilterState keeps the access records for one USPS state code.
func FilterState(records []foodaccess.Record, state string) []foodaccess.Record {
	out := make([]foodaccess.Record, 0, len(records))
	for _, rec := range records {
		if rec.State == state {
			out = append(out, rec)
		}
	}
	return out
}

// Join left-joins tracts with access records on the tract id. Every tract
// appears exactly once in the output, ordered by GEOID. When the access data
// repeats a tract id the first record wins and the repeat is counted; access
// rows matching no tract are counted as orphans.
func Join(tracts []census.Tract, records []foodaccess.Record) ([]TractRecord, JoinStats) {
	stats := JoinStats{Tracts: len(tracts)}

	tractIDs := make(map[string]struct{}, len(tracts))
	for _, t := range tracts {
		tractIDs[t.GEOID] = struct{}{}
	}

	byTract := make(map[string]foodaccess.Record, len(records))
	for _, rec := range records {
		if _, ok := tractIDs[rec.Tract]; !ok {
			stats.Orphans++
			continue
		}
		if _, ok := byTract[rec.Tract]; ok {
			stats.Duplicates++
			continue
		}
		byTract[rec.Tract] = rec
	}

	out := make([]TractRecord, 0, len(tracts))
	for _, t := range tracts {
		tr := TractRecord{GEOID: t.GEOID, Name: t.Name, Geom: t.Geom}
		if rec, ok := byTract[t.GEOID]; ok {
			tr.HasData = true
			tr.State = rec.State
			tr.County = rec.County
			tr.Urban = rec.Urban
			tr.Rural = rec.Rural
			tr.Population = rec.Population
			tr.LAPopHalf = rec.LAPopHalf
			tr.LAPop10 = rec.LAPop10
			tr.LALowIHalf = rec.LALowIHalf
			tr.LALowI10 = rec.LALowI10
			tr.LowAccess = LowAccess(tr)
			stats.Matched++
		}
		out = append(out, tr)
	}
	stats.Unmatched = stats.Tracts - stats.Matched

	sort.SliceStable(out, func(i, j int) bool { return out[i].GEOID < out[j].GEOID })

	if stats.Duplicates > 0 || stats.Orphans > 0 {
		zap.L().Debug("atlas: join skipped records",
			zap.Int("duplicates", stats.Duplicates),
			zap.Int("orphans", stats.Orphans),
		)
	}

	return out, stats
}

// StatsFromRecords rebuilds JoinStats from already-joined records, for when
// the join ran at ingest time and only its output survives in the store.
// Duplicates and orphans were consumed by the ingest and report as zero.
func StatsFromRecords(records []TractRecord) JoinStats {
	stats := JoinStats{Tracts: len(records)}
	for _, rec := range records {
		if rec.HasData {
			stats.Matched++
		}
	}
	stats.Unmatched = stats.Tracts - stats.Matched
	return stats
}
