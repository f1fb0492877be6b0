package atlas

import (
	"github.com/sells-group/foodatlas-cli/internal/census"
)

// Summarize builds the dataset-level summary from joined records.
func Summarize(state string, records []TractRecord, stats JoinStats) Summary {
	s := Summary{
		State:       state,
		StateName:   census.StateName(state),
		Join:        stats,
		CoveragePct: stats.Coverage(),
	}

	counties := make(map[string]struct{})
	for _, rec := range records {
		if !rec.HasData {
			continue
		}
		s.TotalPopulation += int64(rec.Population)
		counties[rec.State+"/"+rec.County] = struct{}{}
		if rec.LowAccess {
			s.LowAccessTracts++
			s.LowAccessPopulation += int64(rec.Population)
		}
	}
	s.Counties = len(counties)

	return s
}
