package atlas

import "sort"

// RollupCounties aggregates matched tract records by (state, county). Output
// is sorted by state then county. Ratios divide each low-access sum by the
// county population, clamped to [0,1]; counties with zero population get 0.
func RollupCounties(records []TractRecord) []CountyStats {
	type key struct{ state, county string }

	byCounty := make(map[key]*CountyStats)
	for _, rec := range records {
		if !rec.HasData {
			continue
		}
		k := key{rec.State, rec.County}
		cs, ok := byCounty[k]
		if !ok {
			cs = &CountyStats{State: rec.State, County: rec.County}
			byCounty[k] = cs
		}
		cs.Tracts++
		if rec.LowAccess {
			cs.LowAccessTracts++
		}
		cs.Population += int64(rec.Population)
		cs.LAPopHalf += rec.LAPopHalf
		cs.LAPop10 += rec.LAPop10
		cs.LALowIHalf += rec.LALowIHalf
		cs.LALowI10 += rec.LALowI10
	}

	out := make([]CountyStats, 0, len(byCounty))
	for _, cs := range byCounty {
		cs.RatioHalf = PopRatio(cs.LAPopHalf, cs.Population)
		cs.Ratio10 = PopRatio(cs.LAPop10, cs.Population)
		cs.RatioLowIHalf = PopRatio(cs.LALowIHalf, cs.Population)
		cs.RatioLowI10 = PopRatio(cs.LALowI10, cs.Population)
		out = append(out, *cs)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].State != out[j].State {
			return out[i].State < out[j].State
		}
		return out[i].County < out[j].County
	})

	return out
}

// PopRatio is the share of population covered by sum, clamped to [0, 1] and
// zero when the population is unknown.
func PopRatio(sum float64, population int64) float64 {
	if population <= 0 {
		return 0
	}
	r := sum / float64(population)
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}
