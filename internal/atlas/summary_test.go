package atlas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	records := []TractRecord{
		{GEOID: "53033000100", HasData: true, State: "WA", County: "King", Population: 6000, LowAccess: true},
		{GEOID: "53033000200", HasData: true, State: "WA", County: "King", Population: 4000},
		{GEOID: "53035000300", HasData: true, State: "WA", County: "Kitsap", Population: 2000, LowAccess: true},
		{GEOID: "53037000400"},
	}
	stats := JoinStats{Tracts: 4, Matched: 3, Unmatched: 1}

	s := Summarize("WA", records, stats)

	assert.Equal(t, "WA", s.State)
	assert.Equal(t, "Washington", s.StateName)
	assert.Equal(t, stats, s.Join)
	assert.InDelta(t, 75.0, s.CoveragePct, 0.001)
	assert.Equal(t, int64(12000), s.TotalPopulation)
	assert.Equal(t, 2, s.LowAccessTracts)
	assert.Equal(t, int64(8000), s.LowAccessPopulation)
	assert.Equal(t, 2, s.Counties)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize("WA", nil, JoinStats{})
	assert.Zero(t, s.CoveragePct)
	assert.Zero(t, s.TotalPopulation)
	assert.Zero(t, s.Counties)
}
