// Package atlas joins census tract boundaries with food-access records and
// derives the metrics the figures and reports are built from.
package atlas

import (
	"github.com/twpayne/go-geom"
)

// TractRecord is one census tract joined with its atlas attributes. Tracts
// without a matching access record are retained with HasData false and
// zero-valued metrics.
type TractRecord struct {
	GEOID      string             `json:"geoid"`
	Name       string             `json:"name,omitempty"`
	Geom       *geom.MultiPolygon `json:"-"`
	HasData    bool               `json:"has_data"`
	State      string             `json:"state,omitempty"`
	County     string             `json:"county,omitempty"`
	Urban      bool               `json:"urban"`
	Rural      bool               `json:"rural"`
	Population int                `json:"population"`
	LAPopHalf  float64            `json:"lapophalf"`
	LAPop10    float64            `json:"lapop10"`
	LALowIHalf float64            `json:"lalowihalf"`
	LALowI10   float64            `json:"lalowi10"`
	LowAccess  bool               `json:"low_access"`
}

// JoinStats summarizes one join pass.
type JoinStats struct {
	Tracts     int `json:"tracts"`
	Matched    int `json:"matched"`
	Unmatched  int `json:"unmatched"`
	Duplicates int `json:"duplicates"`
	Orphans    int `json:"orphans"`
}

// Coverage is the percentage of tracts with a matching access record.
func (s JoinStats) Coverage() float64 {
	if s.Tracts == 0 {
		return 0
	}
	return float64(s.Matched) / float64(s.Tracts) * 100
}

// CountyStats is the per-county rollup of matched tract records.
type CountyStats struct {
	State           string  `json:"state"`
	County          string  `json:"county"`
	Tracts          int     `json:"tracts"`
	LowAccessTracts int     `json:"low_access_tracts"`
	Population      int64   `json:"population"`
	LAPopHalf       float64 `json:"lapophalf"`
	LAPop10         float64 `json:"lapop10"`
	LALowIHalf      float64 `json:"lalowihalf"`
	LALowI10        float64 `json:"lalowi10"`
	RatioHalf       float64 `json:"ratio_half"`
	Ratio10         float64 `json:"ratio_10"`
	RatioLowIHalf   float64 `json:"ratio_lowi_half"`
	RatioLowI10     float64 `json:"ratio_lowi_10"`
}

// Summary is the dataset-level view printed by stats and served by the API.
type Summary struct {
	State               string    `json:"state"`
	StateName           string    `json:"state_name"`
	Join                JoinStats `json:"join"`
	CoveragePct         float64   `json:"coverage_pct"`
	TotalPopulation     int64     `json:"total_population"`
	LowAccessTracts     int       `json:"low_access_tracts"`
	LowAccessPopulation int64     `json:"low_access_population"`
	Counties            int       `json:"counties"`
}
