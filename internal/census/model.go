package census

import (
	"sort"

	"github.com/twpayne/go-geom"
)

// Tract is one census tract boundary with its identifier.
type Tract struct {
	GEOID string
	Name  string
	Geom  *geom.MultiPolygon
}

// StateFIPS returns the two-digit state portion of the tract GEOID.
func (t Tract) StateFIPS() string {
	if len(t.GEOID) < 2 {
		return ""
	}
	return t.GEOID[:2]
}

// CountyFIPS returns the five-digit state+county portion of the tract GEOID.
func (t Tract) CountyFIPS() string {
	if len(t.GEOID) < 5 {
		return ""
	}
	return t.GEOID[:5]
}

// sortTracts orders tracts by GEOID so loader output is stable.
func sortTracts(tracts []Tract) {
	sort.Slice(tracts, func(i, j int) bool { return tracts[i].GEOID < tracts[j].GEOID })
}
