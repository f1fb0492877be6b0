// Package foodaccess loads the USDA Food Access Research Atlas dataset.
package foodaccess

import "sort"

// DefaultAtlasURL is the published 2019 Food Access Research Atlas workbook.
const DefaultAtlasURL = "https://www.ers.usda.gov/webdocs/DataFiles/80591/FoodAccessResearchAtlasData2019.xlsx"

// Record is one census tract row from the atlas.
type Record struct {
	Tract      string
	State      string
	County     string
	Urban      bool
	Rural      bool
	Population int
	LAPopHalf  float64
	LAPop10    float64
	LALowIHalf float64
	LALowI10   float64
}

// sortRecords orders records by tract id. The sort is stable so the file
// order of repeated tract ids survives for first-wins joining.
func sortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].Tract < records[j].Tract })
}

// Dedupe keeps the first record per tract id, preserving order, and reports
// how many repeats were dropped. Store upserts require unique tract keys.
func Dedupe(records []Record) ([]Record, int) {
	seen := make(map[string]bool, len(records))
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if seen[rec.Tract] {
			continue
		}
		seen[rec.Tract] = true
		out = append(out, rec)
	}
	return out, len(records) - len(out)
}
