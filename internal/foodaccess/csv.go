package foodaccess

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/foodatlas-cli/internal/census"
)

// Load reads an atlas file, dispatching on extension. sheet only applies to
// workbooks.
func Load(path, sheet string) ([]Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return LoadXLSX(path, sheet)
	default:
		return LoadCSV(path)
	}
}

// LoadCSV reads atlas records from a CSV file. Every data row yields one
// record; rows without a tract id are skipped and counted. Output is sorted
// by tract id, preserving file order for repeats.
func LoadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "foodaccess: open csv %s", path)
	}
	defer f.Close() //nolint:errcheck

	records, err := ParseCSV(f)
	if err != nil {
		return nil, eris.Wrapf(err, "foodaccess: parse csv %s", path)
	}
	return records, nil
}

// ParseCSV reads atlas records from CSV data.
func ParseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "read header")
	}
	colIdx := mapColumns(header)
	if _, ok := colIdx["censustract"]; !ok {
		return nil, eris.New("no CensusTract column")
	}
	_, hasRural := colIdx["rural"]

	var records []Record
	var skipped int

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read row")
		}

		rec, ok := recordFromRow(row, colIdx, hasRural)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}

	if skipped > 0 {
		zap.L().Warn("foodaccess: skipped rows without tract id", zap.Int("skipped", skipped))
	}

	sortRecords(records)
	return records, nil
}

// recordFromRow maps one data row onto a Record. Numeric fields parse
// leniently (blank or suppressed values become zero); the State column is
// normalized to a USPS code; Rural falls back to the complement of Urban when
// the source has no Rural column.
func recordFromRow(row []string, colIdx map[string]int, hasRural bool) (Record, bool) {
	tract := census.NormalizeTractID(trimQuotes(getCol(row, colIdx, "CensusTract")))
	if tract == "" {
		return Record{}, false
	}

	rec := Record{
		Tract:      tract,
		State:      census.Abbreviation(trimQuotes(getCol(row, colIdx, "State"))),
		County:     trimQuotes(getCol(row, colIdx, "County")),
		Urban:      parseBool01(getCol(row, colIdx, "Urban")),
		Population: parseIntOr(trimQuotes(getCol(row, colIdx, "POP2010")), 0),
		LAPopHalf:  parseFloat64Or(trimQuotes(getCol(row, colIdx, "lapophalf")), 0),
		LAPop10:    parseFloat64Or(trimQuotes(getCol(row, colIdx, "lapop10")), 0),
		LALowIHalf: parseFloat64Or(trimQuotes(getCol(row, colIdx, "lalowihalf")), 0),
		LALowI10:   parseFloat64Or(trimQuotes(getCol(row, colIdx, "lalowi10")), 0),
	}

	if hasRural {
		rec.Rural = parseBool01(getCol(row, colIdx, "Rural"))
	} else {
		rec.Rural = !rec.Urban
	}

	return rec, true
}

// mapColumns builds a case-insensitive column name to index map.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[strings.ToLower(trimQuotes(col))] = i
	}
	return m
}

// getCol gets a column value by name, returning empty string if not found.
func getCol(row []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[strings.ToLower(name)]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// trimQuotes removes surrounding double quotes from a field.
func trimQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

// parseIntOr parses an integer, accepting a spreadsheet float rendering.
func parseIntOr(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return def
}

// parseFloat64Or parses a float, returning def if parsing fails.
func parseFloat64Or(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

// parseBool01 reads the atlas flag encodings: 1/0, true/false, yes/no.
func parseBool01(s string) bool {
	switch strings.ToLower(trimQuotes(s)) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}
