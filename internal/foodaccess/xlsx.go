package foodaccess

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/foodatlas-cli/internal/fetcher"
)

// LoadXLSX reads atlas records from the USDA workbook. The data sheet is
// selected by name, falling back to the first sheet when empty. Row semantics
// match the CSV loader.
func LoadXLSX(path, sheet string) ([]Record, error) {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: sheet})
	if err != nil {
		return nil, eris.Wrapf(err, "foodaccess: read workbook %s", path)
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("foodaccess: workbook %s has no rows", path)
	}

	colIdx := mapColumns(rows[0])
	if _, ok := colIdx["censustract"]; !ok {
		return nil, eris.Errorf("foodaccess: workbook %s has no CensusTract column", path)
	}
	_, hasRural := colIdx["rural"]

	var records []Record
	var skipped int

	for _, row := range rows[1:] {
		rec, ok := recordFromRow(row, colIdx, hasRural)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}

	if skipped > 0 {
		zap.L().Warn("foodaccess: skipped workbook rows without tract id",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	sortRecords(records)
	return records, nil
}
