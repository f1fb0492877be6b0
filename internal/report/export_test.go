package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/foodatlas-cli/internal/atlas"
)

func exportRecords() []atlas.TractRecord {
	return []atlas.TractRecord{
		{
			GEOID: "53033000100", Name: "Census Tract 1", HasData: true,
			State: "WA", County: "King", Urban: true, Population: 6145,
			LAPopHalf: 2241.5, LowAccess: true,
		},
		{GEOID: "53035000300"},
	}
}

func exportCounties() []atlas.CountyStats {
	return []atlas.CountyStats{
		{
			State: "WA", County: "King", Tracts: 1, LowAccessTracts: 1,
			Population: 6145, LAPopHalf: 2241.5, RatioHalf: 0.36,
		},
	}
}

func TestExportTractsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracts.csv")
	require.NoError(t, ExportTractsCSV(path, exportRecords()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus one row per record")

	assert.Equal(t, tractColumns, rows[0])
	assert.Equal(t, []string{
		"53033000100", "Census Tract 1", "WA", "King", "true", "false",
		"6145", "2241.5", "0", "0", "0", "true", "true",
	}, rows[1])
	assert.Equal(t, "53035000300", rows[2][0])
	assert.Equal(t, "false", rows[2][12], "unmatched tracts export with has_data false")
}

func TestExportCountiesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counties.csv")
	require.NoError(t, ExportCountiesCSV(path, exportCounties()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, countyColumns, rows[0])
	assert.Equal(t, "King", rows[1][1])
	assert.Equal(t, "6145", rows[1][4])
	assert.Equal(t, "0.36", rows[1][9])
}

func TestExportTractsCSVBadPath(t *testing.T) {
	err := ExportTractsCSV(filepath.Join(t.TempDir(), "missing", "tracts.csv"), exportRecords())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export: create")
}

func TestExportXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atlas.xlsx")
	require.NoError(t, ExportXLSX(path, exportRecords(), exportCounties()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	tracts, ok := f.Sheet["Tracts"]
	require.True(t, ok, "workbook has a Tracts sheet")
	require.Len(t, tracts.Rows, 3)
	assert.Equal(t, "geoid", tracts.Rows[0].Cells[0].String())
	assert.Equal(t, "53033000100", tracts.Rows[1].Cells[0].String())
	assert.Equal(t, "2241.5", tracts.Rows[1].Cells[7].String())

	counties, ok := f.Sheet["Counties"]
	require.True(t, ok, "workbook has a Counties sheet")
	require.Len(t, counties.Rows, 2)
	assert.Equal(t, "King", counties.Rows[1].Cells[1].String())
}
