package report

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/foodatlas-cli/internal/atlas"
)

// tractColumns defines the ordered tract export columns.
var tractColumns = []string{
	"geoid",
	"name",
	"state",
	"county",
	"urban",
	"rural",
	"population",
	"lapophalf",
	"lapop10",
	"lalowihalf",
	"lalowi10",
	"low_access",
	"has_data",
}

// countyColumns defines the ordered county rollup columns.
var countyColumns = []string{
	"state",
	"county",
	"tracts",
	"low_access_tracts",
	"population",
	"lapophalf",
	"lapop10",
	"lalowihalf",
	"lalowi10",
	"ratio_half",
	"ratio_10",
	"ratio_lowi_half",
	"ratio_lowi_10",
}

// ExportTractsCSV writes joined tract records as a CSV file.
func ExportTractsCSV(path string, records []atlas.TractRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(tractColumns); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, rec := range records {
		if err := w.Write(tractRow(rec)); err != nil {
			return eris.Wrapf(err, "export: write tract %s", rec.GEOID)
		}
	}

	w.Flush()
	return eris.Wrap(w.Error(), "export: flush")
}

// ExportCountiesCSV writes the county rollup as a CSV file.
func ExportCountiesCSV(path string, counties []atlas.CountyStats) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(countyColumns); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, c := range counties {
		if err := w.Write(countyRow(c)); err != nil {
			return eris.Wrapf(err, "export: write county %s %s", c.State, c.County)
		}
	}

	w.Flush()
	return eris.Wrap(w.Error(), "export: flush")
}

// ExportXLSX writes one workbook with Tracts and Counties sheets.
func ExportXLSX(path string, records []atlas.TractRecord, counties []atlas.CountyStats) error {
	file := xlsx.NewFile()

	tracts, err := file.AddSheet("Tracts")
	if err != nil {
		return eris.Wrap(err, "export: add tracts sheet")
	}
	writeSheetRow(tracts, tractColumns)
	for _, rec := range records {
		writeSheetRow(tracts, tractRow(rec))
	}

	countySheet, err := file.AddSheet("Counties")
	if err != nil {
		return eris.Wrap(err, "export: add counties sheet")
	}
	writeSheetRow(countySheet, countyColumns)
	for _, c := range counties {
		writeSheetRow(countySheet, countyRow(c))
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func writeSheetRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().Value = v
	}
}

func tractRow(rec atlas.TractRecord) []string {
	return []string{
		rec.GEOID,
		rec.Name,
		rec.State,
		rec.County,
		strconv.FormatBool(rec.Urban),
		strconv.FormatBool(rec.Rural),
		strconv.Itoa(rec.Population),
		formatFloat(rec.LAPopHalf),
		formatFloat(rec.LAPop10),
		formatFloat(rec.LALowIHalf),
		formatFloat(rec.LALowI10),
		strconv.FormatBool(rec.LowAccess),
		strconv.FormatBool(rec.HasData),
	}
}

func countyRow(c atlas.CountyStats) []string {
	return []string{
		c.State,
		c.County,
		strconv.Itoa(c.Tracts),
		strconv.Itoa(c.LowAccessTracts),
		strconv.FormatInt(c.Population, 10),
		formatFloat(c.LAPopHalf),
		formatFloat(c.LAPop10),
		formatFloat(c.LALowIHalf),
		formatFloat(c.LALowI10),
		formatFloat(c.RatioHalf),
		formatFloat(c.Ratio10),
		formatFloat(c.RatioLowIHalf),
		formatFloat(c.RatioLowI10),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
