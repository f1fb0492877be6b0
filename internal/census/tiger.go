package census

import "fmt"

const (
	tigerBaseURL = "https://www2.census.gov/geo/tiger"

	// TigerFTPHost mirrors the TIGER/Line tree over anonymous FTP.
	TigerFTPHost = "ftp2.census.gov:21"
)

// TractsURL returns the TIGER/Line tract shapefile URL for a state FIPS code
// and vintage year. The 2000 and 2010 vintages live under the TIGER2010
// release with suffixed filenames; later years use the flat per-year layout.
func TractsURL(year int, stateFIPS string) string {
	return tigerBaseURL + TractsPath(year, stateFIPS)
}

// TractsPath returns the path portion of the tract shapefile location,
// shared by the HTTP and FTP mirrors.
func TractsPath(year int, stateFIPS string) string {
	switch {
	case year <= 2000:
		return fmt.Sprintf("/TIGER2010/TRACT/2000/tl_2010_%s_tract00.zip", stateFIPS)
	case year <= 2010:
		return fmt.Sprintf("/TIGER2010/TRACT/2010/tl_2010_%s_tract10.zip", stateFIPS)
	default:
		return fmt.Sprintf("/TIGER%d/TRACT/tl_%d_%s_tract.zip", year, year, stateFIPS)
	}
}

// TractsFTPPath returns the full path on the census FTP mirror.
func TractsFTPPath(year int, stateFIPS string) string {
	return "/geo/tiger" + TractsPath(year, stateFIPS)
}
