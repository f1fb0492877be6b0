package census

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Abbreviation converts a state name to its two-letter USPS code.
// A 2-letter input is returned as-is (uppercased); unknown names come back
// trimmed and uppercased so callers can still compare them.
func Abbreviation(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	upper := strings.ToUpper(s)
	if len(upper) == 2 {
		return upper
	}
	if abbr, ok := stateAbbrs[upper]; ok {
		return abbr
	}
	return upper
}

// StateFIPS resolves a USPS state code to its two-digit FIPS code.
func StateFIPS(code string) (string, error) {
	fips, ok := stateFIPS[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return "", eris.Errorf("census: unknown state code %q", code)
	}
	return fips, nil
}

// StateName returns the full name for a USPS state code, or the code itself
// when unknown.
func StateName(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	for name, abbr := range stateAbbrs {
		if abbr == code {
			return titleCase(name)
		}
	}
	return code
}

// NormalizeTractID cleans a census tract identifier: surrounding whitespace
// and quotes go, a spreadsheet ".0" suffix goes, and all-digit ids shorter
// than 11 characters are zero-padded on the left (CSV round-trips drop the
// leading zero for states with FIPS codes below 10).
func NormalizeTractID(id string) string {
	id = strings.Trim(strings.TrimSpace(id), `"`)
	id = strings.TrimSuffix(id, ".0")
	if id == "" {
		return ""
	}
	if len(id) < 11 && isDigits(id) {
		id = strings.Repeat("0", 11-len(id)) + id
	}
	return id
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if w == "of" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

var stateAbbrs = map[string]string{
	"ALABAMA":              "AL",
	"ALASKA":               "AK",
	"ARIZONA":              "AZ",
	"ARKANSAS":             "AR",
	"CALIFORNIA":           "CA",
	"COLORADO":             "CO",
	"CONNECTICUT":          "CT",
	"DELAWARE":             "DE",
	"FLORIDA":              "FL",
	"GEORGIA":              "GA",
	"HAWAII":               "HI",
	"IDAHO":                "ID",
	"ILLINOIS":             "IL",
	"INDIANA":              "IN",
	"IOWA":                 "IA",
	"KANSAS":               "KS",
	"KENTUCKY":             "KY",
	"LOUISIANA":            "LA",
	"MAINE":                "ME",
	"MARYLAND":             "MD",
	"MASSACHUSETTS":        "MA",
	"MICHIGAN":             "MI",
	"MINNESOTA":            "MN",
	"MISSISSIPPI":          "MS",
	"MISSOURI":             "MO",
	"MONTANA":              "MT",
	"NEBRASKA":             "NE",
	"NEVADA":               "NV",
	"NEW HAMPSHIRE":        "NH",
	"NEW JERSEY":           "NJ",
	"NEW MEXICO":           "NM",
	"NEW YORK":             "NY",
	"NORTH CAROLINA":       "NC",
	"NORTH DAKOTA":         "ND",
	"OHIO":                 "OH",
	"OKLAHOMA":             "OK",
	"OREGON":               "OR",
	"PENNSYLVANIA":         "PA",
	"RHODE ISLAND":         "RI",
	"SOUTH CAROLINA":       "SC",
	"SOUTH DAKOTA":         "SD",
	"TENNESSEE":            "TN",
	"TEXAS":                "TX",
	"UTAH":                 "UT",
	"VERMONT":              "VT",
	"VIRGINIA":             "VA",
	"WASHINGTON":           "WA",
	"WEST VIRGINIA":        "WV",
	"WISCONSIN":            "WI",
	"WYOMING":              "WY",
	"DISTRICT OF COLUMBIA": "DC",
}

var stateFIPS = map[string]string{
	"AL": "01", "AK": "02", "AZ": "04", "AR": "05", "CA": "06",
	"CO": "08", "CT": "09", "DE": "10", "DC": "11", "FL": "12",
	"GA": "13", "HI": "15", "ID": "16", "IL": "17", "IN": "18",
	"IA": "19", "KS": "20", "KY": "21", "LA": "22", "ME": "23",
	"MD": "24", "MA": "25", "MI": "26", "MN": "27", "MS": "28",
	"MO": "29", "MT": "30", "NE": "31", "NV": "32", "NH": "33",
	"NJ": "34", "NM": "35", "NY": "36", "NC": "37", "ND": "38",
	"OH": "39", "OK": "40", "OR": "41", "PA": "42", "RI": "44",
	"SC": "45", "SD": "46", "TN": "47", "TX": "48", "UT": "49",
	"VT": "50", "VA": "51", "WA": "53", "WV": "54", "WI": "55",
	"WY": "56",
}
