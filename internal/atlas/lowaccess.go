package atlas

// A tract is low access when enough of its population lives beyond the
// distance threshold for its setting: half a mile for urban tracts, ten
// miles for rural ones.
const (
	lowAccessMinPeople = 500
	lowAccessMinShare  = 0.33
)

// LowAccess classifies one joined tract record.
func LowAccess(rec TractRecord) bool {
	switch {
	case rec.Urban:
		return qualifiesLowAccess(rec.LAPopHalf, rec.Population)
	case rec.Rural:
		return qualifiesLowAccess(rec.LAPop10, rec.Population)
	default:
		return false
	}
}

func qualifiesLowAccess(lowAccessPop float64, population int) bool {
	if lowAccessPop >= lowAccessMinPeople {
		return true
	}
	if population <= 0 {
		return false
	}
	return lowAccessPop/float64(population) >= lowAccessMinShare
}
