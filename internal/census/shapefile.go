package census

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// LoadShapefile reads a TIGER/Line census tract shapefile. The tract id and
// name attributes are located by probing the vintage-specific field names.
// Records without an id or with an empty geometry are skipped and counted.
// Output is sorted by GEOID.
func LoadShapefile(path string) ([]Tract, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "census: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	idIdx, ok := findField(fieldIdx, tractIDProps...)
	if !ok {
		return nil, eris.Errorf("census: no tract id field in %s", path)
	}
	nameIdx, hasName := findField(fieldIdx, tractNameProps...)

	var tracts []Tract
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		geoid := NormalizeTractID(attr(reader, idIdx))
		if geoid == "" {
			skipped++
			continue
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}

		var name string
		if hasName {
			name = attr(reader, nameIdx)
		}

		tracts = append(tracts, Tract{GEOID: geoid, Name: name, Geom: mp})
	}

	if skipped > 0 {
		zap.L().Warn("census: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	sortTracts(tracts)
	return tracts, nil
}

func findField(fieldIdx map[string]int, names ...string) (int, bool) {
	for _, name := range names {
		if idx, ok := fieldIdx[strings.ToLower(name)]; ok {
			return idx, true
		}
	}
	return 0, false
}

func attr(reader *shp.Reader, idx int) string {
	return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("census: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}

		if err := mp.Push(poly); err != nil {
			zap.L().Debug("census: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
