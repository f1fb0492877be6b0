package census

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// tractIDProps are probed in order when the configured id property is absent.
var tractIDProps = []string{"CTIDFP00", "GEOID10", "GEOID"}

var tractNameProps = []string{"NAMELSAD", "NAMELSAD10", "NAMELSAD00", "NAME10", "NAME"}

// LoadGeoJSON reads a FeatureCollection of census tracts. Every well-formed
// feature yields one Tract; features without a usable id property or with a
// non-areal geometry are skipped and counted. idProperty is tried first,
// then the usual TIGER property names. Output is sorted by GEOID.
func LoadGeoJSON(path, idProperty string) ([]Tract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "census: read geojson %s", path)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "census: parse geojson %s", path)
	}

	idProps := tractIDProps
	if idProperty != "" {
		idProps = append([]string{idProperty}, tractIDProps...)
	}

	tracts := make([]Tract, 0, len(fc.Features))
	var skipped int

	for _, f := range fc.Features {
		id, ok := propString(f.Properties, idProps...)
		if !ok {
			skipped++
			continue
		}
		geoid := NormalizeTractID(id)
		if geoid == "" {
			skipped++
			continue
		}

		mp := AsMultiPolygon(f.Geometry)
		if mp == nil {
			skipped++
			continue
		}

		name, _ := propString(f.Properties, tractNameProps...)
		tracts = append(tracts, Tract{GEOID: geoid, Name: name, Geom: mp})
	}

	if skipped > 0 {
		zap.L().Warn("census: skipped geojson features",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	sortTracts(tracts)
	return tracts, nil
}

// AsMultiPolygon promotes areal geometries to a MultiPolygon. Anything else
// returns nil.
func AsMultiPolygon(g geom.T) *geom.MultiPolygon {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(t.Layout()).SetSRID(t.SRID())
		if err := mp.Push(t); err != nil {
			return nil
		}
		return mp
	default:
		return nil
	}
}

// propString returns the first present property as a string. JSON numbers are
// formatted without an exponent so tract ids survive intact.
func propString(props map[string]interface{}, keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := props[key]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			return val, true
		case float64:
			return strconv.FormatFloat(val, 'f', -1, 64), true
		case int:
			return strconv.Itoa(val), true
		case json.Number:
			return val.String(), true
		}
	}
	return "", false
}
