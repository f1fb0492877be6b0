package render

import (
	"image/color"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot/palette"
)

// Scale maps metric values into a color map's domain. Linear scales span the
// observed (or fixed) range; quantile scales rank each value against the
// distribution so skewed metrics still use the whole palette.
type Scale struct {
	Mode string
	Min  float64
	Max  float64

	sorted []float64
}

// NewScale fits a scale to the observed values.
func NewScale(mode string, values []float64) Scale {
	s := Scale{Mode: mode}

	if len(values) == 0 {
		s.Max = 1
		return s
	}

	s.sorted = append([]float64(nil), values...)
	sort.Float64s(s.sorted)
	s.Min = s.sorted[0]
	s.Max = s.sorted[len(s.sorted)-1]
	if s.Max <= s.Min {
		s.Max = s.Min + 1
	}

	if s.Mode == "quantile" {
		// The color map domain is the rank fraction.
		s.Min, s.Max = 0, 1
	}
	return s
}

// FixedLinear returns a linear scale over a fixed range, for metrics with a
// natural domain such as ratios.
func FixedLinear(min, max float64) Scale {
	if max <= min {
		max = min + 1
	}
	return Scale{Mode: "linear", Min: min, Max: max}
}

// Apply configures the color map's domain to match the scale.
func (s Scale) Apply(cm palette.ColorMap) {
	cm.SetMin(s.Min)
	cm.SetMax(s.Max)
}

// Value transforms a metric value into the color map domain.
func (s Scale) Value(v float64) float64 {
	if s.Mode == "quantile" && len(s.sorted) > 0 {
		return stat.CDF(v, stat.Empirical, s.sorted, nil)
	}
	if v < s.Min {
		return s.Min
	}
	if v > s.Max {
		return s.Max
	}
	return v
}

// Color looks up the color for a value, falling back to an opaque grey when
// the map cannot resolve it.
func (s Scale) Color(cm palette.ColorMap, v float64) color.Color {
	c, err := cm.At(s.Value(v))
	if err != nil {
		return color.Gray{Y: 0x80}
	}
	return c
}
