package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScaleLinear(t *testing.T) {
	s := NewScale("linear", []float64{4, 2, 10})
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 10.0, s.Max)

	assert.Equal(t, 5.0, s.Value(5))
	assert.Equal(t, 2.0, s.Value(-3), "values below the range clamp to the minimum")
	assert.Equal(t, 10.0, s.Value(99), "values above the range clamp to the maximum")
}

func TestNewScaleConstantValues(t *testing.T) {
	s := NewScale("linear", []float64{7, 7, 7})
	assert.Equal(t, 7.0, s.Min)
	assert.Equal(t, 8.0, s.Max)
}

func TestNewScaleEmpty(t *testing.T) {
	s := NewScale("linear", nil)
	assert.Equal(t, 0.0, s.Min)
	assert.Equal(t, 1.0, s.Max)
}

func TestNewScaleQuantile(t *testing.T) {
	s := NewScale("quantile", []float64{1, 2, 3, 4})
	assert.Equal(t, 0.0, s.Min)
	assert.Equal(t, 1.0, s.Max)

	assert.InDelta(t, 0.5, s.Value(2), 1e-9)
	assert.InDelta(t, 0.75, s.Value(3), 1e-9)
	assert.InDelta(t, 1.0, s.Value(4), 1e-9)
	assert.InDelta(t, 0.0, s.Value(0.5), 1e-9)
}

func TestFixedLinear(t *testing.T) {
	s := FixedLinear(0, 1)
	assert.Equal(t, 0.0, s.Min)
	assert.Equal(t, 1.0, s.Max)
	assert.Equal(t, 0.25, s.Value(0.25))

	s = FixedLinear(2, 2)
	assert.Equal(t, 3.0, s.Max, "degenerate ranges widen so the color map stays valid")
}

func TestScaleColor(t *testing.T) {
	cm, err := Style{Palette: "kindlmann"}.ColorMap()
	require.NoError(t, err)

	s := FixedLinear(0, 1)
	s.Apply(cm)

	low := s.Color(cm, 0)
	high := s.Color(cm, 1)
	assert.NotEqual(t, low, high)
	assert.Equal(t, high, s.Color(cm, 5), "out of range resolves to the clamped endpoint")
}
