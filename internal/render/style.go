// Package render draws choropleth figures from joined tract records using
// gonum/plot.
package render

import (
	"fmt"
	"image/color"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gopkg.in/yaml.v3"
)

// Style holds figure colors and dimensions. The defaults reproduce the
// original atlas figures: a pale grey underlay, a darker grey for the state
// layer, and a blue highlight for low-access tracts.
type Style struct {
	WidthIn     float64 `yaml:"width_in"`
	HeightIn    float64 `yaml:"height_in"`
	Palette     string  `yaml:"palette"`
	BaseFill    string  `yaml:"base_fill"`
	StateFill   string  `yaml:"state_fill"`
	Highlight   string  `yaml:"highlight"`
	Stroke      string  `yaml:"stroke"`
	StrokeWidth float64 `yaml:"stroke_width_pt"`
}

// DefaultStyle returns the stock figure style.
func DefaultStyle() Style {
	return Style{
		WidthIn:     10,
		HeightIn:    8,
		Palette:     "kindlmann",
		BaseFill:    "#EEEEEE",
		StateFill:   "#AAAAAA",
		Highlight:   "#1F77B4",
		Stroke:      "#555555",
		StrokeWidth: 0.25,
	}
}

// LoadStyle reads a YAML style file over the defaults. An empty path returns
// the defaults unchanged.
func LoadStyle(path string) (Style, error) {
	style := DefaultStyle()
	if path == "" {
		return style, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return style, eris.Wrapf(err, "render: read style %s", path)
	}
	if err := yaml.Unmarshal(data, &style); err != nil {
		return style, eris.Wrapf(err, "render: parse style %s", path)
	}
	return style, nil
}

// ColorMap resolves the configured palette name.
func (s Style) ColorMap() (palette.ColorMap, error) {
	switch strings.ToLower(s.Palette) {
	case "", "kindlmann":
		return moreland.Kindlmann(), nil
	case "extended-kindlmann":
		return moreland.ExtendedKindlmann(), nil
	case "blackbody":
		return moreland.BlackBody(), nil
	case "blue-red":
		return moreland.SmoothBlueRed(), nil
	default:
		return nil, eris.Errorf("render: unknown palette %q", s.Palette)
	}
}

func (s Style) baseFill() color.Color    { return hexColorOr(s.BaseFill, color.Gray{Y: 0xEE}) }
func (s Style) stateFill() color.Color   { return hexColorOr(s.StateFill, color.Gray{Y: 0xAA}) }
func (s Style) highlight() color.Color   { return hexColorOr(s.Highlight, color.RGBA{R: 0x1F, G: 0x77, B: 0xB4, A: 0xFF}) }
func (s Style) strokeColor() color.Color { return hexColorOr(s.Stroke, color.Gray{Y: 0x55}) }

func hexColorOr(s string, def color.Color) color.Color {
	c, err := ParseHexColor(s)
	if err != nil {
		return def
	}
	return c
}

// ParseHexColor parses #RGB and #RRGGBB colors.
func ParseHexColor(s string) (color.Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	var r, g, b uint8
	switch len(s) {
	case 3:
		if _, err := fmt.Sscanf(s, "%1x%1x%1x", &r, &g, &b); err != nil {
			return nil, eris.Wrapf(err, "render: parse color %q", s)
		}
		r, g, b = r*17, g*17, b*17
	case 6:
		if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
			return nil, eris.Wrapf(err, "render: parse color %q", s)
		}
	default:
		return nil, eris.Errorf("render: parse color %q", s)
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}, nil
}
