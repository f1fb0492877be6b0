package render

import (
	"image/color"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/sells-group/foodatlas-cli/internal/atlas"
)

// layer is one stack of tracts: either a flat fill, or per-tract values
// colored through a color map.
type layer struct {
	records []atlas.TractRecord
	fill    color.Color
	values  []float64
	scale   Scale
	cmap    palette.ColorMap
}

// Choropleth stacks tract layers onto one plot. Layers draw in the order
// they were added, so underlays go in first.
type Choropleth struct {
	Title string

	style  Style
	layers []layer
	barMap palette.ColorMap
}

func NewChoropleth(style Style, title string) *Choropleth {
	return &Choropleth{Title: title, style: style}
}

// Flat adds a layer where every tract shares one fill color.
func (c *Choropleth) Flat(records []atlas.TractRecord, fill color.Color) {
	c.layers = append(c.layers, layer{records: records, fill: fill})
}

// Values adds a layer colored by values through the style's palette. values
// must align index for index with records. When showBar is set the figure
// gets a horizontal color bar for this layer's scale.
func (c *Choropleth) Values(records []atlas.TractRecord, values []float64, scale Scale, showBar bool) error {
	if len(values) != len(records) {
		return eris.Errorf("render: %d values for %d tracts", len(values), len(records))
	}

	cm, err := c.style.ColorMap()
	if err != nil {
		return err
	}
	scale.Apply(cm)

	c.layers = append(c.layers, layer{records: records, values: values, scale: scale, cmap: cm})
	if showBar {
		c.barMap = cm
	}
	return nil
}

// Draw renders the stacked layers onto dc.
func (c *Choropleth) Draw(dc draw.Canvas) error {
	p := plot.New()
	p.Title.Text = c.Title
	p.HideAxes()
	p.X.Padding, p.Y.Padding = 0, 0

	b, ok := c.bounds()
	if !ok {
		return eris.New("render: no geometry to draw")
	}

	for _, l := range c.layers {
		if err := addTractPolygons(p, l, c.style); err != nil {
			return err
		}
	}

	mapArea := dc
	if c.barMap != nil {
		barH := vg.Inch / 3
		gap := vg.Inch / 10
		mapArea = draw.Crop(dc, 0, 0, barH+gap, 0)

		inset := vg.Inch / 2
		total := dc.Max.Y - dc.Min.Y
		drawColorBar(draw.Crop(dc, inset, -inset, 0, barH-total), c.barMap)
	}

	fitBounds(p, b, aspectOf(mapArea))
	p.Draw(mapArea)
	return nil
}

func drawColorBar(dc draw.Canvas, cm palette.ColorMap) {
	p := plot.New()
	p.HideY()
	p.X.Padding = 0
	p.Add(&plotter.ColorBar{ColorMap: cm})
	p.Draw(dc)
}

func addTractPolygons(p *plot.Plot, l layer, style Style) error {
	stroke := draw.LineStyle{Color: style.strokeColor(), Width: vg.Points(style.StrokeWidth)}

	for i, rec := range l.records {
		if rec.Geom == nil {
			continue
		}

		fill := l.fill
		if l.values != nil {
			fill = l.scale.Color(l.cmap, l.values[i])
		}

		for pi := 0; pi < rec.Geom.NumPolygons(); pi++ {
			poly, err := tractPolygon(rec.Geom.Polygon(pi))
			if err != nil {
				return eris.Wrapf(err, "render: tract %s", rec.GEOID)
			}
			if poly == nil {
				continue
			}
			poly.Color = fill
			poly.LineStyle = stroke
			p.Add(poly)
		}
	}
	return nil
}

// tractPolygon converts one polygon's rings for plotting; rings past the
// first become holes. Rings with fewer than three points are dropped.
func tractPolygon(g *geom.Polygon) (*plotter.Polygon, error) {
	rings := make([]plotter.XYer, 0, g.NumLinearRings())
	for ri := 0; ri < g.NumLinearRings(); ri++ {
		coords := g.LinearRing(ri).Coords()
		if len(coords) < 3 {
			continue
		}
		xys := make(plotter.XYs, len(coords))
		for k, coord := range coords {
			xys[k].X = coord.X()
			xys[k].Y = coord.Y()
		}
		rings = append(rings, xys)
	}
	if len(rings) == 0 {
		return nil, nil
	}
	return plotter.NewPolygon(rings...)
}

type bounds struct {
	minX, minY, maxX, maxY float64
}

func (c *Choropleth) bounds() (bounds, bool) {
	b := bounds{minX: math.Inf(1), minY: math.Inf(1), maxX: math.Inf(-1), maxY: math.Inf(-1)}
	found := false
	for _, l := range c.layers {
		for _, rec := range l.records {
			if rec.Geom == nil || rec.Geom.NumPolygons() == 0 {
				continue
			}
			gb := rec.Geom.Bounds()
			b.minX = math.Min(b.minX, gb.Min(0))
			b.minY = math.Min(b.minY, gb.Min(1))
			b.maxX = math.Max(b.maxX, gb.Max(0))
			b.maxY = math.Max(b.maxY, gb.Max(1))
			found = true
		}
	}
	return b, found
}

// fitBounds sets the plot ranges so the data fills the canvas without
// stretching, correcting longitude spans for latitude.
func fitBounds(p *plot.Plot, b bounds, aspect float64) {
	w := b.maxX - b.minX
	h := b.maxY - b.minY
	if w <= 0 {
		w = 1e-6
	}
	if h <= 0 {
		h = 1e-6
	}

	b.minX, b.maxX = b.minX-w*0.02, b.maxX+w*0.02
	b.minY, b.maxY = b.minY-h*0.02, b.maxY+h*0.02
	w, h = b.maxX-b.minX, b.maxY-b.minY

	cosLat := math.Cos((b.minY + b.maxY) / 2 * math.Pi / 180)
	if cosLat < 0.1 {
		cosLat = 0.1
	}
	if aspect <= 0 {
		aspect = 1
	}

	if w*cosLat < aspect*h {
		pad := (aspect*h/cosLat - w) / 2
		b.minX, b.maxX = b.minX-pad, b.maxX+pad
	} else {
		pad := (w*cosLat/aspect - h) / 2
		b.minY, b.maxY = b.minY-pad, b.maxY+pad
	}

	p.X.Min, p.X.Max = b.minX, b.maxX
	p.Y.Min, p.Y.Max = b.minY, b.maxY
}

func aspectOf(dc draw.Canvas) float64 {
	w := dc.Max.X - dc.Min.X
	h := dc.Max.Y - dc.Min.Y
	if h <= 0 {
		return 1
	}
	return float64(w / h)
}
