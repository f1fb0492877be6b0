package render

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot/vg/draw"

	"github.com/sells-group/foodatlas-cli/internal/atlas"
	"github.com/sells-group/foodatlas-cli/internal/census"
)

// Figure names. Each becomes <name>.<format> under the output directory.
const (
	FigureMap              = "map"
	FigurePopulation       = "population_map"
	FigureCountyPopulation = "county_population_map"
	FigureCountyFoodAccess = "county_food_access"
	FigureLowAccess        = "low_access"
)

// Figures lists every figure in render order.
func Figures() []string {
	return []string{
		FigureMap,
		FigurePopulation,
		FigureCountyPopulation,
		FigureCountyFoodAccess,
		FigureLowAccess,
	}
}

// Renderer draws atlas figures into an output directory.
type Renderer struct {
	Style     Style
	OutDir    string
	Format    string // png or svg
	DPI       int
	ScaleMode string // linear or quantile
	State     string // USPS code used in figure titles
	Workers   int
}

// Render draws one figure and returns the written path.
func (r *Renderer) Render(name string, records []atlas.TractRecord, counties []atlas.CountyStats) (string, error) {
	drawFn, widthIn, heightIn, err := r.figure(name, records, counties)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.OutDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "render: create output dir %s", r.OutDir)
	}
	path := filepath.Join(r.OutDir, name+"."+r.format())

	start := time.Now()
	if err := writeFigure(path, widthIn, heightIn, r.dpi(), drawFn); err != nil {
		return "", err
	}

	zap.L().Info("rendered figure",
		zap.String("component", "render"),
		zap.String("figure", name),
		zap.String("path", path),
		zap.Duration("took", time.Since(start)))
	return path, nil
}

// Encode renders one figure to w without touching the filesystem.
func (r *Renderer) Encode(w io.Writer, format, name string, records []atlas.TractRecord, counties []atlas.CountyStats) error {
	drawFn, widthIn, heightIn, err := r.figure(name, records, counties)
	if err != nil {
		return err
	}
	return EncodeFigure(w, format, widthIn, heightIn, r.dpi(), drawFn)
}

// RenderAll draws every figure, a few at a time. Paths come back in
// Figures() order.
func (r *Renderer) RenderAll(ctx context.Context, records []atlas.TractRecord, counties []atlas.CountyStats) ([]string, error) {
	names := Figures()
	paths := make([]string, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path, err := r.Render(name, records, counties)
			if err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func (r *Renderer) figure(name string, records []atlas.TractRecord, counties []atlas.CountyStats) (func(draw.Canvas) error, float64, float64, error) {
	w, h := r.Style.WidthIn, r.Style.HeightIn

	var (
		c   *Choropleth
		err error
	)
	switch name {
	case FigureMap:
		c = r.mapFigure(records)
	case FigurePopulation:
		c, err = r.populationFigure(records)
	case FigureCountyPopulation:
		c, err = r.countyPopulationFigure(records, counties)
	case FigureLowAccess:
		c = r.lowAccessFigure(records)
	case FigureCountyFoodAccess:
		cells, err := r.countyGridCells(records, counties)
		if err != nil {
			return nil, 0, 0, err
		}
		drawFn := func(dc draw.Canvas) error {
			for i, cell := range cells {
				if err := cell.Draw(tile(dc, 2, 2, i/2, i%2)); err != nil {
					return err
				}
			}
			return nil
		}
		return drawFn, 2 * w, w, nil
	default:
		return nil, 0, 0, eris.Errorf("render: unknown figure %q", name)
	}
	if err != nil {
		return nil, 0, 0, err
	}
	return c.Draw, w, h, nil
}

func (r *Renderer) mapFigure(records []atlas.TractRecord) *Choropleth {
	c := NewChoropleth(r.Style, r.stateName()+" State")
	c.Flat(records, r.Style.highlight())
	return c
}

func (r *Renderer) populationFigure(records []atlas.TractRecord) (*Choropleth, error) {
	c := NewChoropleth(r.Style, r.stateName()+" Census Tract Populations")
	c.Flat(records, r.Style.baseFill())

	state := stateRecords(records, r.State)
	values := make([]float64, len(state))
	for i, rec := range state {
		values[i] = float64(rec.Population)
	}
	if err := c.Values(state, values, NewScale(r.ScaleMode, values), true); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Renderer) countyPopulationFigure(records []atlas.TractRecord, counties []atlas.CountyStats) (*Choropleth, error) {
	c := NewChoropleth(r.Style, r.stateName()+" County Populations")
	c.Flat(records, r.Style.baseFill())

	byCounty := countyValues(counties, func(cs atlas.CountyStats) float64 { return float64(cs.Population) })
	state := stateRecords(records, r.State)
	values := make([]float64, len(state))
	for i, rec := range state {
		values[i] = byCounty[countyKey(rec.State, rec.County)]
	}
	if err := c.Values(state, values, NewScale(r.ScaleMode, values), true); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Renderer) lowAccessFigure(records []atlas.TractRecord) *Choropleth {
	c := NewChoropleth(r.Style, "Low Access Census Tracts")
	c.Flat(records, r.Style.baseFill())

	state := stateRecords(records, r.State)
	c.Flat(state, r.Style.stateFill())

	var low []atlas.TractRecord
	for _, rec := range state {
		if rec.LowAccess {
			low = append(low, rec)
		}
	}
	c.Flat(low, r.Style.highlight())
	return c
}

// County ratio cells, row-major from the top left. Half-mile metrics sit on
// the top row and ten-mile metrics below, low-income variants on the right.
var countyRatioCells = []struct {
	title string
	value func(atlas.CountyStats) float64
}{
	{"Low Access: Half", func(c atlas.CountyStats) float64 { return c.RatioHalf }},
	{"Low Access + Low Income: Half", func(c atlas.CountyStats) float64 { return c.RatioLowIHalf }},
	{"Low Access: 10", func(c atlas.CountyStats) float64 { return c.Ratio10 }},
	{"Low Access + Low Income: 10", func(c atlas.CountyStats) float64 { return c.RatioLowI10 }},
}

func (r *Renderer) countyGridCells(records []atlas.TractRecord, counties []atlas.CountyStats) ([]*Choropleth, error) {
	state := stateRecords(records, r.State)

	cells := make([]*Choropleth, len(countyRatioCells))
	for i, spec := range countyRatioCells {
		byCounty := countyValues(counties, spec.value)
		values := make([]float64, len(state))
		for k, rec := range state {
			values[k] = byCounty[countyKey(rec.State, rec.County)]
		}

		c := NewChoropleth(r.Style, spec.title)
		c.Flat(records, r.Style.baseFill())
		if err := c.Values(state, values, FixedLinear(0, 1), true); err != nil {
			return nil, err
		}
		cells[i] = c
	}
	return cells, nil
}

func (r *Renderer) stateName() string {
	return census.StateName(r.State)
}

func (r *Renderer) format() string {
	if r.Format == "" {
		return "png"
	}
	return strings.ToLower(r.Format)
}

func (r *Renderer) dpi() int {
	if r.DPI <= 0 {
		return 150
	}
	return r.DPI
}

func (r *Renderer) workers() int {
	if r.Workers <= 0 {
		return 3
	}
	return r.Workers
}

func stateRecords(records []atlas.TractRecord, state string) []atlas.TractRecord {
	var out []atlas.TractRecord
	for _, rec := range records {
		if rec.HasData && rec.State == state {
			out = append(out, rec)
		}
	}
	return out
}

func countyValues(counties []atlas.CountyStats, value func(atlas.CountyStats) float64) map[string]float64 {
	m := make(map[string]float64, len(counties))
	for _, c := range counties {
		m[countyKey(c.State, c.County)] = value(c)
	}
	return m
}

func countyKey(state, county string) string {
	return state + "/" + county
}
