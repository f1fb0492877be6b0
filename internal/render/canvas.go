package render

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"
)

// EncodeFigure renders drawFn onto a fresh canvas of the given size and
// writes the encoded image to w. Supported formats are png and svg.
func EncodeFigure(w io.Writer, format string, widthIn, heightIn float64, dpi int, drawFn func(draw.Canvas) error) error {
	width := vg.Length(widthIn) * vg.Inch
	height := vg.Length(heightIn) * vg.Inch

	switch strings.ToLower(format) {
	case "svg":
		c := vgsvg.New(width, height)
		if err := drawFn(draw.New(c)); err != nil {
			return err
		}
		if _, err := c.WriteTo(w); err != nil {
			return eris.Wrap(err, "render: encode svg")
		}
	case "", "png":
		c := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(dpi))
		if err := drawFn(draw.New(c)); err != nil {
			return err
		}
		png := vgimg.PngCanvas{Canvas: c}
		if _, err := png.WriteTo(w); err != nil {
			return eris.Wrap(err, "render: encode png")
		}
	default:
		return eris.Errorf("render: unsupported format %q", format)
	}
	return nil
}

// writeFigure encodes a figure to path, picking the format from the file
// extension.
func writeFigure(path string, widthIn, heightIn float64, dpi int, drawFn func(draw.Canvas) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "render: create %s", path)
	}

	format := strings.TrimPrefix(filepath.Ext(path), ".")
	if err := EncodeFigure(f, format, widthIn, heightIn, dpi, drawFn); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "render: close %s", path)
	}
	return nil
}

// tile returns the cell at (row, col) of a rows by cols grid over dc. Row
// zero is the top row.
func tile(dc draw.Canvas, rows, cols, row, col int) draw.Canvas {
	t := draw.Tiles{
		Rows: rows,
		Cols: cols,
		PadX: vg.Millimeter * 2,
		PadY: vg.Millimeter * 2,
	}
	return t.At(dc, col, row)
}
