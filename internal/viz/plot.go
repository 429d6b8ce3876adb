package viz

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/magsim/internal/storage"
)

var errNoRows = errors.New("no points to plot")

var branchColors = map[int64]color.Color{
	-1: color.RGBA{R: 220, G: 60, B: 60, A: 255},
	1:  color.RGBA{R: 40, G: 110, B: 220, A: 255},
}

// Branches splits rows by polarity, keeping emission order.
func Branches(rows []storage.Row) map[int64][]storage.Row {
	out := make(map[int64][]storage.Row)
	for _, r := range rows {
		out[r.Polarity] = append(out[r.Polarity], r)
	}
	return out
}

func branchName(p int64) string {
	if p < 0 {
		return "negative"
	}
	return "positive"
}

// SaveLoopPNG writes the m(H) loop of rows to path. The image format
// follows the file extension.
func SaveLoopPNG(rows []storage.Row, title, path string) error {
	if len(rows) == 0 {
		return errNoRows
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "H (T)"
	p.Y.Label.Text = "m"

	for _, pol := range []int64{-1, 1} {
		branch := Branches(rows)[pol]
		if len(branch) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(branch))
		for i, r := range branch {
			pts[i] = plotter.XY{X: r.HApplied, Y: r.M}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = branchColors[pol]
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(branchName(pol), line)
	}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save loop plot: %w", err)
	}
	return nil
}

// LoopChart renders m per point for each branch as a terminal chart.
func LoopChart(rows []storage.Row, width, height int) (string, error) {
	if len(rows) == 0 {
		return "", errNoRows
	}
	var series [][]float64
	var colors []asciigraph.AnsiColor
	for _, pol := range []int64{-1, 1} {
		branch := Branches(rows)[pol]
		if len(branch) == 0 {
			continue
		}
		ys := make([]float64, len(branch))
		for i, r := range branch {
			ys[i] = r.M
		}
		series = append(series, ys)
		if pol < 0 {
			colors = append(colors, asciigraph.Red)
		} else {
			colors = append(colors, asciigraph.Blue)
		}
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(3),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption("m per point (red: negative, blue: positive)"),
	), nil
}
