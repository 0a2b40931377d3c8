// Package render draws clustering snapshots: static images through
// gonum/plot and an interactive HTML page through go-echarts.
package render

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"kmviz/internal/kmeans"
	"kmviz/internal/palette"
)

// Options controls the canvas. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	Width  vg.Length
	Height vg.Length
	// Format is any gonum/plot format name: png, svg, pdf, jpg...
	Format string

	XMin, XMax float64
	YMin, YMax float64
	// Fit replaces the fixed ranges with the data bounds of each snapshot.
	Fit bool
}

// DefaultOptions matches the 800x600 canvas with a -20..20 by -15..15
// coordinate grid.
func DefaultOptions() Options {
	return Options{
		Width:  8 * vg.Inch,
		Height: 6 * vg.Inch,
		Format: "png",
		XMin:   -20,
		XMax:   20,
		YMin:   -15,
		YMax:   15,
	}
}

// Bounds returns the axis ranges used for s.
func (o Options) Bounds(s kmeans.Snapshot) (xmin, xmax, ymin, ymax float64) {
	if !o.Fit {
		return o.XMin, o.XMax, o.YMin, o.YMax
	}
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	grow := func(x, y float64) {
		xmin, xmax = math.Min(xmin, x), math.Max(xmax, x)
		ymin, ymax = math.Min(ymin, y), math.Max(ymax, y)
	}
	for _, p := range s.Points {
		grow(p.X, p.Y)
	}
	for _, c := range s.Centroids {
		grow(c.X, c.Y)
	}
	if math.IsInf(xmin, 1) {
		return o.XMin, o.XMax, o.YMin, o.YMax
	}
	padX := math.Max((xmax-xmin)*0.05, 1)
	padY := math.Max((ymax-ymin)*0.05, 1)
	return xmin - padX, xmax + padX, ymin - padY, ymax + padY
}

// Plot builds the gonum plot for one snapshot: points coloured by cluster,
// centroids as black triangles, axes through the origin and a grid.
func Plot(s kmeans.Snapshot, o Options) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Iteration: %d", s.Iteration)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(plotter.NewGrid())

	xmin, xmax, ymin, ymax := o.Bounds(s)

	// Axes through the origin
	for _, seg := range []plotter.XYs{
		{{X: xmin, Y: 0}, {X: xmax, Y: 0}},
		{{X: 0, Y: ymin}, {X: 0, Y: ymax}},
	} {
		line, err := plotter.NewLine(seg)
		if err != nil {
			return nil, err
		}
		line.Width = vg.Points(1)
		p.Add(line)
	}

	// Group points by cluster so each gets one legend entry
	groups := make(map[int]plotter.XYs)
	for _, pt := range s.Points {
		groups[pt.Cluster] = append(groups[pt.Cluster], plotter.XY{X: pt.X, Y: pt.Y})
	}
	for cluster := kmeans.Unassigned; cluster < len(s.Centroids); cluster++ {
		xys, ok := groups[cluster]
		if !ok {
			continue
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("cluster %d: %w", cluster+1, err)
		}
		sc.GlyphStyle.Color = palette.Color(cluster)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(4)
		p.Add(sc)
		p.Legend.Add(seriesName(cluster), sc)
	}

	if len(s.Centroids) > 0 {
		xys := make(plotter.XYs, len(s.Centroids))
		for i, c := range s.Centroids {
			xys[i] = plotter.XY{X: c.X, Y: c.Y}
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("centroids: %w", err)
		}
		sc.GlyphStyle.Color = palette.Centroid
		sc.GlyphStyle.Shape = draw.PyramidGlyph{}
		sc.GlyphStyle.Radius = vg.Points(7)
		p.Add(sc)
		p.Legend.Add("centroids", sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	// Set after Add, which widens the ranges to the data
	p.X.Min, p.X.Max = xmin, xmax
	p.Y.Min, p.Y.Max = ymin, ymax
	return p, nil
}

// Image writes one snapshot in o.Format.
func Image(w io.Writer, s kmeans.Snapshot, o Options) error {
	p, err := Plot(s, o)
	if err != nil {
		return err
	}
	format := o.Format
	if format == "" {
		format = "png"
	}
	wt, err := p.WriterTo(o.Width, o.Height, format)
	if err != nil {
		return fmt.Errorf("error creating %s canvas: %w", format, err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// PNG writes one snapshot as a PNG image.
func PNG(w io.Writer, s kmeans.Snapshot, o Options) error {
	o.Format = "png"
	return Image(w, s, o)
}

func seriesName(cluster int) string {
	if cluster == kmeans.Unassigned {
		return "unassigned"
	}
	return fmt.Sprintf("cluster %d", cluster+1)
}
