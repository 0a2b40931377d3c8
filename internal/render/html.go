package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"kmviz/internal/kmeans"
	"kmviz/internal/palette"
)

// Scatter builds the echarts scatter chart for one snapshot.
func Scatter(s kmeans.Snapshot, o Options) *charts.Scatter {
	xmin, xmax, ymin, ymax := o.Bounds(s)
	sizes := s.Sizes()

	sc := charts.NewScatter()
	sc.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "800px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Iteration: %d", s.Iteration),
			Subtitle: fmt.Sprintf("points=%d centroids=%d", len(s.Points), len(s.Centroids)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: xmin, Max: xmax, Name: "x"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: ymin, Max: ymax, Name: "y"}),
		charts.WithAnimation(false),
	)

	groups := make(map[int][]opts.ScatterData)
	for i, p := range s.Points {
		groups[p.Cluster] = append(groups[p.Cluster], opts.ScatterData{
			Name:  fmt.Sprintf("point %d", i+1),
			Value: []interface{}{p.X, p.Y},
		})
	}
	for cluster := kmeans.Unassigned; cluster < len(s.Centroids); cluster++ {
		data, ok := groups[cluster]
		if !ok {
			continue
		}
		sc.AddSeries(seriesName(cluster), data,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: palette.Hex(cluster)}),
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}),
		)
	}

	centroids := make([]opts.ScatterData, len(s.Centroids))
	for i, c := range s.Centroids {
		centroids[i] = opts.ScatterData{
			Name:       fmt.Sprintf("centroid %d (%d members)", i+1, sizes[i]),
			Value:      []interface{}{c.X, c.Y},
			Symbol:     "triangle",
			SymbolSize: 16,
		}
	}
	sc.AddSeries("centroids", centroids,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: palette.Centroid.Hex()}),
	)
	return sc
}

// HTML writes a page with one chart per snapshot.
func HTML(w io.Writer, snaps []kmeans.Snapshot, o Options) error {
	page := components.NewPage()
	page.PageTitle = "K-Means Visualization"
	page.SetLayout(components.PageFlexLayout)
	for _, s := range snaps {
		page.AddCharts(Scatter(s, o))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("error rendering page: %w", err)
	}
	return nil
}
