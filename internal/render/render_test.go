package render

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kmviz/internal/kmeans"
)

func converged(t *testing.T) []kmeans.Snapshot {
	t.Helper()
	e := kmeans.NewEngine()
	require.NoError(t, e.Load(
		[]kmeans.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 10, Y: 10}},
		[]kmeans.Centroid{{X: 0, Y: 0}, {X: 10, Y: 10}},
	))
	for {
		changed, err := e.Step()
		require.NoError(t, err)
		if !changed {
			break
		}
	}
	return e.Timeline()
}

func TestPNG(t *testing.T) {
	snaps := converged(t)
	for _, s := range snaps {
		var buf bytes.Buffer
		require.NoError(t, PNG(&buf, s, DefaultOptions()))

		img, err := png.Decode(&buf)
		require.NoError(t, err)
		b := img.Bounds()
		assert.Greater(t, b.Dx(), b.Dy(), "landscape canvas")
	}
}

func TestImage_SVG(t *testing.T) {
	o := DefaultOptions()
	o.Format = "svg"
	var buf bytes.Buffer
	require.NoError(t, Image(&buf, converged(t)[0], o))
	assert.True(t, strings.Contains(buf.String(), "<svg"))

	o.Format = "bmp"
	assert.Error(t, Image(&bytes.Buffer{}, converged(t)[0], o))
}

func TestPlot_Ranges(t *testing.T) {
	s := converged(t)[1]

	p, err := Plot(s, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, -20.0, p.X.Min)
	assert.Equal(t, 20.0, p.X.Max)
	assert.Equal(t, -15.0, p.Y.Min)
	assert.Equal(t, 15.0, p.Y.Max)
	assert.Equal(t, "Iteration: 2", p.Title.Text)

	o := DefaultOptions()
	o.Fit = true
	p, err = Plot(s, o)
	require.NoError(t, err)
	assert.Less(t, p.X.Min, 0.0)
	assert.Greater(t, p.X.Max, 10.0)
	assert.Less(t, p.X.Max, 20.0)
}

func TestOptions_BoundsFitEmpty(t *testing.T) {
	o := DefaultOptions()
	o.Fit = true
	xmin, xmax, ymin, ymax := o.Bounds(kmeans.Snapshot{})
	assert.Equal(t, []float64{-20, 20, -15, 15}, []float64{xmin, xmax, ymin, ymax})

	// a single location still gets a visible range
	xmin, xmax, _, _ = o.Bounds(kmeans.Snapshot{Points: []kmeans.Point{{X: 3, Y: 3}}})
	assert.Equal(t, 2.0, xmin)
	assert.Equal(t, 4.0, xmax)
}

func TestHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, converged(t), DefaultOptions()))

	out := buf.String()
	assert.Contains(t, out, "K-Means Visualization")
	for _, want := range []string{"Iteration: 1", "Iteration: 2", "Iteration: 3", "triangle", "unassigned", "cluster 2", "#00ff00"} {
		assert.Contains(t, out, want)
	}
}
