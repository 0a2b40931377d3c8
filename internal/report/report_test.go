package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kmviz/internal/driver"
	"kmviz/internal/kmeans"
)

func sampleSnapshot() kmeans.Snapshot {
	return kmeans.Snapshot{
		Iteration: 2,
		Points: []kmeans.Point{
			{X: 0, Y: 0, Cluster: 0},
			{X: 1, Y: 0, Cluster: 0},
			{X: 10, Y: 10, Cluster: 1},
			{X: 5, Y: 5, Cluster: kmeans.Unassigned},
		},
		Centroids: []kmeans.Centroid{{X: 0.5, Y: 0}, {X: 10, Y: 10}, {X: -3, Y: 4}},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleSnapshot()))

	want := `Iteration 2
  Centroid 1: (0.500, 0.000) members=2
  Centroid 2: (10.000, 10.000) members=1
  Centroid 3: (-3.000, 4.000) members=0
  Point 1: (0.000, 0.000) -> cluster 1
  Point 2: (1.000, 0.000) -> cluster 1
  Point 3: (10.000, 10.000) -> cluster 2
  Point 4: (5.000, 5.000) -> cluster -
`
	assert.Equal(t, want, buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, []kmeans.Snapshot{sampleSnapshot()}))

	var got []IterationResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)

	r := got[0]
	assert.Equal(t, 2, r.Iteration)
	assert.Equal(t, []CentroidResult{
		{X: 0.5, Y: 0, Size: 2},
		{X: 10, Y: 10, Size: 1},
		{X: -3, Y: 4, Size: 0},
	}, r.Centroids)
	assert.Equal(t, 1, r.Points[0].Cluster)
	assert.Equal(t, 2, r.Points[2].Cluster)
	assert.Equal(t, 0, r.Points[3].Cluster, "unassigned is reported as 0")
}

func TestTextObserver(t *testing.T) {
	var buf bytes.Buffer
	o := NewTextObserver(&buf)

	s := sampleSnapshot()
	o.Observe(driver.Frame{Event: driver.EventStart, Snapshot: s})
	o.Observe(driver.Frame{Event: driver.EventStep, Snapshot: s, Changed: true})
	o.Observe(driver.Frame{Event: driver.EventStep, Snapshot: s, Converged: true})
	o.Observe(driver.Frame{Event: driver.EventStepBack, Snapshot: s})
	require.NoError(t, o.Err())

	out := buf.String()
	for _, status := range []string{"-- loaded", "-- changed", "-- converged", "-- stepped back"} {
		assert.Contains(t, out, status)
	}
	assert.Equal(t, 4, bytes.Count(buf.Bytes(), []byte("Iteration 2\n")))
}

type brokenWriter struct{ n int }

func (w *brokenWriter) Write(p []byte) (int, error) {
	w.n++
	return 0, errors.New("closed")
}

func TestTextObserver_StopsOnError(t *testing.T) {
	w := &brokenWriter{}
	o := NewTextObserver(w)
	o.Observe(driver.Frame{Snapshot: sampleSnapshot()})
	o.Observe(driver.Frame{Snapshot: sampleSnapshot()})
	assert.EqualError(t, o.Err(), "closed")
	assert.Equal(t, 1, w.n)
}
