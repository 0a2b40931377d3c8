package video

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kmviz/internal/kmeans"
	"kmviz/internal/report"
)

func timeline(t *testing.T) []kmeans.Snapshot {
	t.Helper()
	e := kmeans.NewEngine()
	require.NoError(t, e.Load(
		[]kmeans.Point{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 8, Y: 8}, {X: 9, Y: 9}, {X: -5, Y: 3}},
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

func TestChunkSnapshots(t *testing.T) {
	snaps := make([]kmeans.Snapshot, 7)
	for i := range snaps {
		snaps[i].Iteration = i + 1
	}

	chunks := ChunkSnapshots(snaps, 3)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 3)
	assert.Len(t, chunks[2], 1)
	assert.Equal(t, 7, chunks[2][0].Iteration)

	assert.Len(t, ChunkSnapshots(snaps, 0), 7)
	assert.Empty(t, ChunkSnapshots(nil, 3))
}

func TestFrameName(t *testing.T) {
	assert.Equal(t, "iteration_0001.png", FrameName(1, "png"))
	assert.Equal(t, "iteration_0123.svg", FrameName(123, "svg"))
}

func TestRenderFrames_Order(t *testing.T) {
	snaps := timeline(t)
	ex := NewExporter(t.TempDir())
	ex.Workers = 3
	ex.BatchSize = 1

	frames, err := ex.RenderFrames(context.Background(), snaps)
	require.NoError(t, err)
	require.Len(t, frames, len(snaps))
	for i, f := range frames {
		assert.Equal(t, snaps[i].Iteration, f.Iteration)
		assert.NotEmpty(t, f.Data)
	}
}

func TestExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	snaps := timeline(t)

	sum, err := NewExporter(dir).Export(context.Background(), snaps)
	require.NoError(t, err)

	assert.Equal(t, len(snaps), sum.Frames)
	for i := range snaps {
		assert.FileExists(t, filepath.Join(dir, FrameName(i+1, "png")))
	}
	assert.FileExists(t, filepath.Join(dir, HTMLFile))
	assert.Empty(t, sum.Video)

	data, err := os.ReadFile(filepath.Join(dir, ResultsFile))
	require.NoError(t, err)
	var results []report.IterationResult
	require.NoError(t, json.Unmarshal(data, &results))
	require.Len(t, results, len(snaps))
	assert.Equal(t, 1, results[0].Iteration)
}

func TestExport_Errors(t *testing.T) {
	_, err := NewExporter(t.TempDir()).Export(context.Background(), nil)
	assert.Error(t, err)

	ex := NewExporter(t.TempDir())
	ex.Render.Format = "svg"
	ex.VideoPath = "run.mp4"
	_, err = ex.Export(context.Background(), timeline(t))
	assert.ErrorContains(t, err, "png")
}

func TestExport_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExporter(t.TempDir()).Export(ctx, timeline(t))
	assert.ErrorIs(t, err, context.Canceled)
}
