package video

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"kmviz/internal/ffmpeg"
	"kmviz/internal/kmeans"
	"kmviz/internal/render"
	"kmviz/internal/report"
	"kmviz/internal/worker"
)

const (
	HTMLFile    = "iterations.html"
	ResultsFile = "results.json"
)

// Frame is one rendered iteration image.
type Frame struct {
	Iteration int
	Data      []byte
}

// FrameName is the file name of the image for an iteration.
func FrameName(iteration int, format string) string {
	return fmt.Sprintf("iteration_%04d.%s", iteration, format)
}

// Exporter writes a run's snapshots to disk: one image per iteration, an
// HTML page, the JSON results and optionally a video.
type Exporter struct {
	OutputDir string
	Workers   int
	// Render controls the image canvas; zero value means render.DefaultOptions.
	Render render.Options
	// VideoPath enables video encoding when set. Relative paths are placed
	// in OutputDir.
	VideoPath string
	FPS       int
	// BatchSize is the number of snapshots each worker renders per job.
	BatchSize int
}

// Summary reports what Export produced.
type Summary struct {
	Frames  int
	Images  []string
	HTML    string
	Results string
	Video   string
	Elapsed time.Duration
}

// NewExporter creates an exporter with default rendering options.
func NewExporter(outputDir string) *Exporter {
	return &Exporter{
		OutputDir: outputDir,
		Render:    render.DefaultOptions(),
		FPS:       2,
		BatchSize: 4,
	}
}

// ChunkSnapshots splits snaps into batches of at most n.
func ChunkSnapshots(snaps []kmeans.Snapshot, n int) [][]kmeans.Snapshot {
	if n <= 0 {
		n = 1
	}
	var chunks [][]kmeans.Snapshot
	for start := 0; start < len(snaps); start += n {
		end := min(start+n, len(snaps))
		chunks = append(chunks, snaps[start:end])
	}
	return chunks
}

// RenderFrames renders every snapshot concurrently, keeping iteration order.
func (e *Exporter) RenderFrames(ctx context.Context, snaps []kmeans.Snapshot) ([]Frame, error) {
	opts := e.renderOptions()
	return worker.Batches(ctx, ChunkSnapshots(snaps, e.BatchSize), e.Workers, func(_ context.Context, s kmeans.Snapshot) (Frame, error) {
		var buf bytes.Buffer
		if err := render.Image(&buf, s, opts); err != nil {
			return Frame{}, fmt.Errorf("error rendering iteration %d: %w", s.Iteration, err)
		}
		return Frame{Iteration: s.Iteration, Data: buf.Bytes()}, nil
	})
}

// Export processes the full timeline of a run.
func (e *Exporter) Export(ctx context.Context, snaps []kmeans.Snapshot) (Summary, error) {
	if len(snaps) == 0 {
		return Summary{}, fmt.Errorf("no snapshots to export")
	}
	if err := os.MkdirAll(e.OutputDir, 0755); err != nil {
		return Summary{}, fmt.Errorf("error creating output directory: %w", err)
	}

	startTime := time.Now()
	opts := e.renderOptions()
	if e.VideoPath != "" && opts.Format != "png" {
		return Summary{}, fmt.Errorf("video export needs png frames, got %s", opts.Format)
	}

	log.Printf("Rendering %d iterations...", len(snaps))
	frames, err := e.RenderFrames(ctx, snaps)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for _, f := range frames {
		path := filepath.Join(e.OutputDir, FrameName(f.Iteration, opts.Format))
		if err := os.WriteFile(path, f.Data, 0644); err != nil {
			return Summary{}, fmt.Errorf("error writing image: %w", err)
		}
		sum.Images = append(sum.Images, path)
	}
	sum.Frames = len(frames)

	sum.HTML = filepath.Join(e.OutputDir, HTMLFile)
	if err := writeFile(sum.HTML, func(f *os.File) error { return render.HTML(f, snaps, opts) }); err != nil {
		return Summary{}, err
	}

	sum.Results = filepath.Join(e.OutputDir, ResultsFile)
	if err := writeFile(sum.Results, func(f *os.File) error { return report.WriteJSON(f, snaps) }); err != nil {
		return Summary{}, err
	}

	if e.VideoPath != "" {
		sum.Video = e.videoPath()
		if err := e.encode(ctx, sum.Video, frames); err != nil {
			return Summary{}, err
		}
	}

	sum.Elapsed = time.Since(startTime)
	log.Printf("Export complete! Wrote %d iterations in %.2f seconds", sum.Frames, sum.Elapsed.Seconds())
	log.Printf("Results saved to %s", sum.Results)
	return sum, nil
}

func (e *Exporter) encode(ctx context.Context, path string, frames []Frame) error {
	enc, err := ffmpeg.StartEncoder(ctx, ffmpeg.EncodeOptions{Output: path, FPS: e.FPS})
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := enc.WriteFrame(f.Data); err != nil {
			_ = enc.Close()
			return err
		}
	}
	if err := enc.Close(); err != nil {
		return err
	}
	log.Printf("Encoded %d frames to %s", enc.Frames(), path)
	return nil
}

func (e *Exporter) renderOptions() render.Options {
	o := e.Render
	if o.Width == 0 || o.Height == 0 {
		def := render.DefaultOptions()
		def.Fit = o.Fit
		if o.Format != "" {
			def.Format = o.Format
		}
		if o.XMin != o.XMax && o.YMin != o.YMax {
			def.XMin, def.XMax, def.YMin, def.YMax = o.XMin, o.XMax, o.YMin, o.YMax
		}
		o = def
	}
	if o.Format == "" {
		o.Format = "png"
	}
	return o
}

func (e *Exporter) videoPath() string {
	if filepath.IsAbs(e.VideoPath) {
		return e.VideoPath
	}
	return filepath.Join(e.OutputDir, e.VideoPath)
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", filepath.Base(path), err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("error writing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
